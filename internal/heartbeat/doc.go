// Package heartbeat drives the periodic read-and-report cycle.
//
// The loop sleeps once until the next whole second so that agents across a
// fleet sample at roughly the same instants, fires the first tick, then
// fires again on every interval of a time.Ticker. The ticker is
// clock-scheduled: tick work runs on an ants worker pool, so a slow store
// or controller never delays the next tick. When MaxInFlight ticks are
// already running the new tick is dropped rather than queued.
//
// Every failure inside a tick is logged and absorbed. Run only returns when
// its context is cancelled, after waiting for in-flight ticks to finish.
package heartbeat
