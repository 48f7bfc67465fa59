// Counterload drives the outstanding request counter the heartbeat agent
// reads. Each round increments the key, optionally holds it, decrements it
// and reads it back, printing the latency of every command.
//
// Usage:
//
//	go run ./scripts/counterload -addr localhost:6379
//	go run ./scripts/counterload -addr localhost:6379 -workers 8 -hold 300ms
//
// With several workers and a hold time the counter stays above zero, so the
// agent has something other than 0 to report.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
)

func timed(name string, worker int, fn func() error) {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	if err != nil {
		fmt.Printf("[worker %d] %s failed after %.3fms: %v\n", worker, name, float64(elapsed.Microseconds())/1000, err)
		return
	}
	fmt.Printf("[worker %d] time for %s: %.3fms\n", worker, name, float64(elapsed.Microseconds())/1000)
}

func work(ctx context.Context, client *redis.Client, worker int, key string, hold, pause time.Duration) {
	for {
		timed("incr", worker, func() error { return client.Incr(ctx, key).Err() })

		if hold > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(hold):
			}
		}

		// Decrement even when cancelled so the counter settles back.
		timed("decr", worker, func() error { return client.Decr(context.WithoutCancel(ctx), key).Err() })

		if ctx.Err() != nil {
			return
		}

		timed("get", worker, func() error { return client.Get(ctx, key).Err() })

		select {
		case <-ctx.Done():
			return
		case <-time.After(pause):
		}
	}
}

func main() {
	addr := flag.String("addr", "localhost:6379", "redis address")
	key := flag.String("key", "outstanding_requests", "counter key")
	workers := flag.Int("workers", 1, "concurrent workers")
	hold := flag.Duration("hold", 0, "time to hold each increment before decrementing")
	pause := flag.Duration("pause", 100*time.Millisecond, "pause between rounds")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: *addr})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		fmt.Fprintf(os.Stderr, "cannot reach redis at %s: %v\n", *addr, err)
		os.Exit(1)
	}

	fmt.Printf("Driving %q on %s with %d workers\n", *key, *addr, *workers)

	var wg sync.WaitGroup
	for i := 1; i <= *workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			work(ctx, client, worker, *key, *hold, *pause)
		}(i)
	}
	wg.Wait()

	value, err := client.Get(context.Background(), *key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		fmt.Fprintf(os.Stderr, "final read failed: %v\n", err)
		return
	}
	fmt.Printf("Final %s=%s\n", *key, value)
}
