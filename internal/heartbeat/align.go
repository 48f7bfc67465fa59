package heartbeat

import "time"

// AlignDelay returns how long to wait from now until the next multiple of
// boundary on the wall clock. A now that is already on a boundary waits a
// full boundary.
func AlignDelay(now time.Time, boundary time.Duration) time.Duration {
	if boundary <= 0 {
		return 0
	}

	offset := time.Duration(now.UnixNano() % int64(boundary))
	if offset < 0 {
		offset += boundary
	}

	return boundary - offset
}
