package client

import "time"

// BackoffDelay returns how long to wait before reconnect attempt number attempts.
// Up to threshold failures reconnect immediately; after that the delay doubles from
// base and is capped at ceiling.
func BackoffDelay(attempts, threshold int, base, ceiling time.Duration) time.Duration {
	if attempts <= threshold || base <= 0 {
		return 0
	}
	exp := attempts - threshold - 1
	if exp >= 62 {
		return ceiling
	}
	d := base
	for range exp {
		d *= 2
		if ceiling > 0 && d >= ceiling {
			return ceiling
		}
	}
	if ceiling > 0 && d > ceiling {
		return ceiling
	}
	return d
}
