package workers

import (
	"os"
	"runtime"
	"strconv"
)

// OverrideEnv lets operators pin the worker count regardless of CPU limits.
const OverrideEnv = "INGEST_WORKERS"

// Count returns the number of workers for a task type, scaled from
// GOMAXPROCS (which honours container CPU limits) by multiplier and capped
// at limit. A limit of 0 means no cap.
//
// INGEST_WORKERS overrides the calculation but is still capped at limit.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(OverrideEnv); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			return capAt(count, limit)
		}
	}

	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if workers < 1 {
		workers = 1
	}
	return capAt(workers, limit)
}

func capAt(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}

// ForCPU returns worker count for CPU-bound tasks such as image decode (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for network-bound tasks such as object fetches (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// Bounded returns min(concurrency, items), never less than 1 when there is work.
// Pools use it so a small batch doesn't start idle workers.
func Bounded(concurrency, items int) int {
	if items <= 0 {
		return 0
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return min(concurrency, items)
}
