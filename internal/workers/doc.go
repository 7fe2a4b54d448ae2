/*
Package workers sizes the worker pools used by photo-ingest.

Go sets GOMAXPROCS from the container CPU limit, while runtime.NumCPU()
still reports the host. Pool sizes are therefore derived from GOMAXPROCS:

	decodeSlots := workers.ForCPU(8)   // image decode/resize, 1 per CPU
	fetchers := workers.ForIO(8)       // object-store fetches, 2 per CPU
	pool := workers.Bounded(6, len(tasks))

# Environment Variable Override

INGEST_WORKERS pins the count returned by [Count] and its helpers. The
per-call limit still applies:

	env:
	- name: INGEST_WORKERS
	  value: "4"

The upload scheduler's concurrency is configured separately
(UPLOAD_CONCURRENCY) because it bounds requests to the remote store rather
than local CPU work.
*/
package workers
