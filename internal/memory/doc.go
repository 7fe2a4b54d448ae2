// Package memory keeps the service inside its container memory limit.
//
// [ConfigureFromEnv] sets GOMEMLIMIT from the Kubernetes Downward API:
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//	- name: MEMORY_RATIO
//	  value: "0.75"
//
// GOMEMLIMIT only covers the Go heap. libvips allocates outside it when
// transcoding HEIF, so lower MEMORY_RATIO when batches are HEIF heavy.
//
// [Monitor] adds backpressure on top: the ingest pipeline calls
// [Monitor.Wait] before decoding, and the monitor holds new decodes while
// heap usage is above the critical mark.
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//	pipeline.SetMemoryGate(monitor)
package memory
