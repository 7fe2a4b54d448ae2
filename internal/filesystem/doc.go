/*
Package filesystem reads local input files with retry logic for NFS stale
file handle errors.

The upload command reads photos from directories that are often NFS
mounts. StatWithRetry and ReadFileWithRetry wrap os.Stat and os.ReadFile
and retry only ESTALE (errno 116) with exponential backoff; every other
error is returned immediately.

Defaults:
  - MaxRetries: 3
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

Retry metrics are reported through an Observer installed with SetObserver,
labelled with the volume the config's VolumeResolver assigns to the path:

	filesystem.SetObserver(metrics.NewFilesystemObserver())

	retry := filesystem.DefaultRetryConfig()
	retry.VolumeResolver = filesystem.NewVolumeResolver(map[string]string{"input": inputDir})
	data, err := filesystem.ReadFileWithRetry(path, retry)
*/
package filesystem
