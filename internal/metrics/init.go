package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, result := range []string{"accepted", "too_large", "unsupported_format", "transcode_failed", "resize_failed"} {
		IngestTotal.WithLabelValues(result)
	}
	for _, phase := range []string{"sniff", "normalize", "derive", "exif"} {
		IngestPhaseDuration.WithLabelValues(phase)
	}
	for _, format := range []string{"jpeg", "png", "gif", "webp", "bmp", "heif", "unrecognized"} {
		IngestByFormat.WithLabelValues(format)
	}

	for _, tier := range []string{"full", "medium", "thumb"} {
		UploadedBytesTotal.WithLabelValues(tier)
		IngestMissingTiers.WithLabelValues(tier)
	}
	for _, result := range []string{"success", "transient", "auth", "timeout"} {
		UploadAttemptsTotal.WithLabelValues(result)
	}
	for _, outcome := range []string{"succeeded", "rejected", "upload_transient", "upload_auth_failure", "db_insert_failed", "cancelled"} {
		UploadItemsTotal.WithLabelValues(outcome)
	}
	for _, status := range []string{"all_succeeded", "partial", "all_failed"} {
		UploadBatchesTotal.WithLabelValues(status)
	}

	for _, result := range []string{"hit", "miss", "direct"} {
		HandleCacheRequests.WithLabelValues(result)
	}

	for _, kind := range []string{"INSERT", "UPDATE", "DELETE"} {
		ChangeFeedEvents.WithLabelValues(kind)
	}

	for _, op := range []string{"initialize_schema", "insert_photo", "get_photo", "delete_photo", "list_photos", "get_stats",
		"set_cache_entry", "get_cache_entry", "delete_cache_entry", "get_metadata", "set_metadata"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, op := range []string{"stat", "read"} {
		for _, vol := range []string{"input", "database", "config", "unknown"} {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}
}

// InitializeCache pre-populates labels for a named TTL cache.
func InitializeCache(name string) {
	for _, result := range []string{"hit", "miss", "expired"} {
		TTLCacheRequests.WithLabelValues(name, result)
	}
	for _, reason := range []string{"capacity", "invalidate"} {
		TTLCacheEvictions.WithLabelValues(name, reason)
	}
	TTLCacheEntries.WithLabelValues(name)
}
