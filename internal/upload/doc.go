/*
Package upload runs batches of photo inputs through ingest and into the
object store.

A Scheduler starts min(Concurrency, len(tasks)) workers that pull tasks
from a queue. Tasks are admitted in waves of Concurrency with a short
cooldown between waves so the store is not hit in bursts.

For each task the scheduler:

 1. ingests the input once; a rejection is final
 2. uploads the full, medium and thumbnail tiers under
    <prefix>/<tier>/<uuid>.jpg, retrying transient failures up to
    MaxRetries times with a delay of RetryDelay × attempt; tiers that
    already landed are not uploaded again
 3. writes the metadata row only after the full tier is stored

Permission and expired-session errors are never retried. They fail the
item with UploadAuthFailure and set BatchResult.NeedsReauth.

Progress is reported through ProgressObserver once per terminal task
state, with a monotonically increasing completed count.
*/
package upload
