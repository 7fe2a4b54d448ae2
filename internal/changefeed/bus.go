package changefeed

import (
	evbus "github.com/asaskevich/EventBus"

	"photo-ingest/internal/upload"
)

// Bus topics.
const (
	TopicChange   = "cache:change"
	TopicProgress = "upload:progress"
)

// Progress is published on TopicProgress as a batch advances.
type Progress struct {
	BatchID string `json:"batchId"`
	Done    int    `json:"done"`
	Total   int    `json:"total"`
}

// Bus is the in-process side of the feed. Handlers run synchronously on the
// publishing goroutine.
type Bus struct {
	bus evbus.Bus
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{bus: evbus.New()}
}

// PublishChange delivers ev to change subscribers.
func (b *Bus) PublishChange(ev Event) {
	b.bus.Publish(TopicChange, ev)
}

// OnChange subscribes fn to change events.
func (b *Bus) OnChange(fn func(Event)) error {
	return b.bus.Subscribe(TopicChange, fn)
}

// PublishProgress delivers p to progress subscribers.
func (b *Bus) PublishProgress(p Progress) {
	b.bus.Publish(TopicProgress, p)
}

// OnProgress subscribes fn to upload progress.
func (b *Bus) OnProgress(fn func(Progress)) error {
	return b.bus.Subscribe(TopicProgress, fn)
}

// ProgressObserver publishes a batch's progress on the bus.
func (b *Bus) ProgressObserver(batchID string) upload.ProgressObserver {
	return upload.ProgressFunc(func(done, total int) {
		b.PublishProgress(Progress{BatchID: batchID, Done: done, Total: total})
	})
}
