package changefeed

import (
	"photo-ingest/internal/logging"
	"photo-ingest/internal/metrics"
)

// Invalidator drops a cached key.
type Invalidator interface {
	Invalidate(key string) bool
}

// InvalidateOn returns a feed handler that invalidates the event's key in
// every invalidator and then republishes the event on bus. bus may be nil.
func InvalidateOn(bus *Bus, invs ...Invalidator) func(Event) {
	return func(ev Event) {
		key := ev.Key()
		metrics.ChangeFeedEvents.WithLabelValues(string(ev.Type)).Inc()

		removed := false
		for _, inv := range invs {
			if inv != nil && inv.Invalidate(key) {
				removed = true
			}
		}
		logging.Logger().Debug().
			Str("type", string(ev.Type)).
			Str("key", key).
			Bool("removed", removed).
			Msg("change event")

		if bus != nil {
			bus.PublishChange(ev)
		}
	}
}

// InvalidatorFunc adapts a function to Invalidator.
type InvalidatorFunc func(key string) bool

// Invalidate calls f.
func (f InvalidatorFunc) Invalidate(key string) bool { return f(key) }
