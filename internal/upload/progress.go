package upload

// ProgressObserver receives the completed count after every task reaches a
// terminal state. Calls are serialized and done never decreases.
type ProgressObserver interface {
	OnProgress(done, total int)
}

// ProgressFunc adapts a function to ProgressObserver.
type ProgressFunc func(done, total int)

// OnProgress calls f.
func (f ProgressFunc) OnProgress(done, total int) { f(done, total) }

// MultiObserver fans progress out to several observers in order.
type MultiObserver []ProgressObserver

// OnProgress forwards to every non-nil observer.
func (m MultiObserver) OnProgress(done, total int) {
	for _, o := range m {
		if o != nil {
			o.OnProgress(done, total)
		}
	}
}
