package modules

import "sync"

// readySignal is closed once a module has subscribed to the event bus. The
// bus is not persistent, so publishers wait on it before the first message.
type readySignal struct {
	once sync.Once
	ch   chan struct{}
}

func newReadySignal() *readySignal {
	return &readySignal{ch: make(chan struct{})}
}

func (r *readySignal) markReady() {
	r.once.Do(func() { close(r.ch) })
}

func (r *readySignal) Ready() <-chan struct{} {
	return r.ch
}
