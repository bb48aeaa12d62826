package panoptic

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	Logger "github.com/Luismorlan/zsxqintel/utils/log"
)

// Engine owns the daemon's root context and the cycle event bus, and runs
// the scheduler, reporter and status server side by side until shutdown.
type Engine struct {
	// Each module runs in its own goroutine for as long as the engine lives.
	Modules []Module

	ctx    context.Context
	cancel context.CancelFunc

	// Carries TOPIC_CYCLE_FINISHED summaries from the scheduler to the
	// reporter and the status server. May be nil when no module publishes.
	EventBus *gochannel.GoChannel
}

// NewEngine takes ownership of cancel, Shutdown calls it.
func NewEngine(ms []Module, ctx context.Context, cancel context.CancelFunc, e *gochannel.GoChannel) *Engine {
	return &Engine{
		Modules:  ms,
		ctx:      ctx,
		cancel:   cancel,
		EventBus: e,
	}
}

// Run blocks until every module returned, which happens after Shutdown.
func (e *Engine) Run() {
	var wg sync.WaitGroup
	for _, m := range e.Modules {
		wg.Add(1)
		go func(m Module) {
			defer wg.Done()
			Logger.Log.Infof("module %s started", m.Name())
			RunModuleWithGracefulRestart(e.ctx, &m)
			Logger.Log.Infof("module %s stopped", m.Name())
		}(m)
	}
	wg.Wait()
}

// Shutdown cancels the root context, lets every module release what the
// context does not cover, then closes the bus.
func (e *Engine) Shutdown() {
	Logger.Log.Info("shutting down, an in-flight cycle stops at its next wait")
	e.cancel()

	var wg sync.WaitGroup
	for _, m := range e.Modules {
		wg.Add(1)
		go func(m Module) {
			defer wg.Done()
			m.Shutdown()
			Logger.Log.Infof("module %s shut down", m.Name())
		}(m)
	}
	wg.Wait()

	if e.EventBus == nil {
		return
	}
	if err := e.EventBus.Close(); err != nil {
		Logger.Log.Warnf("fail to close event bus: %v", err)
	}
}
