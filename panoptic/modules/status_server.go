package modules

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"

	"github.com/Luismorlan/zsxqintel/panoptic"
	"github.com/Luismorlan/zsxqintel/pipeline"
	"github.com/Luismorlan/zsxqintel/server"
	"github.com/Luismorlan/zsxqintel/store"
	Logger "github.com/Luismorlan/zsxqintel/utils/log"
)

const statusServerShutdownTimeout = 5 * time.Second

type StatusServerConfig struct {
	Name string
	Addr string
}

// StatusServer serves the read-only status API inside the daemon and keeps
// the last cycle summary seen on the event bus.
type StatusServer struct {
	Config StatusServerConfig

	EventBus *gochannel.GoChannel

	httpServer *http.Server
	ready      *readySignal

	m         sync.RWMutex
	lastCycle *pipeline.CycleSummary
}

func NewStatusServer(config StatusServerConfig, s *store.PostStore, e *gochannel.GoChannel) *StatusServer {
	ss := &StatusServer{
		Config:   config,
		EventBus: e,
		ready:    newReadySignal(),
	}
	ss.httpServer = &http.Server{
		Addr:    config.Addr,
		Handler: server.NewRouter(&server.Handler{Store: s, Cycles: ss}),
	}
	return ss
}

// Ready is closed once the server tracks cycle summaries.
func (s *StatusServer) Ready() <-chan struct{} {
	return s.ready.Ready()
}

func (s *StatusServer) LastCycle() *pipeline.CycleSummary {
	s.m.RLock()
	defer s.m.RUnlock()
	return s.lastCycle
}

func (s *StatusServer) trackCycles(ctx context.Context) error {
	messages, err := s.EventBus.Subscribe(ctx, panoptic.TOPIC_CYCLE_FINISHED)
	if err != nil {
		return err
	}
	s.ready.markReady()
	for msg := range messages {
		msg.Ack()
		summary, err := panoptic.ParseCycleSummaryMessage(msg)
		if err != nil {
			Logger.Log.Errorf("drop malformed cycle summary: %v", err)
			continue
		}
		s.m.Lock()
		s.lastCycle = summary
		s.m.Unlock()
	}
	return nil
}

func (s *StatusServer) RunModule(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.EventBus != nil {
		go func() {
			if err := s.trackCycles(ctx); err != nil {
				Logger.Log.Errorf("status server stops tracking cycles: %v", err)
			}
		}()
	}

	Logger.Log.Infof("status server listening on %s", s.Config.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return errors.Wrap(err, "status server stopped")
}

func (s *StatusServer) Name() string {
	return s.Config.Name
}

func (s *StatusServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), statusServerShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		Logger.Log.Warnf("fail to shutdown status server: %v", err)
	}
}
