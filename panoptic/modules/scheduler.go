package modules

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/sirupsen/logrus"

	"github.com/Luismorlan/zsxqintel/panoptic"
	"github.com/Luismorlan/zsxqintel/pipeline"
	Logger "github.com/Luismorlan/zsxqintel/utils/log"
)

type SchedulerConfig struct {
	// Name of the scheduler.
	Name string
	// Pause between the end of one cycle and the start of the next.
	Interval time.Duration
	// Longest wait for subscribers before the first cycle runs anyway.
	SubscriberTimeout time.Duration
}

const defaultSubscriberTimeout = 30 * time.Second

// CycleRunner is implemented by *pipeline.Processor.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*pipeline.CycleSummary, error)
}

// Scheduler runs a pipeline cycle right away and then once per interval.
// Cycles never overlap, a slow cycle just delays the next one.
type Scheduler struct {
	Config SchedulerConfig

	Runner CycleRunner

	EventBus *gochannel.GoChannel

	subscribers []<-chan struct{}
}

// Return a new instance of Scheduler.
func NewScheduler(config SchedulerConfig, runner CycleRunner, e *gochannel.GoChannel) *Scheduler {
	return &Scheduler{
		Config:   config,
		Runner:   runner,
		EventBus: e,
	}
}

// StartAfter delays the first cycle until every channel is closed, so the
// first summary reaches subscribers of the non-persistent bus.
func (s *Scheduler) StartAfter(ready ...<-chan struct{}) {
	s.subscribers = append(s.subscribers, ready...)
}

// waitForSubscribers returns false when ctx is done first.
func (s *Scheduler) waitForSubscribers(ctx context.Context) bool {
	timeout := s.Config.SubscriberTimeout
	if timeout <= 0 {
		timeout = defaultSubscriberTimeout
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for _, ready := range s.subscribers {
		select {
		case <-ready:
		case <-ctx.Done():
			return false
		case <-deadline.C:
			Logger.Log.Warnf("subscribers not ready after %s, starting cycles anyway", timeout)
			return true
		}
	}
	return true
}

// RunOnce executes a single cycle and publishes its summary.
func (s *Scheduler) RunOnce(ctx context.Context) *pipeline.CycleSummary {
	summary, err := s.Runner.RunCycle(ctx)
	if summary == nil {
		summary = &pipeline.CycleSummary{}
	}
	if err != nil {
		summary.Error = err.Error()
		Logger.Log.WithField("run_id", summary.RunId).Errorf("cycle failed: %v", err)
	} else {
		Logger.Log.WithFields(logrus.Fields{
			"run_id":   summary.RunId,
			"fetched":  summary.Fetched,
			"new":      summary.New,
			"analyzed": summary.Analysis.Analyzed,
			"valuable": summary.Analysis.Valuable,
		}).Info("cycle finished")
	}
	s.publish(summary)
	return summary
}

func (s *Scheduler) publish(summary *pipeline.CycleSummary) {
	if s.EventBus == nil {
		return
	}
	msg, err := panoptic.NewCycleSummaryMessage(summary)
	if err != nil {
		Logger.Log.Errorf("fail to encode cycle summary: %v", err)
		return
	}
	if err := s.EventBus.Publish(panoptic.TOPIC_CYCLE_FINISHED, msg); err != nil {
		Logger.Log.Errorf("fail to publish cycle summary: %v", err)
	}
}

func (s *Scheduler) RunModule(ctx context.Context) error {
	if !s.waitForSubscribers(ctx) {
		return nil
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		s.RunOnce(ctx)

		Logger.Log.Infof("next cycle in %s", s.Config.Interval)
		timer := time.NewTimer(s.Config.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (s *Scheduler) Name() string {
	return s.Config.Name
}

func (s *Scheduler) Shutdown() {}
