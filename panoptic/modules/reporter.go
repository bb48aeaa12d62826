package modules

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/Luismorlan/zsxqintel/panoptic"
	"github.com/Luismorlan/zsxqintel/pipeline"
	Logger "github.com/Luismorlan/zsxqintel/utils/log"
)

// MetricsClient is the part of *statsd.Client the reporter uses.
type MetricsClient interface {
	Incr(name string, tags []string, rate float64) error
	Count(name string, value int64, tags []string, rate float64) error
	Gauge(name string, value float64, tags []string, rate float64) error
	Flush() error
}

type ReporterConfig struct {
	Name string
}

// Reporter's job is to listen to finished cycles and aggregate results,
// sending to Datadog for monitoring purpose.
type Reporter struct {
	Config ReporterConfig

	Statsd MetricsClient

	EventBus *gochannel.GoChannel

	ready *readySignal
}

func NewReporter(config ReporterConfig, client MetricsClient, e *gochannel.GoChannel) *Reporter {
	return &Reporter{
		Config:   config,
		Statsd:   client,
		EventBus: e,
		ready:    newReadySignal(),
	}
}

// Ready is closed once the reporter listens for cycle summaries.
func (r *Reporter) Ready() <-chan struct{} {
	return r.ready.Ready()
}

// ReportCycle sends the counters of one finished cycle to datadog.
func ReportCycle(summary *pipeline.CycleSummary, client MetricsClient) {
	tags := []string{
		"group_id:" + summary.GroupId,
		"status:" + string(panoptic.StatusOf(summary)),
	}

	if err := client.Incr(panoptic.DDOG_CYCLE_COUNTER, tags, 1); err != nil {
		Logger.Log.Infoln("cannot report cycle state", err)
	}
	if !summary.StartedAt.IsZero() && !summary.FinishedAt.IsZero() {
		client.Gauge(panoptic.DDOG_CYCLE_DURATION_GAUGE, summary.FinishedAt.Sub(summary.StartedAt).Seconds(), tags, 1)
	}

	counts := map[string]int{
		panoptic.DDOG_POSTS_FETCHED_COUNTER:  summary.Fetched,
		panoptic.DDOG_POSTS_NEW_COUNTER:      summary.New,
		panoptic.DDOG_FETCH_FAILED_COUNTER:   summary.FailedFetches,
		panoptic.DDOG_POSTS_ANALYZED_COUNTER: summary.Analysis.Analyzed,
		panoptic.DDOG_POSTS_SKIPPED_COUNTER:  summary.Analysis.Skipped,
		panoptic.DDOG_POSTS_VALUABLE_COUNTER: summary.Analysis.Valuable,
		panoptic.DDOG_POSTS_FAILED_COUNTER:   summary.Analysis.Failed,
	}
	for name, value := range counts {
		if err := client.Count(name, int64(value), tags, 1); err != nil {
			Logger.Log.Infof("cannot report %s: %v", name, err)
		}
	}

	if summary.AnalysisRan {
		remaining := summary.Analysis.Unanalyzed - int64(summary.Analysis.Analyzed+summary.Analysis.Skipped)
		client.Gauge(panoptic.DDOG_UNANALYZED_GAUGE, float64(remaining), tags, 1)
	}
}

func (r *Reporter) ProcessCycleSummaries(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	messages, err := r.EventBus.Subscribe(ctx, panoptic.TOPIC_CYCLE_FINISHED)
	if err != nil {
		return err
	}
	r.ready.markReady()

	for msg := range messages {
		msg.Ack()

		summary, err := panoptic.ParseCycleSummaryMessage(msg)
		if err != nil {
			Logger.Log.Errorf("drop malformed cycle summary: %v", err)
			continue
		}

		ReportCycle(summary, r.Statsd)
	}

	return nil
}

func (r *Reporter) RunModule(ctx context.Context) error {
	return r.ProcessCycleSummaries(ctx)
}

func (r *Reporter) Name() string {
	return r.Config.Name
}

func (r *Reporter) Shutdown() {
	if r.Statsd == nil {
		return
	}
	if err := r.Statsd.Flush(); err != nil {
		Logger.Log.Warnf("fail to flush statsd: %v", err)
	}
}
