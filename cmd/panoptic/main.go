package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/Luismorlan/zsxqintel/app_config"
	"github.com/Luismorlan/zsxqintel/panoptic"
	"github.com/Luismorlan/zsxqintel/panoptic/modules"
	"github.com/Luismorlan/zsxqintel/pipeline"
	"github.com/Luismorlan/zsxqintel/utils/dotenv"
	. "github.com/Luismorlan/zsxqintel/utils/log"
)

var (
	AppConfigPath *string
	// Configuration to customize binary startup.
	AppConfig app_config.AppConfig
)

// init() will always be called on before the execution of main function.
func init() {
	AppConfigPath = flag.String("app_config_path", "", "optional path to a yaml app config")
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
}

func NewDogStatsdClient(addr string) *statsd.Client {
	statsd, err := statsd.New(addr)
	if err != nil {
		panic(err)
	}
	return statsd
}

func main() {
	flag.Parse()
	InitLogger("zsxqintel-panoptic")

	var err error
	AppConfig, err = app_config.Load(*AppConfigPath)
	if err != nil {
		Log.Fatalf("fail to load app config: %v", err)
	}
	interval, _ := AppConfig.ScheduleInterval()

	ctx, cancel := context.WithCancel(context.Background())
	components, err := pipeline.BuildComponents(ctx, AppConfig, pipeline.BuildOptions{Source: true, Analyzer: true})
	if err != nil {
		Log.Fatalf("fail to build pipeline: %v", err)
	}
	defer components.Close()

	scheduler := modules.NewScheduler(
		modules.SchedulerConfig{Name: "scheduler", Interval: interval},
		components.Processor,
		nil,
	)

	if AppConfig.RUN_ONCE {
		Log.Info("RUN_ONCE is set, running a single cycle")
		summary := scheduler.RunOnce(ctx)
		cancel()
		if summary.Error != "" {
			components.Close()
			os.Exit(1)
		}
		return
	}

	eventbus := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            100,
			BlockPublishUntilSubscriberAck: false,
		},
		watermill.NewStdLogger(false, false),
	)
	scheduler.EventBus = eventbus

	// Status server exposes store counters and the last cycle over http.
	statusServer := modules.NewStatusServer(
		modules.StatusServerConfig{Name: "status_server", Addr: AppConfig.STATUS_SERVER_ADDR},
		components.Store,
		eventbus,
	)
	scheduler.StartAfter(statusServer.Ready())

	// Initialize all engine modules here.
	ms := []panoptic.Module{
		// Scheduler runs the crawl and analysis cycle and publishes a summary
		// onto EventBus after each cycle, once the subscribers below listen.
		scheduler,
		statusServer,
	}
	if AppConfig.STATSD_ADDR != "" {
		// Reporter reports the cycle metrics to datadog for monitoring purpose.
		reporter := modules.NewReporter(
			modules.ReporterConfig{Name: "reporter"}, NewDogStatsdClient(AppConfig.STATSD_ADDR), eventbus)
		scheduler.StartAfter(reporter.Ready())
		ms = append(ms, reporter)
	}

	engine := panoptic.NewEngine(ms, ctx, cancel, eventbus)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		Log.Infof("received %s", sig)
		engine.Shutdown()
	}()

	// blocking call.
	engine.Run()

	Log.Info("engine stopped execution.")
}
