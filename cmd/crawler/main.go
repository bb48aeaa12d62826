package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/Luismorlan/zsxqintel/app_config"
	"github.com/Luismorlan/zsxqintel/pipeline"
	"github.com/Luismorlan/zsxqintel/utils/dotenv"
	. "github.com/Luismorlan/zsxqintel/utils/log"
)

var (
	appConfigPath = flag.String("app_config_path", "", "optional path to a yaml app config")
	noAnalyze     = flag.Bool("no_analyze", false, "only crawl and store, never call the AI backend")
)

func init() {
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
}

// Runs one crawl cycle, followed by analysis of new posts unless disabled.
func main() {
	flag.Parse()
	InitLogger("zsxqintel-crawler")

	cfg, err := app_config.Load(*appConfigPath)
	if err != nil {
		Log.Fatalf("fail to load app config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	analyze := cfg.AUTO_ANALYZE_AFTER_CRAWL && !*noAnalyze
	components, err := pipeline.BuildComponents(ctx, cfg, pipeline.BuildOptions{Source: true, Analyzer: analyze})
	if err != nil {
		Log.Fatalf("fail to build pipeline: %v", err)
	}
	defer components.Close()

	summary, err := components.Processor.RunCycle(ctx)
	if err != nil {
		Log.Errorf("crawl failed: %v", err)
		components.Close()
		os.Exit(1)
	}
	Log.Infof("crawl finished: fetched %d, new %d, analyzed %d, valuable %d",
		summary.Fetched, summary.New, summary.Analysis.Analyzed, summary.Analysis.Valuable)
}
