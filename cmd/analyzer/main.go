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
	maxPosts      = flag.Int("max_posts", 0, "override MAX_POSTS_PER_RUN when positive")
)

func init() {
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
}

// Analyzes stored posts that are still unanalyzed, no crawling.
func main() {
	flag.Parse()
	InitLogger("zsxqintel-analyzer")

	cfg, err := app_config.Load(*appConfigPath)
	if err != nil {
		Log.Fatalf("fail to load app config: %v", err)
	}
	if *maxPosts > 0 {
		cfg.MAX_POSTS_PER_RUN = *maxPosts
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := pipeline.BuildComponents(ctx, cfg, pipeline.BuildOptions{Analyzer: true})
	if err != nil {
		Log.Fatalf("fail to build pipeline: %v", err)
	}
	defer components.Close()

	summary, err := components.Processor.RunAnalysis(ctx)
	if err != nil {
		Log.Errorf("analysis stopped: %v", err)
		components.Close()
		os.Exit(1)
	}
	Log.Infof("analysis finished: analyzed %d, skipped %d, valuable %d, failed %d",
		summary.Analyzed, summary.Skipped, summary.Valuable, summary.Failed)
}
