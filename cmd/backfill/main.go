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

var appConfigPath = flag.String("app_config_path", "", "optional path to a yaml app config")

func init() {
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
}

// Re-fetches everything and resets posts whose content changed since they
// were stored, typically because replies were added.
func main() {
	flag.Parse()
	InitLogger("zsxqintel-backfill")

	cfg, err := app_config.Load(*appConfigPath)
	if err != nil {
		Log.Fatalf("fail to load app config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := pipeline.BuildComponents(ctx, cfg, pipeline.BuildOptions{Source: true})
	if err != nil {
		Log.Fatalf("fail to build pipeline: %v", err)
	}
	defer components.Close()

	if _, err := components.Processor.RunBackfill(ctx); err != nil {
		Log.Errorf("backfill failed: %v", err)
		components.Close()
		os.Exit(1)
	}
}
