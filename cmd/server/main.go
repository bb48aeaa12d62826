package main

import (
	"flag"

	"github.com/gin-gonic/gin"

	"github.com/Luismorlan/zsxqintel/app_config"
	"github.com/Luismorlan/zsxqintel/pipeline"
	"github.com/Luismorlan/zsxqintel/server"
	"github.com/Luismorlan/zsxqintel/utils/dotenv"
	. "github.com/Luismorlan/zsxqintel/utils/log"
)

var appConfigPath = flag.String("app_config_path", "", "optional path to a yaml app config")

func init() {
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
}

func main() {
	flag.Parse()
	InitLogger("zsxqintel-server")

	cfg, err := app_config.Load(*appConfigPath)
	if err != nil {
		Log.Fatalf("fail to load app config: %v", err)
	}
	if dotenv.IsProdEnv() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, s, err := pipeline.OpenStore(cfg)
	if err != nil {
		Log.Fatalf("fail to open store: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	router := server.NewRouter(&server.Handler{Store: s})
	router.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"message": "zsxqintel status - API not found"})
	})

	Log.Infof("api server starts up on %s", cfg.STATUS_SERVER_ADDR)
	if err := router.Run(cfg.STATUS_SERVER_ADDR); err != nil {
		Log.Fatalf("api server stopped: %v", err)
	}
}
