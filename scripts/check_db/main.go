package main

import (
	"flag"
	"fmt"

	"github.com/Luismorlan/zsxqintel/app_config"
	"github.com/Luismorlan/zsxqintel/pipeline"
	"github.com/Luismorlan/zsxqintel/utils"
	"github.com/Luismorlan/zsxqintel/utils/dotenv"
	. "github.com/Luismorlan/zsxqintel/utils/log"
)

var (
	appConfigPath = flag.String("app_config_path", "", "optional path to a yaml app config")
	listPending   = flag.Int("list", 5, "how many unanalyzed posts to print")
)

// Prints which store is in use and how much work is pending.
func main() {
	flag.Parse()
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}

	cfg, err := app_config.Load(*appConfigPath)
	if err != nil {
		Log.Fatalf("fail to load app config: %v", err)
	}
	db, s, err := pipeline.OpenStore(cfg)
	if err != nil {
		Log.Fatalf("fail to open store: %v", err)
	}

	if utils.IsPostgres(db) {
		fmt.Println("store: postgres")
	} else {
		fmt.Printf("store: sqlite (%s)\n", cfg.SQLITE_PATH)
	}

	total, err := s.CountAll()
	if err != nil {
		Log.Fatalf("fail to count posts: %v", err)
	}
	unanalyzed, err := s.CountUnanalyzed()
	if err != nil {
		Log.Fatalf("fail to count unanalyzed posts: %v", err)
	}
	fmt.Printf("total posts: %d\nunanalyzed: %d\n", total, unanalyzed)

	if *listPending <= 0 || unanalyzed == 0 {
		return
	}
	posts, err := s.ListUnanalyzed(*listPending)
	if err != nil {
		Log.Fatalf("fail to list unanalyzed posts: %v", err)
	}
	for _, post := range posts {
		fmt.Printf("- %s [%s] %s %s\n", post.Id, post.SectionName, post.CreateTime,
			utils.TruncateRunes(post.Content, 40))
	}
}
