package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Luismorlan/zsxqintel/app_config"
	"github.com/Luismorlan/zsxqintel/collector"
	"github.com/Luismorlan/zsxqintel/utils/dotenv"
	. "github.com/Luismorlan/zsxqintel/utils/log"
)

var (
	appConfigPath = flag.String("app_config_path", "", "optional path to a yaml app config")
	groupId       = flag.String("group_id", "", "group to inspect, defaults to ZSXQ_GROUP_ID")
	scope         = flag.String("scope", collector.ScopeAll, "topic scope: all, digests or q_and_a")
	count         = flag.Int("count", 5, "topics per request")
)

func dump(title string, raw json.RawMessage) {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		out.Reset()
		out.Write(raw)
	}
	fmt.Printf("===== %s =====\n%s\n\n", title, out.String())
}

// Dumps the raw JSON of a group's groups, columns and topics endpoints, used
// when a field stops decoding.
func main() {
	flag.Parse()
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}

	cfg, err := app_config.Load(*appConfigPath)
	if err != nil {
		Log.Fatalf("fail to load app config: %v", err)
	}
	if cfg.ZSXQ_COOKIE == "" {
		Log.Fatal("ZSXQ_COOKIE is required")
	}
	client := collector.NewZsxqClient(cfg.ZSXQ_COOKIE, collector.WithApiBase(cfg.ZSXQ_API_BASE))
	ctx := context.Background()

	id := *groupId
	if id == "" {
		id = cfg.ZSXQ_GROUP_ID
	}
	if id == "" {
		if extracted, ok := collector.ExtractGroupIdFromUrl(cfg.ZSXQ_GROUP_URL); ok {
			id = extracted
		}
	}

	raw, err := client.GetRaw(ctx, "/groups", nil)
	if err != nil {
		Log.Fatalf("fail to list groups: %v", err)
	}
	dump("groups", raw)
	if id == "" {
		Log.Info("no group given, pass -group_id to inspect one")
		return
	}

	raw, err = client.GetRaw(ctx, "/groups/"+id+"/columns", nil)
	if err != nil {
		Log.Errorf("fail to list columns: %v", err)
	} else {
		dump("columns of "+id, raw)
	}

	query := url.Values{}
	query.Set("scope", *scope)
	query.Set("count", strconv.Itoa(*count))
	raw, err = client.GetRaw(ctx, "/groups/"+id+"/topics", query)
	if err != nil {
		Log.Fatalf("fail to list topics: %v", err)
	}
	dump("topics ("+*scope+") of "+id, raw)
}
