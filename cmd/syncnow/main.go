package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/ncecere/spendwatch/internal/app"
	"github.com/ncecere/spendwatch/internal/config"
	"github.com/ncecere/spendwatch/internal/database"
	"github.com/ncecere/spendwatch/internal/redisclient"
)

// syncnow runs one sync pass outside the server, either for every active
// provider or for a single provider owned by -user.
func main() {
	configFile := flag.String("config", "", "path to config file")
	userFlag := flag.String("user", "", "owner id when syncing a single provider")
	providerFlag := flag.String("provider", "", "provider id to sync")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall deadline")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	cfg, err := config.Load(config.Options{ConfigFile: *configFile})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	dbPool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	redisClient := redisclient.New(cfg.Redis)
	container, err := app.NewContainer(ctx, cfg, dbPool, redisClient)
	if err != nil {
		log.Fatalf("build container: %v", err)
	}
	defer container.Close(context.Background())

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if *providerFlag != "" {
		userID, err := uuid.Parse(*userFlag)
		if err != nil {
			log.Fatalf("invalid -user: %v", err)
		}
		providerID, err := uuid.Parse(*providerFlag)
		if err != nil {
			log.Fatalf("invalid -provider: %v", err)
		}
		n, err := container.Syncer.SyncProvider(ctx, userID, providerID)
		if err != nil {
			log.Fatalf("sync provider: %v", err)
		}
		_ = enc.Encode(map[string]any{"provider_id": providerID, "records_synced": n})
		return
	}

	results, err := container.Syncer.SyncAll(ctx)
	if err != nil {
		log.Fatalf("sync all: %v", err)
	}
	_ = enc.Encode(results)
}
