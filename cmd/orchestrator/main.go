package main

import (
	"context"
	"flag"
	"log"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/jcmexdev/phonecall-sagas/internal/config"
	"github.com/jcmexdev/phonecall-sagas/internal/events"
	"github.com/jcmexdev/phonecall-sagas/internal/httpx"
	"github.com/jcmexdev/phonecall-sagas/internal/orchestrator"
	"github.com/jcmexdev/phonecall-sagas/internal/phonecall/sagastore/sqlite"
	"github.com/jcmexdev/phonecall-sagas/internal/pkg/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	telemetry.InitLogger(cfg.Telemetry.LogLevel)

	ctx := context.Background()

	if cfg.Telemetry.OTLPEndpoint != "" {
		shutdown, err := telemetry.SetupTracer(ctx, "phonecall-orchestrator", cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			log.Fatalf("setup tracer: %v", err)
		}
		defer shutdown(context.Background())
	}

	repo, err := sqlite.Open(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("open saga store: %v", err)
	}
	defer repo.Close()

	svc := orchestrator.NewService(repo)

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer client.Close()

		subscriber := events.NewSubscriber(client, svc)
		go func() {
			if err := subscriber.Run(ctx); err != nil && ctx.Err() == nil {
				log.Fatalf("event subscriber stopped: %v", err)
			}
		}()
	}

	router := httpx.NewRouter(httpx.NewHandler(svc))

	log.Printf("Phone call orchestrator running on %s", cfg.HTTP.Addr)
	if err := http.ListenAndServe(cfg.HTTP.Addr, router); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}
