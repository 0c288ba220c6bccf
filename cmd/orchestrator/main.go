package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/checkpoint"
	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/config"
	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/jobs"
	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/llm"
	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/persistence"
	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/service"
	"github.com/isndotbiz/llm-optimization-framework-sub001/pkg/log"
)

func main() {
	// .env is optional; real env vars win either way.
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	log.InitLogger(log.ParseLevel(cfg.Orchestrator.LogLevel))

	store, err := checkpoint.NewFileStore(cfg.Orchestrator.CheckpointDir())
	if err != nil {
		log.Fatal("Failed to open checkpoint store: %v", err)
	}

	registry, err := persistence.NewSQLiteStore(cfg.Orchestrator.RegistryPath())
	if err != nil {
		log.Fatal("Failed to open run registry: %v", err)
	}
	defer registry.Close()

	model, err := llm.NewClient(&llm.Config{
		APIKey:      cfg.LLM.APIKey,
		APIURL:      cfg.LLM.APIURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		log.Fatal("Failed to create LLM client: %v", err)
	}

	queue := jobs.NewQueue(cfg.Orchestrator.QueueWorkers, registry)
	svc := service.NewOrchestratorService(*cfg, queue, store, model, cron.New())

	if err := svc.Start(context.Background()); err != nil {
		log.Fatal("Failed to start orchestrator: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")
	svc.Stop()
}
