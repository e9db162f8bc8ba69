// Command worker consumes background jobs from the AMQP broker.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"multiproduct/config"
	"multiproduct/database"
	"multiproduct/queue"
	"multiproduct/services/notification"
	"multiproduct/tasks"
	"multiproduct/utils"
)

func main() {
	cfg := config.LoadConfig()
	if cfg.AMQPURL == "" {
		log.Fatal("AMQP_URL is required to run the worker")
	}
	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(slogger)

	db := database.ConnectDb(cfg)

	registry := queue.NewRegistry()
	tasks.NewRunner(utils.NewMailer(cfg), utils.NewSMSSender(cfg), notification.NewService(db), cfg.FrontendURL, slogger).Register(registry)

	consumer, err := queue.NewConsumer(cfg.AMQPURL, registry, cfg.QueueWorkers, slogger)
	if err != nil {
		log.Fatalf("Failed to connect to the job broker: %v", err)
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slogger.Info("worker started", "kinds", len(registry.Kinds()))
	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Worker stopped: %v", err)
	}
}
