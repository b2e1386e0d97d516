package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"graphsync/infrastructure/config"
	"graphsync/infrastructure/di"
)

var container *di.Container

func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	container, _, err = di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
}

// Handler drains pending knowledge events on a schedule until a pass
// publishes nothing
func Handler(ctx context.Context, event events.CloudWatchEvent) error {
	total := 0
	for {
		n, err := container.Outbox.ProcessBatch(ctx)
		if err != nil {
			container.Logger.Error("Outbox pass failed",
				zap.String("trigger", event.ID),
				zap.Int("published", total),
				zap.Error(err))
			return err
		}
		total += n
		if n == 0 {
			break
		}
	}
	container.Logger.Info("Outbox drained", zap.String("trigger", event.ID), zap.Int("published", total))
	return nil
}

func main() {
	lambda.Start(Handler)
}
