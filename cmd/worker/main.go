// Command worker consumes sync requests from RabbitMQ and runs them.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/iliyamo/boxoffice-sync/internal/app"
	"github.com/iliyamo/boxoffice-sync/internal/queue"
)

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle := func(ctx context.Context, req queue.SyncRequest) error {
		a.Log.Info("sync request",
			zap.String("kind", req.Kind),
			zap.Uint64("provider_id", req.ProviderID),
			zap.Uint64("production_link_id", req.ProductionLinkID))
		return a.Runner.Dispatch(ctx, req)
	}
	err = queue.StartSyncConsumer(ctx, a.Config.AMQPURL, handle, a.Log)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Log.Error("consumer stopped", zap.Error(err))
	}
	a.Log.Info("worker stopped")
}
