package main

import (
	"context"
	"os"
	"time"

	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/config"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/docstore"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/ledger"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/logger"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/metrics"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/recurrent"
)

// recurrentd performs a single pass over the due recurrence queue and exits.
// Cron owns the schedule; the claim's row locks make an overlapping run skip
// already-claimed entries instead of double-charging.
func main() {
	logger.SetService("recurrentd")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", map[string]interface{}{
			"error": err.Error(),
		})
	}

	store, err := ledger.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open ledger database", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	docs, err := docstore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, store)
	if err != nil {
		logger.Fatal("failed to connect to document store", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		docs.Close(closeCtx)
	}()

	metrics.Register()

	executor := recurrent.NewExecutor(
		recurrent.LedgerQueue{Store: store},
		docs,
		recurrent.NewGatewayClient(),
		store,
		recurrent.Config{
			InitiateURL: cfg.Gazprom.InitiateURL,
			MerchID:     cfg.Gazprom.MerchID,
			MainURL:     cfg.MainURL,
			FailURL:     cfg.Gazprom.FailURL,
			BatchSize:   cfg.Recurrent.BatchSize,
		},
	)

	started := time.Now()
	if err := executor.Run(ctx); err != nil {
		logger.Error("recurrence pass failed", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	logger.Info("recurrence pass complete", map[string]interface{}{
		"duration": time.Since(started).String(),
	})
}
