package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/quicksend/quicksend/internal/config"
	"github.com/quicksend/quicksend/internal/logger"
	"github.com/quicksend/quicksend/internal/quota"
	"github.com/quicksend/quicksend/internal/storage"
	"go.uber.org/zap"
)

// One-shot maintenance command: rewrites every owner's used_storage from the
// live file records. Run it while upload traffic is quiet; the correlated
// update takes no lock against in-flight credits.
func main() {
	_ = godotenv.Load()

	zlog, err := logger.Init()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zlog.Sync()

	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal("load config", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		zlog.Fatal("connect postgres", zap.Error(err))
	}
	defer dbPool.Close()

	ledger := quota.NewLedger(quota.NewRepository(dbPool), cfg.Policy.DefaultQuota)

	start := time.Now()
	corrected, err := ledger.Reconcile(ctx)
	if err != nil {
		zlog.Fatal("reconcile usage", zap.Error(err))
	}

	zlog.Info("usage reconciliation completed",
		zap.Int64("profiles_corrected", corrected),
		zap.Duration("elapsed", time.Since(start)))
}
