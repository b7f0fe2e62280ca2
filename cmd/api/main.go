package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/quicksend/quicksend/internal/auth"
	"github.com/quicksend/quicksend/internal/config"
	"github.com/quicksend/quicksend/internal/file"
	"github.com/quicksend/quicksend/internal/logger"
	"github.com/quicksend/quicksend/internal/notify"
	"github.com/quicksend/quicksend/internal/quota"
	"github.com/quicksend/quicksend/internal/server"
	"github.com/quicksend/quicksend/internal/storage"
	"github.com/quicksend/quicksend/internal/sweeper"
	"github.com/quicksend/quicksend/internal/thumbnail"
	"go.uber.org/zap"
)

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		zlog.Fatal("connect postgres", zap.Error(err))
	}
	defer dbPool.Close()

	minioClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		zlog.Fatal("connect minio", zap.Error(err))
	}
	if err := storage.EnsureBucket(ctx, minioClient, cfg.MinIO.Bucket, cfg.MinIO.Region); err != nil {
		zlog.Fatal("ensure bucket", zap.Error(err))
	}
	blobs := storage.NewBlobStore(minioClient, cfg.MinIO.Bucket)

	natsConn, err := storage.NewNATSConn(cfg.NATS)
	if err != nil {
		zlog.Fatal("connect nats", zap.Error(err))
	}
	defer natsConn.Drain()

	quotaRepo := quota.NewRepository(dbPool)
	ledger := quota.NewLedger(quotaRepo, cfg.Policy.DefaultQuota)

	authRepo := auth.NewRepository(dbPool)
	authService := auth.NewService(authRepo, cfg.Auth)
	authService.UseProfileProvisioner(ledger)

	fileRepo := file.NewRepository(dbPool)
	events := file.NewNATSPublisher(natsConn, cfg.NATS.UploadSubject)
	fileService := file.NewService(fileRepo, blobs, ledger, events, cfg.Policy, zlog)

	worker := thumbnail.NewWorker(blobs, fileRepo, cfg.Policy.ThumbnailMaxW, cfg.Policy.ThumbnailMaxH, zlog)
	sub, err := worker.Subscribe(natsConn, cfg.NATS.UploadSubject)
	if err != nil {
		zlog.Fatal("subscribe thumbnail worker", zap.Error(err))
	}
	defer sub.Unsubscribe()

	reaper := sweeper.New(fileRepo, blobs, ledger, cfg.Policy.MaxDownloads, zlog)
	go reaper.Run(ctx, cfg.Policy.SweepInterval)

	var mailer notify.Mailer
	if cfg.SMTP.Enabled {
		mailer = notify.NewSMTPMailer(cfg.SMTP)
	}

	router := server.NewRouter(server.Dependencies{
		Config:      cfg,
		DB:          dbPool,
		ObjectStore: minioClient,
		AuthService: authService,
		FileDeps: file.HandlerDeps{
			Service:   fileService,
			Ledger:    ledger,
			Mailer:    mailer,
			PublicURL: cfg.Server.PublicURL,
			Log:       zlog,
		},
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		zlog.Info("QuickSend API listening", zap.String("address", cfg.Server.Address()))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	zlog.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zlog.Error("shutdown error", zap.Error(err))
	}
}
