package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"meeting-insights-go/internal/api"
	"meeting-insights-go/internal/blob"
	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/jobs"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/store"
	"meeting-insights-go/internal/summarizer"
	"meeting-insights-go/internal/upload"
)

func main() {
	_ = godotenv.Load() // loads .env

	cfg, err := config.Load(envOr("CONFIG_PATH", "config.yaml"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	log.WithField("service", "meeting-insights-go").Info("starting service")

	st := store.New()
	if err := st.Load(cfg.Storage.SnapshotPath); err != nil {
		log.WithError(err).Fatal("failed to load state snapshot")
	}
	if touched := st.Recover(); len(touched) > 0 {
		log.WithField("meetings", len(touched)).Warn("settled records interrupted by previous shutdown")
	}

	blobs, err := blob.NewDir(cfg.Storage.BlobDir)
	if err != nil {
		log.WithError(err).Fatal("failed to open blob store")
	}

	var sum summarizer.Summarizer
	if cfg.Summarizer.UseMock {
		log.Warn("using mock summarizer")
		sum = &summarizer.Mock{}
	} else {
		sum = summarizer.NewClient(cfg.Summarizer.URL, cfg.Summarizer.Timeout.Std(), log.Entry)
	}

	manager := jobs.NewManager(st, sum, cfg.Jobs, log.Entry)
	uploads := upload.NewController(st, blobs, manager, cfg.Upload, log.Entry)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go uploads.Run(sweepCtx, time.Minute)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewServer(st, uploads, manager, log).Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server terminated")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown incomplete")
	}
	manager.Shutdown()

	if err := st.Save(cfg.Storage.SnapshotPath); err != nil {
		log.WithError(err).Error("failed to save state snapshot")
	}
	log.Info("stopped")
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
