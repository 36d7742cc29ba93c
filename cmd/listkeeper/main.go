package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"listkeeper/internal/bot"
	"listkeeper/internal/config"
	"listkeeper/internal/repository"
	"listkeeper/internal/service"
	"listkeeper/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	tabular, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	if closeStore != nil {
		defer closeStore()
	}

	taskRepo := repository.NewTaskRepository(tabular)
	metadataStore := repository.NewMetadataStore(tabular, cfg.MetadataCacheTTL)

	telegramBot, err := bot.New(cfg.TelegramToken, cfg.Timezone)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	taskSvc := service.NewTaskService(taskRepo, metadataStore, telegramBot, cfg.Timezone)
	telegramBot.SetTaskService(taskSvc)
	sweepSvc := service.NewSweepService(taskRepo, metadataStore, telegramBot, cfg.Timezone)

	scheduler := cron.New(cron.WithLocation(cfg.Timezone))
	spec := fmt.Sprintf("@every %ds", int(cfg.SweepInterval.Seconds()))
	if _, err := scheduler.AddFunc(spec, func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), cfg.SweepInterval)
		defer cancel()
		if err := sweepSvc.Sweep(sweepCtx, time.Now().In(cfg.Timezone)); err != nil {
			log.Printf("[warn] sweep: %v", err)
		}
	}); err != nil {
		log.Fatalf("schedule sweep: %v", err)
	}
	scheduler.Start()
	defer func() {
		<-scheduler.Stop().Done()
	}()

	log.Println("[info] listkeeper bot started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped with error: %v", err)
	}
	log.Println("[info] shutdown complete")
}

func newStore(ctx context.Context, cfg config.Config) (store.TabularStore, func() error, error) {
	switch cfg.StoreBackend {
	case config.BackendSheets:
		st, err := store.NewSheets(ctx, cfg.SpreadsheetID, cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil
	case config.BackendSQLite:
		st, err := store.NewSQLite(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.StoreBackend)
	}
}
