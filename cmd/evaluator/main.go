// Package main is the entry point for the Structura product lifecycle
// evaluator. It re-evaluates the structured product book on a schedule,
// reconciles expected payments against the operations ledger, and keeps the
// backing SQLite databases healthy.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aristath/structura/internal/book"
	"github.com/aristath/structura/internal/config"
	"github.com/aristath/structura/internal/database"
	"github.com/aristath/structura/internal/evaluation"
	"github.com/aristath/structura/internal/modules/reconciliation"
	"github.com/aristath/structura/internal/prices"
	"github.com/aristath/structura/internal/scheduler"
	"github.com/aristath/structura/internal/work"
	"github.com/aristath/structura/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	logger.SetGlobalLogger(log)
	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting structura evaluator")

	historyDB, ledgerDB, cacheDB, err := openDatabases(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Database initialization failed")
	}
	defer historyDB.Close()
	defer ledgerDB.Close()
	defer cacheDB.Close()

	// Price store with the encoded series cache in front of it
	store := prices.NewStore(historyDB.Conn(), log)
	priceSource := prices.NewCachedSource(store, cacheDB.Conn(), cfg.SeriesCacheMaxAge)

	operations := reconciliation.NewOperationRepository(ledgerDB.Conn(), log)
	service := evaluation.NewService(priceSource, operations, log)
	runner := work.NewRunner(service, cfg.BatchSize, cfg.BatchDelay, log)
	productBook := book.NewFileBook(cfg.ProductBookPath)

	evaluationJob := scheduler.NewEvaluationJob(scheduler.EvaluationJobConfig{
		Book:    productBook,
		Service: service,
		Runner:  runner,
		Matches: operations,
		Log:     log,
	})
	maintenanceJob := scheduler.NewMaintenanceJob(log, historyDB, ledgerDB, cacheDB)

	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.EvaluationSchedule, evaluationJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register evaluation job")
	}
	if err := sched.AddJob(cfg.MaintenanceSchedule, maintenanceJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register maintenance job")
	}

	// One evaluation pass at startup so a fresh deployment has results
	// before the first scheduled run.
	if err := sched.RunNow(evaluationJob); err != nil {
		log.Warn().Err(err).Msg("Initial evaluation run failed")
	}

	sched.Start()
	defer sched.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down")
}

func openDatabases(cfg *config.Config) (historyDB, ledgerDB, cacheDB *database.DB, err error) {
	open := func(path, name string, profile database.DatabaseProfile) (*database.DB, error) {
		db, err := database.New(database.Config{Path: path, Name: name, Profile: profile})
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	}

	if historyDB, err = open(cfg.HistoryDBPath(), "history", database.ProfileStandard); err != nil {
		return nil, nil, nil, err
	}
	if ledgerDB, err = open(cfg.LedgerDBPath(), "ledger", database.ProfileLedger); err != nil {
		historyDB.Close()
		return nil, nil, nil, err
	}
	if cacheDB, err = open(cfg.CacheDBPath(), "cache", database.ProfileCache); err != nil {
		historyDB.Close()
		ledgerDB.Close()
		return nil, nil, nil, err
	}
	return historyDB, ledgerDB, cacheDB, nil
}
