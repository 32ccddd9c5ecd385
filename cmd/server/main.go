package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/payrecon/reconciler/internal/cache"
	"github.com/payrecon/reconciler/internal/config"
	"github.com/payrecon/reconciler/internal/ingestion"
	"github.com/payrecon/reconciler/internal/reconciliation"
	"github.com/payrecon/reconciler/internal/repository"
)

// app holds the wiring shared by every subcommand.
type app struct {
	cnf *config.Configuration
	db  *sql.DB

	fileRepo *repository.FileRepo
	settRepo *repository.SettlementRepo
	relRepo  *repository.ReleaseRepo
	discRepo *repository.DiscrepancyRepo

	store     reconciliation.SnapshotStore
	closers   []func() error
	ingestion *ingestion.Service
	recon     *reconciliation.Service
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and wires storage and services before any
// subcommand runs.
func preRun(a *app, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := config.InitConfig(*configFile); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cnf, err := config.Fetch()
		if err != nil {
			return err
		}
		return a.setup(cnf)
	}
}

func (a *app) setup(cnf *config.Configuration) error {
	a.cnf = cnf

	logrus.Infof("initializing database at %s", cnf.DataSource.Path)
	db, err := repository.InitDB(cnf.DataSource.Path)
	if err != nil {
		return fmt.Errorf("init db: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	a.fileRepo = repository.NewFileRepo(db)
	a.settRepo = repository.NewSettlementRepo(db)
	a.relRepo = repository.NewReleaseRepo(db)
	a.discRepo = repository.NewDiscrepancyRepo(db)

	store, err := newSnapshotStore(cnf.Cache)
	if err != nil {
		return err
	}
	a.store = store

	a.ingestion = ingestion.NewService(a.fileRepo, a.settRepo, a.relRepo)
	a.recon = reconciliation.NewService(a.fileRepo, a.settRepo, a.relRepo, a.discRepo, a.store, reconciliation.Options{
		AllowedMethods: cnf.Reconciliation.AllowedPaymentMethods,
		UpcomingDays:   cnf.Reconciliation.UpcomingDays,
		Location:       cnf.Location(),
	})
	return nil
}

func newSnapshotStore(cnf config.CacheConfig) (reconciliation.SnapshotStore, error) {
	switch cnf.Backend {
	case config.CacheBackendRedis:
		ttl := time.Duration(cnf.TTLHours) * time.Hour
		store, err := cache.NewRedisStore(cnf.RedisDNS, "reconciler", ttl)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return store, nil
	default:
		store, err := cache.NewFileStore(cnf.Dir)
		if err != nil {
			return nil, fmt.Errorf("file cache: %w", err)
		}
		return store, nil
	}
}

// restore publishes the snapshot of a previous process, if one was persisted.
func (a *app) restore(ctx context.Context) {
	ok, err := a.recon.Restore(ctx)
	if err != nil {
		logrus.WithError(err).Warn("persisted snapshot ignored")
		return
	}
	if !ok {
		logrus.Info("no persisted snapshot, run process to reconcile")
	}
}

func (a *app) close() {
	if c, ok := a.store.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			logrus.WithError(err).Warn("close cache")
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logrus.WithError(err).Warn("close")
		}
	}
}

// NewCLI builds the root command and its subcommands.
func NewCLI() *cobra.Command {
	var configFile string
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "reconciler",
		Short:         "Settlement versus releases reconciliation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./reconciler.json", "configuration file")
	rootCmd.PersistentPreRunE = preRun(a, &configFile)
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) { a.close() }

	rootCmd.AddCommand(serverCommand(a))
	rootCmd.AddCommand(ingestCommand(a))
	rootCmd.AddCommand(processCommand(a))
	rootCmd.AddCommand(resetCommand(a))
	return rootCmd
}

func main() {
	defer recoverPanic()

	if err := NewCLI().Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
