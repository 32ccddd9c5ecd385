package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/payrecon/reconciler/internal/api"
	"github.com/payrecon/reconciler/internal/domain"
)

func serverCommand(a *app) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start the reconciliation API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.restore(ctx)
			if seed {
				a.seed(ctx)
			}

			router := api.NewRouter(a.fileRepo, a.discRepo, a.ingestion, a.recon)
			srv := &http.Server{
				Addr:              ":" + a.cnf.Server.Port,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logrus.Infof("%s listening on http://localhost:%s/api/v1", a.cnf.ProjectName, a.cnf.Server.Port)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logrus.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", true, "ingest the configured input directories and reconcile when the database is empty")
	return cmd
}

// seed ingests the configured input directories into an empty database and
// runs a first reconciliation.
func (a *app) seed(ctx context.Context) {
	files, err := a.fileRepo.List("")
	if err != nil {
		logrus.WithError(err).Warn("list ingested files")
		return
	}
	if len(files) > 0 {
		logrus.Infof("database already has %d ingested files, skipping seed", len(files))
		return
	}

	dirs := map[domain.Ledger]string{
		domain.LedgerSettlement: a.cnf.Input.SettlementDir,
		domain.LedgerReleases:   a.cnf.Input.ReleasesDir,
	}
	ingested := 0
	for _, ledger := range []domain.Ledger{domain.LedgerSettlement, domain.LedgerReleases} {
		dir := dirs[ledger]
		if _, err := os.Stat(dir); err != nil {
			logrus.Infof("no %s input at %s", ledger, dir)
			continue
		}
		results, err := a.ingestion.IngestDir(ctx, ledger, dir)
		if err != nil {
			logrus.WithError(err).Warnf("seed %s", ledger)
			continue
		}
		for _, r := range results {
			if r.Error == "" {
				ingested++
			}
		}
	}
	if ingested == 0 {
		return
	}

	if _, err := a.recon.Run(ctx); err != nil {
		logrus.WithError(err).Warn("initial reconciliation failed")
	}
}
