package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/ingestion"
	"github.com/payrecon/reconciler/internal/report"
)

func ingestCommand(a *app) *cobra.Command {
	var ledger string

	cmd := &cobra.Command{
		Use:   "ingest [file or dir...]",
		Short: "ingest settlement or releases exports",
		Long:  "Ingest .csv or .xlsx exports. Without arguments the configured input directories of both ledgers are read.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var results []ingestion.Result

			if len(args) == 0 {
				for _, l := range []domain.Ledger{domain.LedgerSettlement, domain.LedgerReleases} {
					dir := a.cnf.Input.SettlementDir
					if l == domain.LedgerReleases {
						dir = a.cnf.Input.ReleasesDir
					}
					res, err := a.ingestion.IngestDir(ctx, l, dir)
					if err != nil {
						return err
					}
					results = append(results, res...)
				}
				return printResults(cmd, results)
			}

			l := domain.Ledger(strings.ToLower(ledger))
			if !l.Valid() {
				return errors.New("--ledger must be settlement or releases")
			}
			for _, path := range args {
				info, err := os.Stat(path)
				if err != nil {
					return err
				}
				if info.IsDir() {
					res, err := a.ingestion.IngestDir(ctx, l, path)
					if err != nil {
						return err
					}
					results = append(results, res...)
					continue
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				res, err := a.ingestion.IngestFile(ctx, l, filepath.Base(path), data)
				if err != nil {
					return err
				}
				results = append(results, *res)
			}
			return printResults(cmd, results)
		},
	}
	cmd.Flags().StringVar(&ledger, "ledger", "", "ledger of the given files: settlement or releases")
	return cmd
}

func printResults(cmd *cobra.Command, results []ingestion.Result) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LEDGER\tFILE\tSTATUS\tROWS\tSTORED\tDROPPED\tSKIPPED")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n", r.Ledger, r.Filename, r.Status, r.Rows, r.Stored, r.Dropped, r.Skipped)
	}
	return tw.Flush()
}

func processCommand(a *app) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "process",
		Short: "reconcile the ingested ledgers and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.recon.Run(cmd.Context())
			if err != nil {
				return err
			}
			if outDir != "" {
				if _, err := report.WriteJSON(outDir, snap); err != nil {
					return err
				}
			}
			return report.WriteText(cmd.OutOrStdout(), snap)
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "directory to write the JSON report sections to")
	return cmd
}

func resetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "drop every ingested file, discrepancy and persisted snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.recon.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "reset complete")
			return nil
		},
	}
}
