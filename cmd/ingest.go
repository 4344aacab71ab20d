package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/watchpulse/watchpulse/internal/ingest"
	"github.com/watchpulse/watchpulse/internal/rates"
)

// errPartialFailure distinguishes "some models failed" (exit 2) from a fatal
// run (exit 1) for schedulers wrapping this command.
var errPartialFailure = eris.New("completed with per-model failures")

var (
	ingestBrand string
	ingestDate  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Compute and upsert daily model stats",
	Long: `Run the daily pipeline for one brand and capture date:
normalize the day's listing observations, aggregate them per model, score
scarcity, and upsert one model_daily_stats row per (model, date).

Re-running for an already-processed date is supported and idempotent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		brand := strings.ToLower(strings.TrimSpace(ingestBrand))
		if brand == "" {
			brand = cfg.Ingest.Brand
		}
		cfg.Ingest.Brand = brand
		if err := cfg.Validate("ingest"); err != nil {
			return err
		}
		date, err := parseDate(ingestDate)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "ingest: open store")
		}
		defer st.Close()

		table, err := rates.Load(cfg.Rates.Path, cfg.Rates.ReferenceCurrency)
		if err != nil {
			return eris.Wrap(err, "ingest: load rate table")
		}

		summary, err := ingest.New(cfg, st, table).Run(ctx, brand, date)
		if err != nil {
			return eris.Wrap(err, "ingest")
		}

		fmt.Println(summary.Format())

		if summary.Failed() {
			zap.L().Warn("ingest: partial success",
				zap.Int("failures", len(summary.Failures)),
			)
			return eris.Wrapf(errPartialFailure, "ingest: %d of %d models failed",
				len(summary.Failures), summary.ModelsTotal)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestBrand, "brand", "", "brand to process (default from config)")
	ingestCmd.Flags().StringVar(&ingestDate, "date", "", "capture date YYYY-MM-DD (default today)")
	rootCmd.AddCommand(ingestCmd)
}
