package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	statusBrand string
	statusDate  string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stats coverage for a brand and date",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		brand := strings.ToLower(strings.TrimSpace(statusBrand))
		if brand == "" {
			brand = cfg.Ingest.Brand
		}
		cfg.Ingest.Brand = brand
		if err := cfg.Validate("status"); err != nil {
			return err
		}
		date, err := parseDate(statusDate)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "status: open store")
		}
		defer st.Close()

		models, err := st.Catalog(ctx, brand)
		if err != nil {
			return eris.Wrap(err, "status: load catalog")
		}
		stats, err := st.StatsForDate(ctx, brand, date)
		if err != nil {
			return eris.Wrap(err, "status: load stats")
		}

		var missing []string
		for _, m := range models {
			if _, ok := stats[m.ID]; !ok {
				missing = append(missing, m.RefCode)
			}
		}

		fmt.Printf("Brand:   %s\n", brand)
		fmt.Printf("Date:    %s\n", date.Format("2006-01-02"))
		fmt.Printf("Catalog: %d models\n", len(models))
		fmt.Printf("Stats:   %d rows\n", len(stats))
		if len(missing) > 0 {
			sample := missing
			if len(sample) > 10 {
				sample = sample[:10]
			}
			fmt.Printf("Missing: %d (%s)\n", len(missing), strings.Join(sample, ", "))
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusBrand, "brand", "", "brand to inspect (default from config)")
	statusCmd.Flags().StringVar(&statusDate, "date", "", "capture date YYYY-MM-DD (default today)")
	rootCmd.AddCommand(statusCmd)
}
