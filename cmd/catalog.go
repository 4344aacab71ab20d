package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/watchpulse/watchpulse/internal/catalog"
	"github.com/watchpulse/watchpulse/internal/db"
	"github.com/watchpulse/watchpulse/internal/store"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the brand model catalog",
}

var catalogImportBrand string

var catalogImportCmd = &cobra.Command{
	Use:   "import <file.xlsx>",
	Short: "Seed brand_models from a catalog spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		brand := strings.ToLower(strings.TrimSpace(catalogImportBrand))
		if brand == "" {
			brand = cfg.Ingest.Brand
		}
		if err := cfg.Validate("catalog"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "catalog import: open store")
		}
		defer st.Close()

		pg, ok := st.(*store.PostgresStore)
		if !ok {
			return eris.New("catalog import: requires the postgres store driver")
		}

		models, err := catalog.ReadXLSX(args[0], brand)
		if err != nil {
			return eris.Wrap(err, "catalog import")
		}
		if len(models) == 0 {
			return eris.Errorf("catalog import: no usable rows in %s", args[0])
		}

		rows := make([][]any, len(models))
		for i, m := range models {
			rows[i] = []any{
				m.Brand, m.Collection, m.ModelName, m.RefCode, m.MSRP,
				m.CaseMaterial, m.Bracelet, m.Dial, m.SizeMM, m.ImageURL,
			}
		}

		n, err := db.BulkUpsert(ctx, pg.Pool(), db.UpsertConfig{
			Table: "brand_models",
			Columns: []string{
				"brand", "collection", "model_name", "ref_code", "msrp",
				"case_material", "bracelet", "dial", "size_mm", "image_url",
			},
			ConflictKeys: []string{"brand", "ref_code"},
		}, rows)
		if err != nil {
			return eris.Wrap(err, "catalog import: upsert")
		}

		zap.L().Info("catalog import complete",
			zap.String("brand", brand),
			zap.Int64("rows", n),
		)
		fmt.Printf("Imported %d models for %s\n", n, brand)
		return nil
	},
}

func init() {
	catalogImportCmd.Flags().StringVar(&catalogImportBrand, "brand", "", "brand the file belongs to (default from config)")
	catalogCmd.AddCommand(catalogImportCmd)
	rootCmd.AddCommand(catalogCmd)
}
