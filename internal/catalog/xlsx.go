// Package catalog parses catalog spreadsheets into ModelReference rows for
// seeding brand_models.
package catalog

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/watchpulse/watchpulse/internal/model"
)

// Expected spreadsheet columns, in order. The first row is a header and is
// skipped.
var columns = []string{
	"collection", "model_name", "ref_code", "msrp",
	"case_material", "bracelet", "dial", "size_mm", "image_url",
}

// ReadXLSX parses a catalog spreadsheet for one brand. Rows without a ref
// code or model name are skipped with a warning; a malformed MSRP leaves the
// field at 0 (unknown) rather than dropping the model.
func ReadXLSX(path, brand string) ([]model.ModelReference, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("catalog: %s has no sheets", path)
	}

	log := zap.L().With(zap.String("file", path), zap.String("brand", brand))

	var models []model.ModelReference
	for i, row := range f.Sheets[0].Rows {
		if i == 0 {
			continue // header
		}
		cells := rowToStrings(row)
		if len(cells) < len(columns) {
			padded := make([]string, len(columns))
			copy(padded, cells)
			cells = padded
		}

		m := model.ModelReference{
			Brand:        brand,
			Collection:   cells[0],
			ModelName:    cells[1],
			RefCode:      cells[2],
			CaseMaterial: cells[4],
			Bracelet:     cells[5],
			Dial:         cells[6],
			ImageURL:     cells[8],
		}
		if m.RefCode == "" || m.ModelName == "" {
			log.Warn("catalog: skipping row without ref_code or model_name", zap.Int("row", i+1))
			continue
		}

		if msrp, err := ParseMoney(cells[3]); err == nil {
			m.MSRP = msrp
		} else if cells[3] != "" {
			log.Warn("catalog: unparseable msrp, treating as unknown",
				zap.Int("row", i+1), zap.String("msrp", cells[3]))
		}

		if cells[7] != "" {
			if size, err := strconv.ParseFloat(strings.TrimSpace(cells[7]), 64); err == nil {
				m.SizeMM = size
			}
		}

		models = append(models, m)
	}

	return models, nil
}

// ParseMoney parses a price cell that may carry thousands separators or a
// leading currency symbol, e.g. "$10,400" or "10400.00".
func ParseMoney(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimLeft(cleaned, "$€£ ")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, eris.New("catalog: empty price")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, eris.Wrapf(err, "catalog: parse price %q", s)
	}
	f, _ := d.Float64()
	return f, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		cells[i] = strings.TrimSpace(c.String())
	}
	return cells
}
