// Package rates provides the exchange-rate table used to normalize listing
// prices into the reference currency. Rates are supplied by an external
// collaborator as a yaml file; conversion itself is a pure function.
package rates

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"gopkg.in/yaml.v3"
)

// Table converts amounts from source currencies into the reference currency.
type Table struct {
	reference string
	rates     map[string]decimal.Decimal // units of reference per 1 unit of currency
}

// rateFile is the on-disk yaml shape. Rate values are captured as raw scalar
// nodes so decimal precision survives whether or not the author quoted them.
type rateFile struct {
	Reference string               `yaml:"reference"`
	Rates     map[string]yaml.Node `yaml:"rates"`
}

// Load reads a rate table from a yaml file. The reference currency declared
// in the file must match the configured one; the reference itself always
// converts at 1. Currency codes are validated as ISO 4217.
func Load(path, reference string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rates: read %s", path)
	}

	var f rateFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, eris.Wrapf(err, "rates: parse %s", path)
	}

	if f.Reference != "" && !strings.EqualFold(f.Reference, reference) {
		return nil, eris.Errorf("rates: file reference %s does not match configured %s", f.Reference, reference)
	}

	values := make(map[string]string, len(f.Rates))
	for code, node := range f.Rates {
		values[code] = node.Value
	}
	return New(reference, values)
}

// New builds a Table from a currency→rate map. Rate values are decimal
// strings.
func New(reference string, raw map[string]string) (*Table, error) {
	ref, err := currency.ParseISO(reference)
	if err != nil {
		return nil, eris.Wrapf(err, "rates: invalid reference currency %q", reference)
	}

	t := &Table{
		reference: ref.String(),
		rates:     make(map[string]decimal.Decimal, len(raw)+1),
	}
	t.rates[t.reference] = decimal.NewFromInt(1)

	for code, value := range raw {
		unit, err := currency.ParseISO(code)
		if err != nil {
			return nil, eris.Wrapf(err, "rates: invalid currency code %q", code)
		}
		rate, err := decimal.NewFromString(value)
		if err != nil {
			return nil, eris.Wrapf(err, "rates: invalid rate for %s", unit)
		}
		if rate.Sign() <= 0 {
			return nil, eris.Errorf("rates: non-positive rate for %s", unit)
		}
		t.rates[unit.String()] = rate
	}

	return t, nil
}

// Reference returns the reference currency code.
func (t *Table) Reference() string {
	return t.reference
}

// Len returns the number of currencies the table can convert, including the
// reference itself.
func (t *Table) Len() int {
	return len(t.rates)
}

// Convert converts an amount in the given currency into the reference
// currency. Unknown currencies return an error; the caller drops the listing
// rather than guessing.
func (t *Table) Convert(amount decimal.Decimal, code string) (decimal.Decimal, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return decimal.Zero, eris.Wrapf(err, "rates: invalid currency code %q", code)
	}
	rate, ok := t.rates[unit.String()]
	if !ok {
		return decimal.Zero, eris.Errorf("rates: no rate for %s", unit)
	}
	return amount.Mul(rate), nil
}
