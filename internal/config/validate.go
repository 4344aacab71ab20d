package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the configuration for one command mode. Every problem found
// is reported in a single error so the operator fixes them in one pass.
func (c *Config) Validate(mode string) error {
	switch mode {
	case "ingest", "migrate", "status", "catalog":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	var problems []string

	switch c.Store.Driver {
	case "postgres", "", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q is not supported (postgres or sqlite)", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}
	if mode == "catalog" && c.Store.Driver == "sqlite" {
		problems = append(problems, "catalog import requires the postgres driver")
	}

	if mode == "ingest" || mode == "status" {
		if c.Ingest.Brand == "" {
			problems = append(problems, "ingest.brand is required")
		}
	}

	if mode == "ingest" {
		if c.Ingest.MaxConcurrentModels < 1 || c.Ingest.MaxConcurrentModels > 64 {
			problems = append(problems, "ingest.max_concurrent_models must be between 1 and 64")
		}
		if c.Ingest.PlausibilityMin <= 0 || c.Ingest.PlausibilityMax <= c.Ingest.PlausibilityMin {
			problems = append(problems, "ingest plausibility bounds must satisfy 0 < plausibility_min < plausibility_max")
		}
		if c.Ingest.AnomalyThresholdPct < 0 {
			problems = append(problems, "ingest.anomaly_threshold_pct must be >= 0")
		}
		if c.Scoring.PremiumWeight < 0 || c.Scoring.AvailabilityWeight < 0 || c.Scoring.VelocityWeight < 0 {
			problems = append(problems, "scoring weights must be >= 0")
		}
		if c.Rates.Path == "" {
			problems = append(problems, "rates.path is required")
		}
		if c.Rates.ReferenceCurrency == "" {
			problems = append(problems, "rates.reference_currency is required")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
