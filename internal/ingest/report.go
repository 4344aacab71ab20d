package ingest

import (
	"fmt"
	"strings"
	"time"
)

// ModelFailure records a per-model failure and where it happened. Failures
// are isolated: sibling models keep running.
type ModelFailure struct {
	ModelID int64  `json:"model_id"`
	RefCode string `json:"ref_code,omitempty"`
	Stage   string `json:"stage"`
	Error   string `json:"error"`
}

// RunSummary is the single source of truth for what a pipeline run did.
// Partial success is always visible here, never inferred by diffing dates.
type RunSummary struct {
	RunID        string            `json:"run_id"`
	Brand        string            `json:"brand"`
	CapturedDate string            `json:"captured_date"`
	DurationMS   int64             `json:"duration_ms"`
	ModelsTotal  int               `json:"models_total"`
	Processed    int               `json:"processed"`
	ZeroListings int               `json:"zero_listings"`
	Cancelled    int               `json:"cancelled"`
	Failures     []ModelFailure    `json:"failures,omitempty"`
	Drops        *DropStats        `json:"drops,omitempty"`
	Validation   *ValidationReport `json:"validation,omitempty"`
}

// Failed reports whether any per-model work failed.
func (s *RunSummary) Failed() bool {
	return len(s.Failures) > 0
}

// Format renders a human-readable run report.
func (s *RunSummary) Format() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Ingest Run: %s %s\n", s.Brand, s.CapturedDate)
	fmt.Fprintf(&b, "Run ID: %s\n\n", s.RunID)

	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Models in catalog: %d\n", s.ModelsTotal)
	fmt.Fprintf(&b, "- Rows written: %d\n", s.Processed)
	fmt.Fprintf(&b, "- Zero-listing models: %d\n", s.ZeroListings)
	if s.Cancelled > 0 {
		fmt.Fprintf(&b, "- Cancelled before scheduling: %d\n", s.Cancelled)
	}
	if s.Drops != nil {
		fmt.Fprintf(&b, "- Observations dropped: %d\n", s.Drops.Total)
	}
	fmt.Fprintf(&b, "- Duration: %s\n\n", time.Duration(s.DurationMS)*time.Millisecond)

	if len(s.Failures) > 0 {
		b.WriteString("## Failures\n")
		for _, f := range s.Failures {
			fmt.Fprintf(&b, "- model %d (%s) at %s: %s\n", f.ModelID, f.RefCode, f.Stage, f.Error)
		}
		b.WriteString("\n")
	}

	if v := s.Validation; v != nil {
		b.WriteString("## Validation\n")
		fmt.Fprintf(&b, "- Price anomalies above %.1f%%: %d\n", v.AnomalyThresholdPct, v.AnomalyCount)
		for _, a := range v.AnomalyExamples {
			fmt.Fprintf(&b, "  - listing %d: %.2f -> %.2f (%.1f%%)\n", a.ListingID, a.PrevPrice, a.CurrPrice, a.PctJump)
		}
		fmt.Fprintf(&b, "- Models missing a stats row: %d\n", v.MissingStatsCount)
		fmt.Fprintf(&b, "- Duplicate listing URLs: %d\n", v.DuplicateURLCount)
		for _, d := range v.DuplicateURLExamples {
			fmt.Fprintf(&b, "  - %s (x%d)\n", d.URL, d.Count)
		}
	}

	return b.String()
}
