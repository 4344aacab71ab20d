package model

import "time"

// ListingObservation is one raw market listing snapshot as produced by the
// acquisition layer. Untrusted input: the price is the scraped text and the
// currency is whatever the source reported.
type ListingObservation struct {
	ListingID    int64     `json:"listing_id"`
	ModelID      int64     `json:"model_id"`
	RawPrice     string    `json:"raw_price"`
	Currency     string    `json:"currency"`
	Source       string    `json:"source"`
	URL          string    `json:"url,omitempty"`
	IsNew        bool      `json:"is_new"` // listing first observed on the capture date
	CapturedDate time.Time `json:"captured_date"`
}

// NormalizedListing is an observation that survived validation: price parsed,
// converted to the reference currency, and inside the plausibility band.
// Lives only within one pipeline run.
type NormalizedListing struct {
	ListingID int64
	ModelID   int64
	Price     float64 // reference currency
	Source    string
	IsNew     bool
}
