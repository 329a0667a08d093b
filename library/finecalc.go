package library

import "strings"

// FineCalculator is the single source of truth for overdue rates. Media types
// register a per-day rate under a case-normalized tag; both return-time fining
// and startup reconciliation go through Calculate.
type FineCalculator struct {
	rates map[string]int64
}

// NewFineCalculator returns a calculator with the default rate table.
func NewFineCalculator() *FineCalculator {
	c := &FineCalculator{rates: make(map[string]int64)}
	c.RegisterStrategy(string(MediaTypeBook), 10)
	c.RegisterStrategy(string(MediaTypeCD), 20)
	// Journal media is not in the catalog model yet; the rate is registered
	// so adding it needs no calculator change.
	c.RegisterStrategy("JOURNAL", 15)
	return c
}

// RegisterStrategy sets the per-day rate for a media type, overwriting any
// existing registration. Empty tags and non-positive rates are ignored.
func (c *FineCalculator) RegisterStrategy(mediaType string, perDay int64) {
	key := strings.ToUpper(strings.TrimSpace(mediaType))
	if key == "" || perDay <= 0 {
		return
	}
	c.rates[key] = perDay
}

// Calculate returns the fine for a loan of the given type overdue by the
// given number of whole days. Unregistered types and non-positive day counts
// yield 0.
func (c *FineCalculator) Calculate(mediaType string, overdueDays int) int64 {
	if overdueDays <= 0 {
		return 0
	}
	rate, ok := c.rates[strings.ToUpper(strings.TrimSpace(mediaType))]
	if !ok {
		return 0
	}
	return rate * int64(overdueDays)
}
