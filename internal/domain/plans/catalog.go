package plans

import (
	"regexp"
	"time"
)

// Spec describes one purchasable plan.
type Spec struct {
	Plan        PlanType `json:"plan"`
	PriceID     string   `json:"price_id,omitempty"`
	UnitAmount  int64    `json:"unit_amount"`
	Credits     int64    `json:"credits"`
	ProductName string   `json:"product_name"`
}

// Catalog is the authoritative price and credit table. Client supplied
// amounts are never trusted; everything resolves through here.
type Catalog struct {
	Currency             string
	Interval             string
	Plans                map[PlanType]Spec
	ExtractionCost       int64
	RecentCheckoutWindow time.Duration
	IntentTTL            time.Duration
}

func DefaultCatalog() Catalog {
	return Catalog{
		Currency: "usd",
		Interval: "month",
		Plans: map[PlanType]Spec{
			Basic: {Plan: Basic, UnitAmount: 1000, Credits: 10000, ProductName: "Basic Plan - PDF Scraper"},
			Pro:   {Plan: Pro, UnitAmount: 2000, Credits: 20000, ProductName: "Pro Plan - PDF Scraper"},
		},
		ExtractionCost:       100,
		RecentCheckoutWindow: 5 * time.Minute,
		IntentTTL:            24 * time.Hour,
	}
}

func (c Catalog) Lookup(p PlanType) (Spec, bool) {
	s, ok := c.Plans[p]
	return s, ok
}

// Credits returns the allotment for p, or zero for unknown plans.
func (c Catalog) Credits(p PlanType) int64 {
	return c.Plans[p].Credits
}

var (
	proName   = regexp.MustCompile(`(?i)\bpro\b`)
	basicName = regexp.MustCompile(`(?i)\bbasic\b`)
)

// Infer maps a processor price back to a plan when metadata is missing.
// Exact amount match wins, product name is the fallback.
func (c Catalog) Infer(unitAmount int64, productName string) (PlanType, bool) {
	if unitAmount > 0 {
		for p, s := range c.Plans {
			if s.UnitAmount == unitAmount {
				return p, true
			}
		}
	}
	switch {
	case proName.MatchString(productName):
		return Pro, true
	case basicName.MatchString(productName):
		return Basic, true
	}
	return "", false
}
