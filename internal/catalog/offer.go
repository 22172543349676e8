package catalog

import "context"

// Offer is one candidate product eligible for publication.
// Offers are built fresh on every fetch cycle and never mutated.
type Offer struct {
	ProductID string

	Title    string
	Category string

	OldPrice    float64
	Price       float64
	DiscountPct float64 // derived, clamped to >= 0
	Coupon      string  // empty when none
	FreeShip    bool

	SalesCount int
	Rating     float64 // 0.0 - 5.0

	ImageURL   string // empty means post text-only
	ProductURL string // canonical, pre-affiliation
}

// Source supplies candidate offers.
//
// Fetch never fails outward: on any transport, parse or auth error the
// implementation logs and returns a synthetic fallback batch, so
// downstream components always have data to rank.
type Source interface {
	Fetch(ctx context.Context, limit int) []Offer

	// Available reports whether the offer can still be bought.
	Available(ctx context.Context, o Offer) bool

	// GenerateAffiliateLink always yields some URL for the offer.
	GenerateAffiliateLink(ctx context.Context, o Offer) string
}
