// Package rank scores and filters candidate offers into a priority order.
// Everything here is pure and deterministic.
package rank

import (
	"context"
	"sort"
	"strings"

	"promobot/internal/catalog"
)

// acceptedCategories is the fixed allow-list of category keywords, with
// multilingual/accented variants. An offer passes if its lowercased
// "title + category" string contains any of them.
var acceptedCategories = []string{
	"electronics",
	"pc gamer",
	"acessórios gamer",
	"acessorios gamer",
	"gabinetes",
	"processadores",
	"placas de vídeo",
	"placas de video",
	"componentes de pc",
	"quarto",
	"decoração",
	"decoracao",
	"funko",
}

// Score rates an offer for publication priority:
// discount counts double, coupon +20, free shipping +10,
// sales capped at +20 (1 point per 50 sales), plus the star rating.
func Score(o catalog.Offer) float64 {
	score := o.DiscountPct * 2
	if o.Coupon != "" {
		score += 20
	}
	if o.FreeShip {
		score += 10
	}
	score += min(float64(o.SalesCount)/50, 20)
	score += o.Rating
	return score
}

func PassesCategory(o catalog.Offer) bool {
	name := strings.ToLower(o.Title + " " + o.Category)
	for _, cat := range acceptedCategories {
		if strings.Contains(name, cat) {
			return true
		}
	}
	return false
}

// Rank filters offers through the category allow-list and sorts them by
// descending score. The sort is stable: ties keep source order.
func Rank(offers []catalog.Offer) []catalog.Offer {
	out := make([]catalog.Offer, 0, len(offers))
	for _, o := range offers {
		if PassesCategory(o) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return Score(out[i]) > Score(out[j])
	})
	return out
}

// BestScored fetches an over-sized batch from src (3x limit), ranks it and
// truncates to limit.
func BestScored(ctx context.Context, src catalog.Source, limit int) []catalog.Offer {
	offers := Rank(src.Fetch(ctx, limit*3))
	if len(offers) > limit {
		offers = offers[:limit]
	}
	return offers
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
