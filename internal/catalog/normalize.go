package catalog

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Per-field key precedence for raw catalog records. The catalog API is
// dict-shaped and renames fields between endpoints/versions; lookups walk
// these lists in order and take the first present, non-empty value.
var (
	productIDKeys = []string{"product_id", "item_id", "app_sale_price_id"}
	titleKeys     = []string{"product_title", "title"}
	imageKeys     = []string{"product_main_image_url", "image_url"}
	priceKeys     = []string{"target_sale_price", "sale_price", "app_sale_price"}
	oldPriceKeys  = []string{"target_original_price", "original_price", "app_original_price"}
	couponKeys    = []string{"coupon_activity_id", "coupon_amount"}
	salesKeys     = []string{"product_sale_quantity", "sale_count"}
	ratingKeys    = []string{"evaluate_rate", "product_average_star"}
	categoryKeys  = []string{"first_level_category_name", "category_name"}
	urlKeys       = []string{"product_detail_url", "promotion_link", "url"}
)

const (
	defaultTitle    = "Produto AliExpress"
	defaultCategory = "eletronicos"
	defaultRating   = 4.5
)

var errNoProductID = errors.New("record has no product id")

// normalizeRecord converts one raw catalog record into a typed Offer.
// Missing numeric fields default to 0, missing text fields to a generic
// label; a record without any product id is skipped (error returned).
func normalizeRecord(rec map[string]any) (Offer, error) {
	pid := firstString(rec, productIDKeys)
	if pid == "" {
		return Offer{}, errNoProductID
	}

	title := firstString(rec, titleKeys)
	if title == "" {
		title = defaultTitle
	}

	image := strings.ReplaceAll(firstString(rec, imageKeys), "_640x640.jpg", "_Q90.jpg")
	// Only accept AliExpress CDN images; otherwise post text-only.
	if image != "" && !strings.Contains(image, "alicdn.com") && !strings.Contains(image, "aliexpress") {
		image = ""
	}

	price := firstFloat(rec, priceKeys, 0)
	oldPrice := firstFloat(rec, oldPriceKeys, price)
	if oldPrice <= 0 {
		oldPrice = price
	}

	var discount float64
	if oldPrice > 0 {
		discount = math.Round((1-price/oldPrice)*100*100) / 100
	}
	if discount < 0 {
		discount = 0
	}

	coupon := firstString(rec, couponKeys)

	rating := firstFloat(rec, ratingKeys, defaultRating)
	category := firstString(rec, categoryKeys)
	if category == "" {
		category = defaultCategory
	}

	url := firstString(rec, urlKeys)
	if url == "" {
		url = "https://www.aliexpress.com/item/" + pid + ".html"
	}

	return Offer{
		ProductID:   pid,
		Title:       title,
		Category:    category,
		OldPrice:    oldPrice,
		Price:       price,
		DiscountPct: discount,
		Coupon:      coupon,
		FreeShip:    boolValue(rec["free_shipping"]),
		SalesCount:  int(firstFloat(rec, salesKeys, 0)),
		Rating:      rating,
		ImageURL:    image,
		ProductURL:  url,
	}, nil
}

// dedupeByID drops later records with an already-seen product id, then caps
// the batch to limit.
func dedupeByID(offers []Offer, limit int) []Offer {
	seen := make(map[string]struct{}, len(offers))
	out := offers[:0]
	for _, o := range offers {
		if _, ok := seen[o.ProductID]; ok {
			continue
		}
		seen[o.ProductID] = struct{}{}
		out = append(out, o)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func firstString(rec map[string]any, keys []string) string {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(v))
		if s != "" {
			return s
		}
	}
	return ""
}

func firstFloat(rec map[string]any, keys []string, def float64) float64 {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	return def
}

// toFloat accepts JSON numbers and the catalog's stringified decimals,
// which may use a comma decimal separator ("1.234,56" style is not seen,
// only "1234,56").
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(x), ",", ".")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func boolValue(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return strings.EqualFold(x, "true") || x == "1"
	case float64:
		return x != 0
	default:
		return false
	}
}
