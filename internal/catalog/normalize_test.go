package catalog

import (
	"errors"
	"testing"
)

func TestNormalizeRecordPrecedence(t *testing.T) {
	t.Parallel()
	rec := map[string]any{
		"product_id":            "42",
		"item_id":               "ignored",
		"product_title":         "Placa de Vídeo RTX",
		"title":                 "ignored title",
		"target_sale_price":     "199,90",
		"sale_price":            "999.99",
		"target_original_price": "399,80",
		"first_level_category_name": "placas de video",
		"product_detail_url":    "https://www.aliexpress.com/item/42.html",
	}
	o, err := normalizeRecord(rec)
	if err != nil {
		t.Fatalf("normalizeRecord: %v", err)
	}
	if o.ProductID != "42" {
		t.Fatalf("ProductID = %q", o.ProductID)
	}
	if o.Title != "Placa de Vídeo RTX" {
		t.Fatalf("Title = %q (precedence broken)", o.Title)
	}
	if o.Price != 199.90 {
		t.Fatalf("Price = %v (comma decimal or precedence broken)", o.Price)
	}
	if o.OldPrice != 399.80 {
		t.Fatalf("OldPrice = %v", o.OldPrice)
	}
	if o.DiscountPct != 50 {
		t.Fatalf("DiscountPct = %v, want 50", o.DiscountPct)
	}
}

func TestNormalizeRecordDefaults(t *testing.T) {
	t.Parallel()
	o, err := normalizeRecord(map[string]any{"item_id": float64(7)})
	if err != nil {
		t.Fatalf("normalizeRecord: %v", err)
	}
	if o.ProductID != "7" {
		t.Fatalf("ProductID = %q", o.ProductID)
	}
	if o.Title != defaultTitle {
		t.Fatalf("Title = %q", o.Title)
	}
	if o.Category != defaultCategory {
		t.Fatalf("Category = %q", o.Category)
	}
	if o.Rating != defaultRating {
		t.Fatalf("Rating = %v", o.Rating)
	}
	if o.Price != 0 || o.OldPrice != 0 || o.DiscountPct != 0 {
		t.Fatalf("numeric defaults broken: %+v", o)
	}
	if o.ProductURL != "https://www.aliexpress.com/item/7.html" {
		t.Fatalf("ProductURL = %q", o.ProductURL)
	}
}

func TestNormalizeRecordSkipsWithoutID(t *testing.T) {
	t.Parallel()
	_, err := normalizeRecord(map[string]any{"product_title": "sem id"})
	if !errors.Is(err, errNoProductID) {
		t.Fatalf("expected errNoProductID, got %v", err)
	}
}

func TestNormalizeRecordImageFiltering(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"cdn upgraded", "https://ae01.alicdn.com/kf/x_640x640.jpg", "https://ae01.alicdn.com/kf/x_Q90.jpg"},
		{"foreign host dropped", "https://evil.example.com/img.jpg", ""},
		{"empty stays empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := normalizeRecord(map[string]any{
				"product_id":             "1",
				"product_main_image_url": tt.in,
			})
			if err != nil {
				t.Fatalf("normalizeRecord: %v", err)
			}
			if o.ImageURL != tt.want {
				t.Fatalf("ImageURL = %q, want %q", o.ImageURL, tt.want)
			}
		})
	}
}

func TestNormalizeRecordClampsNegativeDiscount(t *testing.T) {
	t.Parallel()
	// price above "original" price must not yield a negative discount
	o, err := normalizeRecord(map[string]any{
		"product_id":            "1",
		"target_sale_price":     "150",
		"target_original_price": "100",
	})
	if err != nil {
		t.Fatalf("normalizeRecord: %v", err)
	}
	if o.DiscountPct != 0 {
		t.Fatalf("DiscountPct = %v, want 0", o.DiscountPct)
	}
}

func TestDedupeByID(t *testing.T) {
	t.Parallel()
	in := []Offer{
		{ProductID: "a"}, {ProductID: "b"}, {ProductID: "a"}, {ProductID: "c"}, {ProductID: "d"},
	}
	got := dedupeByID(in, 3)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, id := range []string{"a", "b", "c"} {
		if got[i].ProductID != id {
			t.Fatalf("position %d = %s, want %s", i, got[i].ProductID, id)
		}
	}
}
