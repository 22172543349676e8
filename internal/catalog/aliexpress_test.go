package catalog

import (
	"context"
	"net/url"
	"testing"

	logx "promobot/pkg/logx"
)

func TestFetchWithoutCredentialsUsesSynthetic(t *testing.T) {
	t.Parallel()
	c := NewClient(ClientConfig{TrackingID: "TRACK"}, logx.Nop())
	offers := c.Fetch(context.Background(), 10)
	if len(offers) != 10 {
		t.Fatalf("len = %d, want 10", len(offers))
	}
}

func TestSignStableAndUpper(t *testing.T) {
	t.Parallel()
	c := NewClient(ClientConfig{AppKey: "k", AppSecret: "secret"}, logx.Nop())
	form := url.Values{}
	form.Set("b", "2")
	form.Set("a", "1")

	s1 := c.sign(form)
	s2 := c.sign(form)
	if s1 != s2 {
		t.Fatalf("sign not stable: %q vs %q", s1, s2)
	}
	if len(s1) != 32 {
		t.Fatalf("sign length = %d, want 32", len(s1))
	}
	for _, r := range s1 {
		if (r < '0' || r > '9') && (r < 'A' || r > 'F') {
			t.Fatalf("sign not upper hex: %q", s1)
		}
	}
}

func TestExtractProductsShapes(t *testing.T) {
	t.Parallel()
	rec := map[string]any{"product_id": "1"}
	tests := []struct {
		name string
		res  map[string]any
		want int
	}{
		{
			name: "documented shape",
			res: map[string]any{
				"aliexpress_affiliate_product_query_response": map[string]any{
					"result": map[string]any{
						"products": []any{rec, rec},
					},
				},
			},
			want: 2,
		},
		{
			name: "resp wrapper with list",
			res: map[string]any{
				"resp": map[string]any{
					"products": []any{rec},
				},
			},
			want: 1,
		},
		{
			name: "empty",
			res:  map[string]any{},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractProducts(tt.res); len(got) != tt.want {
				t.Fatalf("extracted %d records, want %d", len(got), tt.want)
			}
		})
	}
}
