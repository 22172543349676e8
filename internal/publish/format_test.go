package publish

import (
	"strings"
	"testing"
	"unicode/utf8"

	"promobot/pkg/tgui"
)

func TestFormatBRL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float64
		want string
	}{
		{0, "R$ 0,00"},
		{9.9, "R$ 9,90"},
		{199.9, "R$ 199,90"},
		{1234.56, "R$ 1.234,56"},
		{1234567.89, "R$ 1.234.567,89"},
	}
	for _, tt := range tests {
		if got := formatBRL(tt.in); got != tt.want {
			t.Errorf("formatBRL(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCaptionEscapesHTML(t *testing.T) {
	t.Parallel()
	o := testOffer()
	o.Title = "Cabo <HDMI> & Cia"
	got := Caption(o, "https://sjp.li/x")
	if strings.Contains(got, "<HDMI>") {
		t.Fatalf("raw HTML leaked into caption:\n%s", got)
	}
	if !strings.Contains(got, "&lt;HDMI&gt; &amp; Cia") {
		t.Fatalf("title not escaped:\n%s", got)
	}
}

func TestCaptionContent(t *testing.T) {
	t.Parallel()
	got := Caption(testOffer(), "https://sjp.li/x")
	for _, want := range []string{
		"Cupom: R$50 OFF",
		"Frete Grátis",
		"R$ 2.399,80",
		"R$ 1.199,90",
		"50%",
		"https://sjp.li/x",
		"#Promo", "#AliExpress", "#PCGamer",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("caption missing %q:\n%s", want, got)
		}
	}
}

func TestCaptionWithoutExtras(t *testing.T) {
	t.Parallel()
	o := testOffer()
	o.Coupon = ""
	o.FreeShip = false
	got := Caption(o, "https://sjp.li/x")
	if !strings.Contains(got, "Oferta") {
		t.Fatalf("expected generic highlight:\n%s", got)
	}
	if strings.Contains(got, "Cupom:") {
		t.Fatalf("unexpected coupon line:\n%s", got)
	}
	if !strings.Contains(got, "Consulte frete") {
		t.Fatalf("expected shipping fallback line:\n%s", got)
	}
}

func TestCaptionFitsCaptionLimit(t *testing.T) {
	t.Parallel()
	o := testOffer()
	o.Title = strings.Repeat("Promoção Imperdível ", 100)
	got := Caption(o, "https://sjp.li/x")
	if n := utf8.RuneCountInString(got); n > tgui.MaxCaptionRunes {
		t.Fatalf("caption has %d runes, limit %d", n, tgui.MaxCaptionRunes)
	}
}
