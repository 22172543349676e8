package publish

import (
	"fmt"
	"strings"

	"promobot/internal/catalog"
	"promobot/pkg/tgui"
)

// Caption renders the Telegram HTML caption for an offer. All catalog-
// supplied text goes through tgui.Esc; the result is non-empty for any
// valid offer and non-empty link.
func Caption(o catalog.Offer, affiliateLink string) string {
	var highlights []string
	if o.Coupon != "" {
		highlights = append(highlights, "Cupom: "+o.Coupon)
	}
	if o.FreeShip {
		highlights = append(highlights, "Frete Grátis")
	}
	highlight := "Oferta"
	if len(highlights) > 0 {
		highlight = strings.Join(highlights, " | ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔥 %s\n%s\n\n", tgui.B(o.Title), tgui.Esc(highlight))
	fmt.Fprintf(&b, "💵 De: %s ➜ %s\n", formatBRL(o.OldPrice), tgui.B(formatBRL(o.Price)))
	fmt.Fprintf(&b, "🎯 Desconto: %s", tgui.B(fmt.Sprintf("%d%%", int(o.DiscountPct))))
	if o.Coupon != "" {
		fmt.Fprintf(&b, " • Cupom: %s", tgui.B(o.Coupon))
	}
	b.WriteString("\n")
	if o.FreeShip {
		b.WriteString("🚚 Frete Grátis\n\n")
	} else {
		b.WriteString("🚚 Consulte frete\n\n")
	}
	fmt.Fprintf(&b, "🔗 %s\n%s\n\n", tgui.B("Link do produto:"), tgui.Esc(affiliateLink))
	b.WriteString(hashtagsLine(o))

	return tgui.TruncRunes(b.String(), tgui.MaxCaptionRunes)
}

// formatBRL renders a price as "R$ 1.234,56".
func formatBRL(v float64) string {
	s := fmt.Sprintf("%.2f", v) // "1234.56"
	intPart, frac, _ := strings.Cut(s, ".")

	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")

	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)

	out := "R$ " + strings.Join(groups, ".") + "," + frac
	if neg {
		out = "R$ -" + strings.Join(groups, ".") + "," + frac
	}
	return out
}

var categoryHashtags = []struct {
	keyword string
	tag     string
}{
	{"placa", "#PCGamer"},
	{"ryzen", "#Processadores"},
	{"gabinete", "#Gabinetes"},
	{"gamer", "#Gamer"},
	{"funko", "#FunkoPop"},
	{"led", "#DecoTech"},
}

func hashtagsLine(o catalog.Offer) string {
	tags := []string{"#Promo", "#Desconto", "#AliExpress", "#Ofertas"}
	name := strings.ToLower(o.Title + " " + o.Category)
	for _, ct := range categoryHashtags {
		if strings.Contains(name, ct.keyword) {
			tags = append(tags, ct.tag)
		}
	}
	return strings.Join(tags, " ")
}
