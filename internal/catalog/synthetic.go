package catalog

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// baseProducts is the small fixed catalog the synthetic source samples from.
// Categories mirror the accepted-category keywords so synthetic batches
// survive ranking.
var baseProducts = []struct {
	title    string
	category string
}{
	{"Placa de Vídeo RTX 4060 8GB", "placas de video"},
	{"Processador Ryzen 5 5600G", "processadores"},
	{"Gabinete ATX com RGB", "gabinetes"},
	{"Teclado Mecânico Gamer", "acessorios gamer"},
	{"Funko Pop Colecionável", "funko"},
	{"Luminária LED de Mesa", "decoracao"},
}

var syntheticCoupons = []string{"", "R$20 OFF", "R$50 OFF", ""}

var syntheticDiscounts = []float64{10, 20, 30, 40, 50}

// Synthetic generates representative offers so the pipeline keeps working
// during setup or catalog outages. The RNG is injectable so tests can pin
// the sequence.
type Synthetic struct {
	trackingID string

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSynthetic(trackingID string, rng *rand.Rand) *Synthetic {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Synthetic{trackingID: trackingID, rng: rng}
}

func (s *Synthetic) Fetch(_ context.Context, limit int) []Offer {
	s.mu.Lock()
	defer s.mu.Unlock()

	offers := make([]Offer, 0, limit)
	for i := 0; i < limit; i++ {
		p := baseProducts[s.rng.Intn(len(baseProducts))]
		oldPrice := round2(150 + s.rng.Float64()*(1500-150))
		discount := syntheticDiscounts[s.rng.Intn(len(syntheticDiscounts))]
		pid := fmt.Sprintf("mock-%d-%d-%d", time.Now().Unix(), i, 100+s.rng.Intn(900))
		offers = append(offers, Offer{
			ProductID:   pid,
			Title:       p.title,
			Category:    p.category,
			OldPrice:    oldPrice,
			Price:       round2(oldPrice * (1 - discount/100)),
			DiscountPct: discount,
			Coupon:      syntheticCoupons[s.rng.Intn(len(syntheticCoupons))],
			FreeShip:    s.rng.Intn(2) == 0,
			SalesCount:  5 + s.rng.Intn(496),
			Rating:      round1(3.5 + s.rng.Float64()*1.4),
			ProductURL:  "https://www.aliexpress.com/item/" + pid + ".html",
		})
	}
	return offers
}

func (s *Synthetic) Available(context.Context, Offer) bool { return true }

func (s *Synthetic) GenerateAffiliateLink(_ context.Context, o Offer) string {
	return fallbackAffiliateLink(o.ProductURL, s.trackingID)
}

func round2(f float64) float64 { return float64(int(f*100+0.5)) / 100 }
func round1(f float64) float64 { return float64(int(f*10+0.5)) / 10 }
