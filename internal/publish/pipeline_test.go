package publish

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"promobot/internal/catalog"
	"promobot/internal/ledger"
	kit "promobot/internal/transport"
	logx "promobot/pkg/logx"
)

type fakeAdapter struct {
	photoErr error
	textErr  error

	photoCalls int
	textCalls  int
	lastText   string
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                        { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.textCalls++
	f.lastText = text
	return kit.MessageRef{}, f.textErr
}

func (f *fakeAdapter) SendPhoto(ctx context.Context, to kit.ChatTarget, photoURL, caption string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.photoCalls++
	return kit.MessageRef{}, f.photoErr
}

type staticSource struct{}

func (staticSource) Fetch(ctx context.Context, limit int) []catalog.Offer { return nil }
func (staticSource) Available(ctx context.Context, o catalog.Offer) bool  { return true }
func (staticSource) GenerateAffiliateLink(ctx context.Context, o catalog.Offer) string {
	return "https://sjp.li/test"
}

func testOffer() catalog.Offer {
	return catalog.Offer{
		ProductID:   "p1",
		Title:       "Placa de Vídeo RTX 4060",
		Category:    "placas de video",
		OldPrice:    2399.80,
		Price:       1199.90,
		DiscountPct: 50,
		Coupon:      "R$50 OFF",
		FreeShip:    true,
		ImageURL:    "https://ae01.alicdn.com/kf/x_Q90.jpg",
		ProductURL:  "https://www.aliexpress.com/item/1.html",
	}
}

func newTestPipeline(t *testing.T, ad kit.Adapter, sendEnabled bool) (*Pipeline, *ledger.Ledger) {
	t.Helper()
	l, err := ledger.Open(ledger.Config{Path: filepath.Join(t.TempDir(), "p.sqlite3")}, logx.Nop())
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	p := New(l, staticSource{}, ad, kit.ChatTarget{Username: "@promos"}, sendEnabled, logx.Nop())
	return p, l
}

func TestPostOfferPhotoSuccess(t *testing.T) {
	ad := &fakeAdapter{}
	p, l := newTestPipeline(t, ad, true)

	ok, err := p.PostOffer(context.Background(), testOffer())
	if err != nil || !ok {
		t.Fatalf("PostOffer = (%v, %v), want (true, nil)", ok, err)
	}
	if ad.photoCalls != 1 || ad.textCalls != 0 {
		t.Fatalf("calls: photo=%d text=%d", ad.photoCalls, ad.textCalls)
	}
	recent, err := l.RecentPosts(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentPosts: %v", err)
	}
	if len(recent) != 1 || recent[0].ProductID != "p1" {
		t.Fatalf("ledger after post: %+v", recent)
	}
}

func TestPostOfferFallsBackToText(t *testing.T) {
	ad := &fakeAdapter{photoErr: errors.New("telegram: wrong file identifier")}
	p, l := newTestPipeline(t, ad, true)

	ok, err := p.PostOffer(context.Background(), testOffer())
	if err != nil || !ok {
		t.Fatalf("PostOffer = (%v, %v), want (true, nil)", ok, err)
	}
	if ad.photoCalls != 1 || ad.textCalls != 1 {
		t.Fatalf("calls: photo=%d text=%d", ad.photoCalls, ad.textCalls)
	}
	recent, err := l.RecentPosts(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentPosts: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("fallback post recorded %d times", len(recent))
	}
}

func TestPostOfferBothSendsFail(t *testing.T) {
	ad := &fakeAdapter{photoErr: errors.New("boom"), textErr: errors.New("boom")}
	p, l := newTestPipeline(t, ad, true)

	ok, err := p.PostOffer(context.Background(), testOffer())
	if err == nil || ok {
		t.Fatalf("PostOffer = (%v, %v), want (false, err)", ok, err)
	}
	recent, err := l.RecentPosts(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentPosts: %v", err)
	}
	if len(recent) != 0 {
		t.Fatalf("failed delivery must not be recorded, got %+v", recent)
	}
}

func TestPostOfferTextOnlyWithoutImage(t *testing.T) {
	ad := &fakeAdapter{}
	p, _ := newTestPipeline(t, ad, true)

	o := testOffer()
	o.ImageURL = ""
	ok, err := p.PostOffer(context.Background(), o)
	if err != nil || !ok {
		t.Fatalf("PostOffer = (%v, %v), want (true, nil)", ok, err)
	}
	if ad.photoCalls != 0 || ad.textCalls != 1 {
		t.Fatalf("calls: photo=%d text=%d", ad.photoCalls, ad.textCalls)
	}
}

func TestPostOfferDryRunSkipsTransport(t *testing.T) {
	ad := &fakeAdapter{photoErr: errors.New("must not be called")}
	p, l := newTestPipeline(t, ad, false)

	ok, err := p.PostOffer(context.Background(), testOffer())
	if err != nil || !ok {
		t.Fatalf("PostOffer = (%v, %v), want (true, nil)", ok, err)
	}
	if ad.photoCalls != 0 || ad.textCalls != 0 {
		t.Fatalf("dry-run made transport calls: photo=%d text=%d", ad.photoCalls, ad.textCalls)
	}
	recent, err := l.RecentPosts(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentPosts: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("dry-run must still record, got %d rows", len(recent))
	}
}

func TestPostOfferRepostWindow(t *testing.T) {
	ad := &fakeAdapter{}
	p, _ := newTestPipeline(t, ad, true)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return base }

	ok, err := p.PostOffer(context.Background(), testOffer())
	if err != nil || !ok {
		t.Fatalf("first post = (%v, %v)", ok, err)
	}

	// inside the window: silently skipped, no delivery
	p.now = func() time.Time { return base.Add(47 * time.Hour) }
	ok, err = p.PostOffer(context.Background(), testOffer())
	if err != nil || ok {
		t.Fatalf("repost at 47h = (%v, %v), want (false, nil)", ok, err)
	}
	if ad.photoCalls != 1 {
		t.Fatalf("duplicate triggered delivery: %d calls", ad.photoCalls)
	}

	// past the window: eligible again
	p.now = func() time.Time { return base.Add(49 * time.Hour) }
	ok, err = p.PostOffer(context.Background(), testOffer())
	if err != nil || !ok {
		t.Fatalf("repost at 49h = (%v, %v), want (true, nil)", ok, err)
	}
	if ad.photoCalls != 2 {
		t.Fatalf("expected second delivery, got %d calls", ad.photoCalls)
	}
}
