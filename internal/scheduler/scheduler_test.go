package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"promobot/internal/catalog"
	"promobot/internal/ledger"
	logx "promobot/pkg/logx"
)

type scriptedSource struct {
	offers []catalog.Offer
}

func (s scriptedSource) Fetch(ctx context.Context, limit int) []catalog.Offer {
	if len(s.offers) > limit {
		return s.offers[:limit]
	}
	return s.offers
}
func (s scriptedSource) Available(ctx context.Context, o catalog.Offer) bool { return true }
func (s scriptedSource) GenerateAffiliateLink(ctx context.Context, o catalog.Offer) string {
	return o.ProductURL
}

type scriptedPublisher struct {
	ok    bool
	err   error
	calls int
}

func (p *scriptedPublisher) PostOffer(ctx context.Context, o catalog.Offer) (bool, error) {
	p.calls++
	return p.ok, p.err
}

func goodOffer(id string) catalog.Offer {
	return catalog.Offer{
		ProductID:   id,
		Title:       "Placa de Vídeo RTX 4060",
		Category:    "placas de video",
		Price:       1199.90,
		OldPrice:    2399.80,
		DiscountPct: 50,
		Rating:      4.8,
		ProductURL:  "https://www.aliexpress.com/item/" + id + ".html",
	}
}

func newTestScheduler(t *testing.T, src catalog.Source, pub Publisher, notify func(context.Context, string)) (*Scheduler, *ledger.Ledger) {
	t.Helper()
	l, err := ledger.Open(ledger.Config{Path: filepath.Join(t.TempDir(), "s.sqlite3")}, logx.Nop())
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	s := New(Config{Location: time.UTC, MinPerHour: 20, MaxPerHour: 25, WindowStartHour: 8, WindowEndHour: 22}, l, src, pub, notify, logx.Nop())
	return s, l
}

func TestPlanHourGates(t *testing.T) {
	s, l := newTestScheduler(t, scriptedSource{}, &scriptedPublisher{}, nil)
	ctx := context.Background()

	// before the window opens
	s.now = func() time.Time { return time.Date(2026, 8, 1, 7, 30, 0, 0, time.UTC) }
	s.planHour(ctx)
	if got := s.PendingAttempts(); got != 0 {
		t.Fatalf("planned %d attempts before the window", got)
	}

	// the end hour itself is already outside [start, end)
	s.now = func() time.Time { return time.Date(2026, 8, 1, 22, 0, 0, 0, time.UTC) }
	s.planHour(ctx)
	if got := s.PendingAttempts(); got != 0 {
		t.Fatalf("planned %d attempts at the window end hour", got)
	}

	// paused wins over an in-window hour
	if err := l.SetState(ctx, ledger.StatePaused, "1"); err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC) }
	s.planHour(ctx)
	if got := s.PendingAttempts(); got != 0 {
		t.Fatalf("planned %d attempts while paused", got)
	}

	// active and in-window: the hour gets a plan. The sub-second clock
	// keeps every surviving offset strictly in the future, so no timer
	// fires while we count.
	if err := l.SetState(ctx, ledger.StatePaused, "0"); err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return time.Date(2026, 8, 1, 10, 0, 0, 500_000_000, time.UTC) }
	s.planHour(ctx)
	if got := s.PendingAttempts(); got < 19 || got > 25 {
		t.Fatalf("planned %d attempts, want 19..25", got)
	}

	s.tmu.Lock()
	for _, tm := range s.timers {
		tm.Stop()
	}
	s.timers = map[string]*time.Timer{}
	s.tmu.Unlock()
}

func TestBreakerTripsAtThreshold(t *testing.T) {
	var notices []string
	pub := &scriptedPublisher{ok: false, err: errors.New("telegram unreachable")}
	s, l := newTestScheduler(t, scriptedSource{offers: []catalog.Offer{goodOffer("p1")}}, pub, func(_ context.Context, text string) {
		notices = append(notices, text)
	})
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		s.runAttempt(ctx)
		if got := s.ConsecutiveFailures(); got != i {
			t.Fatalf("after attempt %d: failures = %d", i, got)
		}
		if v, _ := l.GetState(ctx, ledger.StatePaused, "0"); v == "1" {
			t.Fatalf("paused before reaching threshold (attempt %d)", i)
		}
	}

	s.runAttempt(ctx)
	if v, _ := l.GetState(ctx, ledger.StatePaused, "0"); v != "1" {
		t.Fatal("threshold reached but bot not paused")
	}
	if len(notices) != 1 {
		t.Fatalf("expected exactly one operator notice, got %d", len(notices))
	}

	// once paused, further attempts are no-ops
	calls := pub.calls
	s.runAttempt(ctx)
	if pub.calls != calls {
		t.Fatal("paused scheduler still attempted to post")
	}
	if len(notices) != 1 {
		t.Fatalf("pause notice repeated: %d", len(notices))
	}

	// the pause does not reset the counter: after an operator resume a
	// single further failure re-pauses immediately
	if err := l.SetState(ctx, ledger.StatePaused, "0"); err != nil {
		t.Fatal(err)
	}
	s.runAttempt(ctx)
	if v, _ := l.GetState(ctx, ledger.StatePaused, "0"); v != "1" {
		t.Fatal("expected immediate re-pause on the first failure after resume")
	}
	if got := s.ConsecutiveFailures(); got != 6 {
		t.Fatalf("failures = %d, want 6 (counter survives the pause)", got)
	}
	if len(notices) != 2 {
		t.Fatalf("expected a second notice after re-pause, got %d", len(notices))
	}
}

func TestBreakerResetOnSuccess(t *testing.T) {
	pub := &scriptedPublisher{ok: false}
	s, _ := newTestScheduler(t, scriptedSource{offers: []catalog.Offer{goodOffer("p1")}}, pub, nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		s.runAttempt(ctx)
	}
	if got := s.ConsecutiveFailures(); got != 4 {
		t.Fatalf("failures = %d, want 4", got)
	}

	pub.ok = true
	s.runAttempt(ctx)
	if got := s.ConsecutiveFailures(); got != 0 {
		t.Fatalf("success did not reset the counter: %d", got)
	}

	// the streak starts over; one more failure must not trip the breaker
	pub.ok = false
	s.runAttempt(ctx)
	if got := s.ConsecutiveFailures(); got != 1 {
		t.Fatalf("failures after reset = %d, want 1", got)
	}
}

func TestEmptyBatchCountsAsFailure(t *testing.T) {
	pub := &scriptedPublisher{ok: true}
	s, _ := newTestScheduler(t, scriptedSource{}, pub, nil)

	s.runAttempt(context.Background())
	if pub.calls != 0 {
		t.Fatalf("publisher called with empty batch: %d", pub.calls)
	}
	if got := s.ConsecutiveFailures(); got != 1 {
		t.Fatalf("failures = %d, want 1", got)
	}
}

func TestRunAttemptWalksBatchUntilSuccess(t *testing.T) {
	// duplicate results (false, nil) must advance to the next candidate
	pub := &duplicateThenOK{dupes: 2}
	s, _ := newTestScheduler(t, scriptedSource{offers: []catalog.Offer{
		goodOffer("p1"), goodOffer("p2"), goodOffer("p3"),
	}}, pub, nil)

	s.runAttempt(context.Background())
	if pub.calls != 3 {
		t.Fatalf("publisher calls = %d, want 3", pub.calls)
	}
	if got := s.ConsecutiveFailures(); got != 0 {
		t.Fatalf("successful walk left failures = %d", got)
	}
}

type duplicateThenOK struct {
	dupes int
	calls int
}

func (p *duplicateThenOK) PostOffer(ctx context.Context, o catalog.Offer) (bool, error) {
	p.calls++
	if p.calls <= p.dupes {
		return false, nil
	}
	return true, nil
}

func TestHourlyBoundsFromState(t *testing.T) {
	pub := &scriptedPublisher{}
	s, l := newTestScheduler(t, scriptedSource{}, pub, nil)
	ctx := context.Background()

	min, max := s.hourlyBounds(ctx)
	if min != 20 || max != 25 {
		t.Fatalf("defaults = (%d, %d), want (20, 25)", min, max)
	}

	if err := l.SetState(ctx, ledger.StateMinPerHour, "3"); err != nil {
		t.Fatal(err)
	}
	if err := l.SetState(ctx, ledger.StateMaxPerHour, "6"); err != nil {
		t.Fatal(err)
	}
	min, max = s.hourlyBounds(ctx)
	if min != 3 || max != 6 {
		t.Fatalf("state override = (%d, %d), want (3, 6)", min, max)
	}

	// max below min clamps up
	if err := l.SetState(ctx, ledger.StateMaxPerHour, "2"); err != nil {
		t.Fatal(err)
	}
	min, max = s.hourlyBounds(ctx)
	if max != min {
		t.Fatalf("clamp broken: (%d, %d)", min, max)
	}

	// garbage falls back to defaults
	if err := l.SetState(ctx, ledger.StateMinPerHour, "abc"); err != nil {
		t.Fatal(err)
	}
	min, _ = s.hourlyBounds(ctx)
	if min != 20 {
		t.Fatalf("garbage state min = %d, want default 20", min)
	}
}
