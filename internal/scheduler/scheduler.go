// Package scheduler plans a randomized cadence of publishing attempts
// inside each hour, gated by the active window and pause state, and owns
// the consecutive-failure circuit breaker.
package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"promobot/internal/catalog"
	"promobot/internal/ledger"
	"promobot/internal/rank"
	logx "promobot/pkg/logx"
)

// Publisher is the posting transaction for a single offer.
type Publisher interface {
	PostOffer(ctx context.Context, o catalog.Offer) (bool, error)
}

type Config struct {
	Location *time.Location

	// Active daily window [start, end) in local hours.
	WindowStartHour int
	WindowEndHour   int

	// Default per-hour bounds; ledger state overrides them at plan time.
	MinPerHour int
	MaxPerHour int

	// BatchSize is the ranked candidate count fetched per attempt.
	BatchSize int // default 20

	// AttemptTimeout bounds one attempt end to end (catalog + delivery).
	AttemptTimeout time.Duration // default 1m

	// FailureThreshold is the consecutive no-success count that trips the
	// breaker. Default 5.
	FailureThreshold int
}

func (c Config) withDefaults() Config {
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = time.Minute
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	return c
}

type Scheduler struct {
	cfg      Config
	ledger   *ledger.Ledger
	source   catalog.Source
	pipeline Publisher

	// notify delivers operator notifications (auto-pause). Best-effort.
	notify func(ctx context.Context, text string)

	log logx.Logger

	c *cron.Cron

	mu      sync.Mutex
	started bool
	// consecutive no-success attempts; process-lifetime, reset only by a
	// successful attempt (not by the pause itself).
	failures int

	// one-shot attempt timers for the current hour
	tmu    sync.Mutex
	timers map[string]*time.Timer

	rngMu sync.Mutex
	rng   *rand.Rand

	runCtx    context.Context
	runCancel context.CancelFunc

	// now is the clock; overridable in tests.
	now func() time.Time
}

func New(cfg Config, l *ledger.Ledger, src catalog.Source, pub Publisher, notify func(ctx context.Context, text string), log logx.Logger) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	if notify == nil {
		notify = func(context.Context, string) {}
	}
	return &Scheduler{
		cfg:      cfg.withDefaults(),
		ledger:   l,
		source:   src,
		pipeline: pub,
		notify:   notify,
		log:      log.With(logx.String("component", "scheduler")),
		timers:   map[string]*time.Timer{},
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

// Start registers the hourly re-plan and plans immediately for the
// remainder of the current hour (covers partial hours on restart).
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	s.c = cron.New(cron.WithLocation(s.cfg.Location))
	s.mu.Unlock()

	if _, err := s.c.AddFunc("0 * * * *", func() { s.planHour(s.runCtx) }); err != nil {
		return err
	}
	s.c.Start()
	s.log.Info("scheduler started",
		logx.String("tz", s.cfg.Location.String()),
		logx.Int("window_start", s.cfg.WindowStartHour),
		logx.Int("window_end", s.cfg.WindowEndHour))

	s.planHour(s.runCtx)
	return nil
}

// Stop cancels the hourly tick and all pending one-shot attempts.
// In-flight attempts finish or time out naturally.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.runCancel
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	if cancel != nil {
		cancel()
	}

	s.tmu.Lock()
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = map[string]*time.Timer{}
	s.tmu.Unlock()

	s.log.Info("scheduler stopped")
}

// planHour plans the publishing attempts for the current hour.
func (s *Scheduler) planHour(ctx context.Context) {
	now := s.now().In(s.cfg.Location)

	paused, err := s.paused(ctx)
	if err != nil {
		s.log.Error("pause state read failed, skipping hour plan", logx.Err(err))
		return
	}
	if paused {
		s.log.Info("paused, skipping hour plan")
		return
	}
	if h := now.Hour(); h < s.cfg.WindowStartHour || h >= s.cfg.WindowEndHour {
		s.log.Info("outside posting window, skipping hour plan", logx.Int("hour", h))
		return
	}

	min, max := s.hourlyBounds(ctx)
	s.rngMu.Lock()
	attempts := planAttempts(now, min, max, s.rng)
	s.rngMu.Unlock()

	s.log.Info("hour planned",
		logx.Int("attempts", len(attempts)),
		logx.Int("min_per_hour", min),
		logx.Int("max_per_hour", max))

	for _, at := range attempts {
		s.scheduleAttempt(ctx, at)
	}
}

// hourlyBounds reads the per-hour bounds from ledger state, falling back
// to the configured defaults, and clamps max >= min.
func (s *Scheduler) hourlyBounds(ctx context.Context) (int, int) {
	min := s.readStateInt(ctx, ledger.StateMinPerHour, s.cfg.MinPerHour)
	max := s.readStateInt(ctx, ledger.StateMaxPerHour, s.cfg.MaxPerHour)
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	return min, max
}

func (s *Scheduler) readStateInt(ctx context.Context, key string, def int) int {
	raw, err := s.ledger.GetState(ctx, key, strconv.Itoa(def))
	if err != nil {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (s *Scheduler) scheduleAttempt(ctx context.Context, at time.Time) {
	delay := at.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	id := fmt.Sprintf("attempt:%d", at.UnixNano())

	s.tmu.Lock()
	defer s.tmu.Unlock()
	if _, exists := s.timers[id]; exists {
		return
	}
	s.timers[id] = time.AfterFunc(delay, func() {
		s.tmu.Lock()
		delete(s.timers, id)
		s.tmu.Unlock()

		if ctx.Err() != nil {
			return
		}
		actx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
		defer cancel()
		s.runAttempt(actx)
	})
}

// runAttempt executes one publishing attempt: fetch a ranked batch and
// walk it in rank order until one offer posts. Transport and catalog
// errors are absorbed here and count as a non-success.
func (s *Scheduler) runAttempt(ctx context.Context) {
	paused, err := s.paused(ctx)
	if err != nil || paused {
		return
	}

	offers := rank.BestScored(ctx, s.source, s.cfg.BatchSize)
	posted := false
	for _, o := range offers {
		if !s.source.Available(ctx, o) {
			continue
		}
		ok, err := s.pipeline.PostOffer(ctx, o)
		if err != nil {
			s.log.Warn("post attempt errored", logx.String("product_id", o.ProductID), logx.Err(err))
			continue
		}
		if ok {
			posted = true
			break
		}
	}
	s.noteOutcome(ctx, posted)
}

// noteOutcome advances the circuit breaker. A success resets the counter;
// at or past the threshold each failure flips the durable pause flag and
// notifies the operators. The pause does not reset the counter, so after
// an operator resume a single further failure re-pauses immediately.
func (s *Scheduler) noteOutcome(ctx context.Context, posted bool) {
	s.mu.Lock()
	if posted {
		s.failures = 0
		s.mu.Unlock()
		return
	}
	s.failures++
	failures := s.failures
	s.mu.Unlock()

	s.log.Warn("no offer posted in attempt", logx.Int("consecutive_failures", failures))
	if failures < s.cfg.FailureThreshold {
		return
	}

	if err := s.ledger.SetState(ctx, ledger.StatePaused, "1"); err != nil {
		s.log.Error("failed to persist auto-pause", logx.Err(err))
		return
	}
	s.log.Error("auto-paused after consecutive posting failures", logx.Int("failures", failures))
	s.notify(ctx, fmt.Sprintf("Bot pausado automaticamente após %d falhas consecutivas de postagem.", failures))
}

func (s *Scheduler) paused(ctx context.Context) (bool, error) {
	v, err := s.ledger.GetState(ctx, ledger.StatePaused, "0")
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

// PendingAttempts reports how many one-shot attempts are currently
// scheduled (status surface).
func (s *Scheduler) PendingAttempts() int {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	return len(s.timers)
}

// ConsecutiveFailures exposes the breaker counter (status surface).
func (s *Scheduler) ConsecutiveFailures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}
