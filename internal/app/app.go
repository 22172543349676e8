// Package app wires configuration, logging, storage, the catalog source,
// the publishing pipeline, the scheduler and the admin command loop into
// one runnable bot.
package app

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"promobot/internal/catalog"
	"promobot/internal/config"
	"promobot/internal/ledger"
	"promobot/internal/publish"
	"promobot/internal/rank"
	"promobot/internal/scheduler"
	kit "promobot/internal/transport"
	"promobot/internal/transport/telegram"
	logx "promobot/pkg/logx"
)

type Options struct {
	// DryRun forces delivery off regardless of config (simulation CLIs).
	DryRun bool

	// NoScheduler skips starting the hourly scheduler (one-shot CLIs).
	NoScheduler bool
}

type App struct {
	cfgm *config.Manager
	rt   *config.Runtime
	opts Options

	log  logx.Logger
	logs *logx.Service

	adapter  *telegram.Adapter
	ledger   *ledger.Ledger
	source   catalog.Source
	pipeline *publish.Pipeline
	sched    *scheduler.Scheduler

	channel kit.ChatTarget
	admins  []int64

	updates chan kit.Update

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string, opts Options) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	rt, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole(rt.Logging.Level)

	ad, err := telegram.New(telegram.Config{
		Token:          rt.Telegram.Token,
		PollTimeout:    rt.Telegram.PollTimeout,
		SendRatePerSec: rt.Telegram.SendRatePerSec,
		// dry-run tooling must work without Telegram reachability
		Offline: opts.DryRun,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   rt.Logging.Level,
		Console: rt.Logging.LoggingConsole(),
		File: logx.FileConfig{
			Enabled: rt.Logging.File.Enabled,
			Path:    rt.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    rt.Logging.Telegram.Enabled,
			MinLevel:   rt.Logging.Telegram.MinLevel,
			RatePerSec: rt.Logging.Telegram.RatePerSec,
		},
	}, ad)
	if rt.Logging.Telegram.ChatID != 0 {
		logSvc.SetTelegramTarget(kit.ChatTarget{ChatID: rt.Logging.Telegram.ChatID})
	}
	cfgm.SetLogger(log.With(logx.String("component", "config")))

	led, err := ledger.Open(ledger.Config{
		Path:        rt.Storage.Path,
		BusyTimeout: rt.Storage.BusyTimeout,
	}, log)
	if err != nil {
		return nil, err
	}

	src := catalog.NewClient(catalog.ClientConfig{
		AppKey:     rt.AliExpress.AppKey,
		AppSecret:  rt.AliExpress.AppSecret,
		TrackingID: rt.AliExpress.TrackingID,
		Timeout:    rt.AliExpress.Timeout,
	}, log)

	channel := channelTarget(rt.Telegram.Channel)
	sendEnabled := !rt.Posting.DryRun && !opts.DryRun
	pipe := publish.New(led, src, ad, channel, sendEnabled, log)

	a := &App{
		cfgm:     cfgm,
		rt:       rt,
		opts:     opts,
		log:      log.With(logx.String("component", "app")),
		logs:     logSvc,
		adapter:  ad,
		ledger:   led,
		source:   src,
		pipeline: pipe,
		channel:  channel,
		admins:   rt.Telegram.AdminUserIDs,
		updates:  make(chan kit.Update, 256),
	}

	a.sched = scheduler.New(scheduler.Config{
		Location:        rt.Posting.Location,
		WindowStartHour: rt.Posting.WindowStartHour,
		WindowEndHour:   rt.Posting.WindowEndHour,
		MinPerHour:      rt.Posting.MinPerHour,
		MaxPerHour:      rt.Posting.MaxPerHour,
	}, led, src, pipe, a.NotifyAdmins, log)

	return a, nil
}

func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	if err := a.adapter.Start(ctx, a.updates); err != nil {
		return err
	}

	if !a.opts.NoScheduler {
		if err := a.sched.Start(ctx); err != nil {
			return err
		}
	}

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.commandLoop(ctx)
	}()
	go func() {
		defer a.wg.Done()
		// Hot-reload: logging changes apply immediately; everything else
		// takes effect on restart.
		sub := a.cfgm.Subscribe(1)
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyReload(cfg)
			}
		}
	}()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(ctx)
	}()

	a.log.Info("promobot started", logx.String("channel", a.rt.Telegram.Channel))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.sched.Stop()
	err := a.adapter.Stop(ctx)
	a.wg.Wait()
	_ = a.ledger.Close()
	_ = a.logs.Close()
	return err
}

func (a *App) applyReload(cfg *config.Config) {
	rt, err := cfg.Resolve()
	if err != nil {
		a.log.Warn("reloaded config rejected", logx.Err(err))
		return
	}
	a.logs.Apply(logx.Config{
		Level:   rt.Logging.Level,
		Console: rt.Logging.LoggingConsole(),
		File: logx.FileConfig{
			Enabled: rt.Logging.File.Enabled,
			Path:    rt.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    rt.Logging.Telegram.Enabled,
			MinLevel:   rt.Logging.Telegram.MinLevel,
			RatePerSec: rt.Logging.Telegram.RatePerSec,
		},
	})
	if rt.Logging.Telegram.ChatID != 0 {
		a.logs.SetTelegramTarget(kit.ChatTarget{ChatID: rt.Logging.Telegram.ChatID})
	}
	a.log.Info("logging configuration reloaded")
}

// PostNow runs one immediate best-effort publish attempt and returns the
// posted offer, if any. It does not touch the scheduler's failure counter.
func (a *App) PostNow(ctx context.Context) (catalog.Offer, bool) {
	offers := rank.BestScored(ctx, a.source, 20)
	for _, o := range offers {
		if !a.source.Available(ctx, o) {
			continue
		}
		ok, err := a.pipeline.PostOffer(ctx, o)
		if err != nil {
			a.log.Warn("postnow attempt errored", logx.String("product_id", o.ProductID), logx.Err(err))
			continue
		}
		if ok {
			return o, true
		}
	}
	return catalog.Offer{}, false
}

// Simulate runs up to n publishes through the pipeline. Intended for
// dry-run mode; returns how many offers were recorded.
func (a *App) Simulate(ctx context.Context, n int) int {
	limit := n * 3
	if limit < 20 {
		limit = 20
	}
	offers := rank.BestScored(ctx, a.source, limit)
	count := 0
	for _, o := range offers {
		ok, err := a.pipeline.PostOffer(ctx, o)
		if err != nil {
			a.log.Warn("simulated post errored", logx.String("product_id", o.ProductID), logx.Err(err))
			continue
		}
		if ok {
			count++
		}
		if count >= n {
			break
		}
	}
	return count
}

// NotifyAdmins sends text to every configured admin, best-effort.
func (a *App) NotifyAdmins(ctx context.Context, text string) {
	for _, id := range a.admins {
		if _, err := a.adapter.SendText(ctx, kit.ChatTarget{ChatID: id}, text, nil); err != nil {
			a.log.Warn("could not notify admin", logx.Int64("admin_id", id), logx.Err(err))
		}
	}
}

// channelTarget parses "@channelname" or a numeric chat id.
func channelTarget(s string) kit.ChatTarget {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "@") {
		return kit.ChatTarget{Username: s}
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return kit.ChatTarget{ChatID: id}
	}
	return kit.ChatTarget{Username: s}
}
