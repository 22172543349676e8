// Package publish ties link generation, message rendering, channel
// delivery and ledger recording into one failure-aware unit.
package publish

import (
	"context"
	"time"

	"promobot/internal/catalog"
	"promobot/internal/ledger"
	kit "promobot/internal/transport"
	logx "promobot/pkg/logx"
)

// RepostInterval is the minimum elapsed time before the same product may
// be published again.
const RepostInterval = 48 * time.Hour

type Pipeline struct {
	ledger  *ledger.Ledger
	source  catalog.Source
	adapter kit.Adapter
	channel kit.ChatTarget

	// SendEnabled false = dry-run: the full pipeline runs but the outbound
	// delivery call is skipped.
	sendEnabled bool

	log logx.Logger

	// now is the clock; overridable in tests.
	now func() time.Time
}

func New(l *ledger.Ledger, src catalog.Source, adapter kit.Adapter, channel kit.ChatTarget, sendEnabled bool, log logx.Logger) *Pipeline {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Pipeline{
		ledger:      l,
		source:      src,
		adapter:     adapter,
		channel:     channel,
		sendEnabled: sendEnabled,
		log:         log.With(logx.String("component", "publish")),
		now:         time.Now,
	}
}

// PostOffer attempts to publish one offer to the channel.
//
// It returns (true, nil) iff the offer was delivered (or dry-run) and
// recorded in the ledger. A duplicate within the re-post window is a
// normal negative result: (false, nil) with no side effects.
func (p *Pipeline) PostOffer(ctx context.Context, o catalog.Offer) (bool, error) {
	now := p.now()

	dup, err := p.ledger.WasPostedSince(ctx, o.ProductID, now.Add(-RepostInterval))
	if err != nil {
		return false, err
	}
	if dup {
		return false, nil
	}

	link := p.source.GenerateAffiliateLink(ctx, o)
	caption := Caption(o, link)

	if p.sendEnabled {
		if err := p.deliver(ctx, o, caption); err != nil {
			return false, err
		}
	} else {
		p.log.Info("[dry-run] would post", logx.String("product_id", o.ProductID))
	}

	if err := p.ledger.RecordPost(ctx, ledger.PostRecord{
		ProductID: o.ProductID,
		PostedAt:  now,
		Price:     o.Price,
		Coupon:    o.Coupon,
	}); err != nil {
		return false, err
	}

	p.log.Info("offer posted",
		logx.String("product_id", o.ProductID),
		logx.Float64("price", o.Price),
		logx.Float64("discount_pct", o.DiscountPct),
		logx.Bool("dry_run", !p.sendEnabled))
	return true, nil
}

// deliver sends the photo post, falling back to text-only when the photo
// send fails. At most two transport calls are made.
func (p *Pipeline) deliver(ctx context.Context, o catalog.Offer, caption string) error {
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: false}

	if o.ImageURL != "" {
		_, err := p.adapter.SendPhoto(ctx, p.channel, o.ImageURL, caption, opt)
		if err == nil {
			return nil
		}
		p.log.Warn("photo send failed, falling back to text",
			logx.String("product_id", o.ProductID), logx.Err(err))
	}

	_, err := p.adapter.SendText(ctx, p.channel, caption, opt)
	return err
}
