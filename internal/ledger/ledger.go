// Package ledger is the durable record of what was posted and when, plus
// small typed key/value process state (pause flag, rate bounds).
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "promobot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// State keys used by the scheduler and admin commands.
const (
	StatePaused     = "paused" // "0" / "1"
	StateMinPerHour = "min_per_hour"
	StateMaxPerHour = "max_per_hour"
)

type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// PostRecord is one append-only posting fact.
type PostRecord struct {
	ProductID string
	PostedAt  time.Time
	Price     float64
	Coupon    string
}

type Ledger struct {
	db  *sql.DB
	log logx.Logger
}

func Open(cfg Config, log logx.Logger) (*Ledger, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("ledger: path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	l := &Ledger{db: db, log: log}
	if err := l.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx, string(b))
	return err
}

func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// ---- Posts ----

// RecordPost appends one posting fact. Duplicate (product_id, posted_at)
// pairs are silently ignored.
func (l *Ledger) RecordPost(ctx context.Context, r PostRecord) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO posts(product_id, posted_at, price, coupon) VALUES(?,?,?,?)`,
		r.ProductID, r.PostedAt.UnixMilli(), r.Price, nullStr(r.Coupon),
	)
	return err
}

// WasPostedSince reports whether product_id has a post at or after cutoff.
func (l *Ledger) WasPostedSince(ctx context.Context, productID string, cutoff time.Time) (bool, error) {
	var one int
	err := l.db.QueryRowContext(ctx,
		`SELECT 1 FROM posts WHERE product_id = ? AND posted_at >= ? LIMIT 1`,
		productID, cutoff.UnixMilli(),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RecentPosts returns up to limit posting facts, newest first.
func (l *Ledger) RecentPosts(ctx context.Context, limit int) ([]PostRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT product_id, posted_at, price, coupon FROM posts ORDER BY posted_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PostRecord
	for rows.Next() {
		var (
			r      PostRecord
			ms     int64
			price  sql.NullFloat64
			coupon sql.NullString
		)
		if err := rows.Scan(&r.ProductID, &ms, &price, &coupon); err != nil {
			return nil, err
		}
		r.PostedAt = time.UnixMilli(ms)
		r.Price = price.Float64
		r.Coupon = coupon.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---- Process state ----

// GetState returns the value for key, or def when the key was never set.
func (l *Ledger) GetState(ctx context.Context, key, def string) (string, error) {
	var v string
	err := l.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	return v, nil
}

// SetState stores key=value, last write wins.
func (l *Ledger) SetState(ctx context.Context, key, value string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO state(key, value) VALUES(?,?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value,
	)
	return err
}

// ---- Click metrics ----

func (l *Ledger) RecordClick(ctx context.Context, productID string, at time.Time) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO clicks(product_id, clicked_at) VALUES(?,?)`,
		productID, at.UnixMilli(),
	)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
