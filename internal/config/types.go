package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram   TelegramConfig   `json:"telegram"`
	AliExpress AliExpressConfig `json:"aliexpress"`
	Posting    PostingConfig    `json:"posting"`
	Storage    StorageConfig    `json:"storage"`
	Logging    LoggingConfig    `json:"logging"`
}

type TelegramConfig struct {
	Token string `json:"token"`

	// Channel is the broadcast target: "@channelname" or a numeric chat id.
	Channel string `json:"channel"`

	// AdminUserIDs may run admin commands and receive operator notifications.
	AdminUserIDs []int64 `json:"admin_user_ids"`

	PollTimeout string `json:"poll_timeout,omitempty"` // default "10s"

	// SendRatePerSec bounds outbound sends (Telegram flood control).
	SendRatePerSec int `json:"send_rate_per_sec,omitempty"` // default 1
}

type AliExpressConfig struct {
	AppKey     string `json:"app_key"`
	AppSecret  string `json:"app_secret"`
	TrackingID string `json:"tracking_id"`

	Timeout string `json:"timeout,omitempty"` // per API call, default "15s"
}

// PostingConfig controls the publishing cadence.
type PostingConfig struct {
	Timezone string `json:"timezone,omitempty"` // IANA TZ, default "America/Sao_Paulo"

	// Active daily window [start, end) in local hours.
	WindowStartHour int `json:"window_start_hour,omitempty"` // default 8
	WindowEndHour   int `json:"window_end_hour,omitempty"`   // default 22

	// Default per-hour bounds; runtime /freq overrides live in the ledger.
	MinPerHour int `json:"min_per_hour,omitempty"` // default 20
	MaxPerHour int `json:"max_per_hour,omitempty"` // default 25

	// DryRun runs the full pipeline but skips the outbound delivery call.
	DryRun bool `json:"dry_run,omitempty"`
}

type StorageConfig struct {
	Path        string `json:"path"`                   // sqlite file, default "data/promobot.sqlite3"
	BusyTimeout string `json:"busy_timeout,omitempty"` // default "5s"
}

type LoggingConfig struct {
	Level    string            `json:"level,omitempty"` // debug|info|warn|error
	Console  *bool             `json:"console,omitempty"`
	File     LogFileConfig     `json:"file,omitempty"`
	Telegram LogTelegramConfig `json:"telegram,omitempty"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// LogTelegramConfig mirrors warnings and errors into an admin chat.
type LogTelegramConfig struct {
	Enabled    bool   `json:"enabled,omitempty"`
	ChatID     int64  `json:"chat_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"` // default "warn"
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// Runtime is the validated, resolved form of Config.
type Runtime struct {
	Telegram struct {
		Token          string
		Channel        string
		AdminUserIDs   []int64
		PollTimeout    time.Duration
		SendRatePerSec int
	}
	AliExpress struct {
		AppKey     string
		AppSecret  string
		TrackingID string
		Timeout    time.Duration
	}
	Posting struct {
		Location        *time.Location
		WindowStartHour int
		WindowEndHour   int
		MinPerHour      int
		MaxPerHour      int
		DryRun          bool
	}
	Storage struct {
		Path        string
		BusyTimeout time.Duration
	}
	Logging LoggingConfig
}

// Resolve validates cfg and fills defaults.
func (c *Config) Resolve() (*Runtime, error) {
	if c == nil {
		return nil, errors.New("nil config")
	}
	var r Runtime

	if strings.TrimSpace(c.Telegram.Token) == "" {
		return nil, errors.New("telegram.token is required")
	}
	r.Telegram.Token = strings.TrimSpace(c.Telegram.Token)
	r.Telegram.Channel = strings.TrimSpace(c.Telegram.Channel)
	if r.Telegram.Channel == "" {
		return nil, errors.New("telegram.channel is required")
	}
	r.Telegram.AdminUserIDs = append([]int64(nil), c.Telegram.AdminUserIDs...)

	var err error
	r.Telegram.PollTimeout, err = ParseDurationOrDefault("telegram.poll_timeout", c.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	r.Telegram.SendRatePerSec = c.Telegram.SendRatePerSec
	if r.Telegram.SendRatePerSec <= 0 {
		r.Telegram.SendRatePerSec = 1
	}

	r.AliExpress.AppKey = strings.TrimSpace(c.AliExpress.AppKey)
	r.AliExpress.AppSecret = strings.TrimSpace(c.AliExpress.AppSecret)
	r.AliExpress.TrackingID = strings.TrimSpace(c.AliExpress.TrackingID)
	if r.AliExpress.TrackingID == "" {
		r.AliExpress.TrackingID = "BOT_TELEGRAM"
	}
	r.AliExpress.Timeout, err = ParseDurationOrDefault("aliexpress.timeout", c.AliExpress.Timeout, 15*time.Second)
	if err != nil {
		return nil, err
	}

	tz := strings.TrimSpace(c.Posting.Timezone)
	if tz == "" {
		tz = "America/Sao_Paulo"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("posting.timezone: unknown timezone %q: %w", tz, err)
	}
	r.Posting.Location = loc

	r.Posting.WindowStartHour = c.Posting.WindowStartHour
	r.Posting.WindowEndHour = c.Posting.WindowEndHour
	if r.Posting.WindowStartHour == 0 && r.Posting.WindowEndHour == 0 {
		r.Posting.WindowStartHour, r.Posting.WindowEndHour = 8, 22
	}
	if r.Posting.WindowStartHour < 0 || r.Posting.WindowStartHour > 23 ||
		r.Posting.WindowEndHour < 1 || r.Posting.WindowEndHour > 24 ||
		r.Posting.WindowEndHour <= r.Posting.WindowStartHour {
		return nil, fmt.Errorf("posting: invalid window %d..%d", r.Posting.WindowStartHour, r.Posting.WindowEndHour)
	}

	r.Posting.MinPerHour = c.Posting.MinPerHour
	if r.Posting.MinPerHour <= 0 {
		r.Posting.MinPerHour = 20
	}
	r.Posting.MaxPerHour = c.Posting.MaxPerHour
	if r.Posting.MaxPerHour <= 0 {
		r.Posting.MaxPerHour = 25
	}
	if r.Posting.MaxPerHour < r.Posting.MinPerHour {
		return nil, fmt.Errorf("posting: max_per_hour (%d) < min_per_hour (%d)", r.Posting.MaxPerHour, r.Posting.MinPerHour)
	}
	r.Posting.DryRun = c.Posting.DryRun

	r.Storage.Path = strings.TrimSpace(c.Storage.Path)
	if r.Storage.Path == "" {
		r.Storage.Path = "data/promobot.sqlite3"
	}
	r.Storage.BusyTimeout, err = ParseDurationOrDefault("storage.busy_timeout", c.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}

	r.Logging = c.Logging
	return &r, nil
}

// LoggingConsole reports whether console output is enabled (default true).
func (l LoggingConfig) LoggingConsole() bool {
	if l.Console == nil {
		return true
	}
	return *l.Console
}
