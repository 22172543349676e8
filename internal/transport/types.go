package transport

import "context"

// Update is one incoming event from the chat platform.
// The bot only cares about plain text messages (admin commands).
type Update struct {
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
}

// ChatTarget addresses an outgoing send: a channel, group or user chat.
type ChatTarget struct {
	ChatID   int64
	Username string // "@channel" style target; takes precedence when set
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Adapter abstracts the delivery platform (Telegram today).
//
// SendPhoto delivers an image by URL with a caption; SendText is the
// caption-only fallback. Both are best-effort and bounded by ctx.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendPhoto(ctx context.Context, to ChatTarget, photoURL, caption string, opt *SendOptions) (MessageRef, error)
}
