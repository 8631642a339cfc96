package transport

import "context"

// ChatTarget addresses a chat and, optionally, a forum topic inside it.
type ChatTarget struct {
	ChatID   int64
	ThreadID int // telegram forum topic thread id (0 if none)
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Photo is an image message. URL is fetched by the messaging platform itself.
type Photo struct {
	URL     string
	Caption string
}

// TextSender delivers plain text. The log sink only needs this.
type TextSender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

// PhotoSender delivers an image with a caption.
type PhotoSender interface {
	SendPhoto(ctx context.Context, to ChatTarget, p Photo) (MessageRef, error)
}

type Adapter interface {
	TextSender
	PhotoSender
	Close() error
}
