// Package fetch pulls bounded windows of channel messages from the
// upstream under a retry and pacing policy that respects its rate budget.
package fetch

import (
	"context"
	"time"
)

// Channel is a resolved upstream channel handle.
type Channel struct {
	ID         int64
	AccessHash int64
	Title      string
	Username   string
}

// Name returns the best human identifier for the channel.
func (c Channel) Name() string {
	if c.Username != "" {
		return c.Username
	}
	return c.Title
}

// PhotoRef locates a downloadable photo attachment.
type PhotoRef struct {
	ID            int64
	AccessHash    int64
	FileReference []byte
	ThumbSize     string
}

// RawMessage is the upstream-provided message value. It is read-only once
// produced; the normalizer turns it into a durable record.
type RawMessage struct {
	ID       int64
	Date     time.Time // zero when the upstream omitted it
	Text     string
	HasMedia bool
	Photo    *PhotoRef // non-nil only for photo media
	Views    int
	Forwards int
}

// Client is the upstream transport the engine pulls pages through.
// Implementations map their transport errors onto this package's error
// types so the engine can classify them.
type Client interface {
	// Resolve turns a configured channel identifier into a Channel handle.
	Resolve(ctx context.Context, identifier string) (Channel, error)

	// History returns up to limit messages older than offsetID,
	// newest-first. offsetID zero starts from the most recent message.
	History(ctx context.Context, ch Channel, offsetID int, limit int) ([]RawMessage, error)
}
