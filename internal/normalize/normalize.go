// Package normalize converts raw upstream messages into durable records.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/medlake/medlake/internal/fetch"
)

// Token lists for the classification heuristics. Matching is
// case-insensitive substring containment.
var (
	priceTokens   = []string{"etb", "birr", "usd", "$", "price", "ህ"}
	contactTokens = []string{"09", "+251", "@", "telegram", "call", "ጥያቄ"}
)

// Record is the durable unit of output. Field names match the warehouse
// column list exactly; downstream loaders depend on them.
type Record struct {
	MessageID       int64      `json:"message_id" db:"message_id"`
	ChannelName     string     `json:"channel_name" db:"channel_name"`
	MessageDate     *time.Time `json:"message_date" db:"message_date"`
	MessageText     string     `json:"message_text" db:"message_text"`
	HasMedia        bool       `json:"has_media" db:"has_media"`
	ImagePath       *string    `json:"image_path" db:"image_path"`
	Views           int        `json:"views" db:"views"`
	Forwards        int        `json:"forwards" db:"forwards"`
	ScrapedAt       time.Time  `json:"scraped_at" db:"scraped_at"`
	MessageLength   int        `json:"message_length" db:"message_length"`
	ContainsPrice   bool       `json:"contains_price" db:"contains_price"`
	ContainsContact bool       `json:"contains_contact" db:"contains_contact"`
}

// Error marks a single message that could not be normalized. Callers skip
// the message and continue; one malformed message never aborts a channel.
type Error struct {
	MessageID int64
	Reason    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("normalize message %d: %s", e.MessageID, e.Reason)
}

// nowFunc stamps scraped_at; overridden in tests.
var nowFunc = time.Now

// Normalize builds a Record from one raw message. The record's image_path
// is left empty; the media fetcher fills it in after a successful download.
func Normalize(raw fetch.RawMessage, channelName string) (Record, error) {
	if raw.ID <= 0 {
		return Record{}, &Error{MessageID: raw.ID, Reason: "missing message id"}
	}
	if strings.TrimSpace(channelName) == "" {
		return Record{}, &Error{MessageID: raw.ID, Reason: "missing channel name"}
	}

	rec := Record{
		MessageID:       raw.ID,
		ChannelName:     channelName,
		MessageText:     raw.Text,
		HasMedia:        raw.HasMedia,
		Views:           clampNonNegative(raw.Views),
		Forwards:        clampNonNegative(raw.Forwards),
		ScrapedAt:       nowFunc().UTC(),
		MessageLength:   len([]rune(raw.Text)),
		ContainsPrice:   ContainsPrice(raw.Text),
		ContainsContact: ContainsContact(raw.Text),
	}

	if !raw.Date.IsZero() {
		date := raw.Date.UTC()
		rec.MessageDate = &date
	}

	return rec, nil
}

// ContainsPrice reports whether the text mentions a price or currency.
// Pure and case-insensitive.
func ContainsPrice(text string) bool {
	return containsAny(text, priceTokens)
}

// ContainsContact reports whether the text carries contact information
// (phone prefix, country code, handle marker, keyword). Pure and
// case-insensitive.
func ContainsContact(text string) bool {
	return containsAny(text, contactTokens)
}

func containsAny(text string, tokens []string) bool {
	lowered := strings.ToLower(text)
	for _, token := range tokens {
		if strings.Contains(lowered, token) {
			return true
		}
	}
	return false
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
