package normalize

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/medlake/medlake/internal/fetch"
)

func TestContainsPrice(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Price: 100 ETB", true},
		{"Only 50 birr!", true},
		{"costs $12", true},
		{"20 USD shipping included", true},
		{"No information here", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := ContainsPrice(tt.text); got != tt.want {
				t.Errorf("ContainsPrice(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestContainsContact(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Call 0912345678", true},
		{"Contact: +251912345678", true},
		{"Telegram: @user", true},
		{"No contact info", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := ContainsContact(tt.text); got != tt.want {
				t.Errorf("ContainsContact(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestHeuristics_CaseInsensitive(t *testing.T) {
	texts := []string{
		"Price: 100 ETB",
		"only 50 Birr",
		"telegram: @someone",
		"CALL 0912345678",
		"nothing relevant",
	}

	for _, text := range texts {
		upper := strings.ToUpper(text)
		if ContainsPrice(text) != ContainsPrice(upper) {
			t.Errorf("ContainsPrice not case-insensitive for %q", text)
		}
		if ContainsContact(text) != ContainsContact(upper) {
			t.Errorf("ContainsContact not case-insensitive for %q", text)
		}
	}
}

func TestNormalize(t *testing.T) {
	fixed := time.Date(2026, 1, 17, 12, 0, 0, 0, time.UTC)
	oldNow := nowFunc
	nowFunc = func() time.Time { return fixed }
	t.Cleanup(func() { nowFunc = oldNow })

	date := time.Date(2026, 1, 15, 8, 30, 0, 0, time.UTC)
	raw := fetch.RawMessage{
		ID:       42,
		Date:     date,
		Text:     "Price: 100 ETB, call 0912345678",
		HasMedia: true,
		Views:    120,
		Forwards: 3,
	}

	rec, err := Normalize(raw, "tikvahpharma")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if rec.MessageID != 42 {
		t.Errorf("message_id = %d", rec.MessageID)
	}
	if rec.ChannelName != "tikvahpharma" {
		t.Errorf("channel_name = %q", rec.ChannelName)
	}
	if rec.MessageDate == nil || !rec.MessageDate.Equal(date) {
		t.Errorf("message_date = %v, want %v", rec.MessageDate, date)
	}
	if !rec.HasMedia {
		t.Error("has_media = false, want true")
	}
	if rec.ImagePath != nil {
		t.Errorf("image_path = %v, want nil before media fetch", *rec.ImagePath)
	}
	if rec.Views != 120 || rec.Forwards != 3 {
		t.Errorf("views/forwards = %d/%d", rec.Views, rec.Forwards)
	}
	if !rec.ScrapedAt.Equal(fixed) {
		t.Errorf("scraped_at = %v, want %v", rec.ScrapedAt, fixed)
	}
	if rec.MessageLength != len([]rune(raw.Text)) {
		t.Errorf("message_length = %d", rec.MessageLength)
	}
	if !rec.ContainsPrice || !rec.ContainsContact {
		t.Errorf("heuristics = price:%v contact:%v, want both true", rec.ContainsPrice, rec.ContainsContact)
	}
}

func TestNormalize_NoDate(t *testing.T) {
	rec, err := Normalize(fetch.RawMessage{ID: 7}, "chemed")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if rec.MessageDate != nil {
		t.Errorf("message_date = %v, want nil", rec.MessageDate)
	}
	if rec.MessageText != "" || rec.MessageLength != 0 {
		t.Errorf("empty text expected, got %q len %d", rec.MessageText, rec.MessageLength)
	}
}

func TestNormalize_NegativeCounters(t *testing.T) {
	rec, err := Normalize(fetch.RawMessage{ID: 7, Views: -1, Forwards: -5}, "chemed")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if rec.Views != 0 || rec.Forwards != 0 {
		t.Errorf("views/forwards = %d/%d, want 0/0", rec.Views, rec.Forwards)
	}
}

func TestNormalize_Errors(t *testing.T) {
	_, err := Normalize(fetch.RawMessage{ID: 0}, "chemed")
	var nerr *Error
	if !errors.As(err, &nerr) {
		t.Fatalf("err = %v, want *normalize.Error", err)
	}

	_, err = Normalize(fetch.RawMessage{ID: 9}, "  ")
	if !errors.As(err, &nerr) {
		t.Fatalf("err = %v, want *normalize.Error", err)
	}
	if nerr.MessageID != 9 {
		t.Errorf("error message id = %d, want 9", nerr.MessageID)
	}
}

func TestNormalize_EmittedCountMatchesInput(t *testing.T) {
	raws := []fetch.RawMessage{
		{ID: 3, Text: "ok"},
		{ID: 0, Text: "bad id"},
		{ID: 2, Text: "ok"},
		{ID: 1, Text: "ok"},
	}

	emitted := 0
	failed := 0
	for _, raw := range raws {
		if _, err := Normalize(raw, "chemed"); err != nil {
			failed++
			continue
		}
		emitted++
	}

	if emitted != len(raws)-failed {
		t.Errorf("emitted %d, want %d", emitted, len(raws)-failed)
	}
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
}
