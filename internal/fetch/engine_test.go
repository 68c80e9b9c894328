package fetch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/medlake/medlake/internal/logger"
)

// scriptedClient replays a fixed sequence of History results.
type scriptedClient struct {
	steps []step
	calls int
}

type step struct {
	msgs []RawMessage
	err  error
}

func (c *scriptedClient) Resolve(_ context.Context, identifier string) (Channel, error) {
	return Channel{ID: 1, Username: identifier}, nil
}

func (c *scriptedClient) History(_ context.Context, _ Channel, _ int, limit int) ([]RawMessage, error) {
	if c.calls >= len(c.steps) {
		return nil, nil
	}
	s := c.steps[c.calls]
	c.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.msgs) > limit {
		return s.msgs[:limit], nil
	}
	return s.msgs, nil
}

func messages(startID int64, n int) []RawMessage {
	out := make([]RawMessage, n)
	for i := range out {
		out[i] = RawMessage{ID: startID - int64(i), Text: fmt.Sprintf("msg %d", startID-int64(i))}
	}
	return out
}

func newTestEngine(t *testing.T, client Client, opts Options) (*Engine, *[]time.Duration) {
	t.Helper()
	eng, err := NewEngine(client, opts, logger.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	var sleeps []time.Duration
	eng.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	eng.jitter = func() time.Duration { return 2 * time.Second }
	return eng, &sleeps
}

func TestNewEngine_Validation(t *testing.T) {
	if _, err := NewEngine(nil, Options{MaxRetries: 3, PageSize: 100}, nil); err == nil {
		t.Error("expected error for nil client")
	}
	if _, err := NewEngine(&scriptedClient{}, Options{MaxRetries: 0, PageSize: 100}, nil); err == nil {
		t.Error("expected error for zero retries")
	}
	if _, err := NewEngine(&scriptedClient{}, Options{MaxRetries: 3, PageSize: 0}, nil); err == nil {
		t.Error("expected error for zero page size")
	}
}

func TestFetch_SinglePage(t *testing.T) {
	client := &scriptedClient{steps: []step{{msgs: messages(100, 10)}}}
	eng, _ := newTestEngine(t, client, Options{MaxRetries: 3, PageSize: 100})

	got, err := eng.Fetch(context.Background(), Channel{}, 100)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("got %d messages, want 10", len(got))
	}
	// newest-first ordering preserved from the upstream
	if got[0].ID != 100 || got[9].ID != 91 {
		t.Errorf("ordering broken: first=%d last=%d", got[0].ID, got[9].ID)
	}
}

func TestFetch_LimitCap(t *testing.T) {
	client := &scriptedClient{steps: []step{
		{msgs: messages(100, 100)},
		{msgs: messages(0, 0)},
	}}
	eng, _ := newTestEngine(t, client, Options{MaxRetries: 3, PageSize: 100})

	got, err := eng.Fetch(context.Background(), Channel{}, 25)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 25 {
		t.Errorf("got %d messages, want exactly the limit 25", len(got))
	}
}

func TestFetch_CongestionSleepsAtLeastWait(t *testing.T) {
	wait := 5 * time.Second
	client := &scriptedClient{steps: []step{
		{msgs: messages(100, 40)},
		{err: &CongestionError{Wait: wait}},
		{msgs: messages(60, 60)},
	}}
	eng, sleeps := newTestEngine(t, client, Options{MaxRetries: 3, PageSize: 100})

	got, err := eng.Fetch(context.Background(), Channel{}, 100)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 100 {
		t.Fatalf("got %d messages, want 100 (40 before the wait plus the rest)", len(got))
	}

	found := false
	for _, d := range *sleeps {
		if d >= wait {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("no sleep of at least %s recorded after congestion signal; sleeps=%v", wait, *sleeps)
	}
}

func TestFetch_CongestionAddsGrace(t *testing.T) {
	client := &scriptedClient{steps: []step{
		{err: &CongestionError{Wait: 7 * time.Second}},
		{msgs: messages(10, 1)},
	}}
	eng, sleeps := newTestEngine(t, client, Options{MaxRetries: 3, PageSize: 100})

	if _, err := eng.Fetch(context.Background(), Channel{}, 1); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if (*sleeps)[0] != 7*time.Second+congestionGrace {
		t.Errorf("congestion sleep = %v, want %v", (*sleeps)[0], 7*time.Second+congestionGrace)
	}
}

func TestFetch_TransientBackoff(t *testing.T) {
	client := &scriptedClient{steps: []step{
		{err: &TransientError{Err: errors.New("RPC_CALL_FAIL")}},
		{msgs: messages(10, 1)},
	}}
	eng, sleeps := newTestEngine(t, client, Options{MaxRetries: 3, PageSize: 100})

	if _, err := eng.Fetch(context.Background(), Channel{}, 1); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if (*sleeps)[0] != transientBackoff {
		t.Errorf("transient sleep = %v, want %v", (*sleeps)[0], transientBackoff)
	}
}

func TestFetch_UnexpectedBackoff(t *testing.T) {
	client := &scriptedClient{steps: []step{
		{err: errors.New("boom")},
		{msgs: messages(10, 1)},
	}}
	eng, sleeps := newTestEngine(t, client, Options{MaxRetries: 3, PageSize: 100})

	if _, err := eng.Fetch(context.Background(), Channel{}, 1); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if (*sleeps)[0] != unexpectedBackoff {
		t.Errorf("unexpected-error sleep = %v, want %v", (*sleeps)[0], unexpectedBackoff)
	}
}

func TestFetch_ExhaustedRetriesKeepPartial(t *testing.T) {
	client := &scriptedClient{steps: []step{
		{msgs: messages(100, 30)},
		{err: errors.New("boom 1")},
		{err: errors.New("boom 2")},
		{err: errors.New("boom 3")},
	}}
	eng, _ := newTestEngine(t, client, Options{MaxRetries: 3, PageSize: 100})

	got, err := eng.Fetch(context.Background(), Channel{}, 100)
	if err != nil {
		t.Fatalf("Fetch must not fail on exhausted retries: %v", err)
	}
	if len(got) != 30 {
		t.Errorf("got %d messages, want the 30 accumulated before exhaustion", len(got))
	}
}

func TestFetch_ChannelNotFoundAborts(t *testing.T) {
	client := &scriptedClient{steps: []step{
		{err: &ChannelNotFoundError{Identifier: "ghost"}},
	}}
	eng, _ := newTestEngine(t, client, Options{MaxRetries: 3, PageSize: 100})

	_, err := eng.Fetch(context.Background(), Channel{}, 100)
	var notFound *ChannelNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want ChannelNotFoundError", err)
	}
	if client.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry for missing channel)", client.calls)
	}
}

func TestFetch_JitterEveryFifty(t *testing.T) {
	client := &scriptedClient{steps: []step{{msgs: messages(200, 100)}}}
	eng, sleeps := newTestEngine(t, client, Options{MessageDelay: time.Millisecond, MaxRetries: 3, PageSize: 100})

	if _, err := eng.Fetch(context.Background(), Channel{}, 100); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	jitters := 0
	for _, d := range *sleeps {
		if d == 2*time.Second {
			jitters++
		}
	}
	if jitters != 2 {
		t.Errorf("jitter sleeps = %d, want 2 (at message 50 and 100)", jitters)
	}

	delays := 0
	for _, d := range *sleeps {
		if d == time.Millisecond {
			delays++
		}
	}
	if delays != 100 {
		t.Errorf("per-message delays = %d, want 100", delays)
	}
}

func TestFetch_ContextCanceled(t *testing.T) {
	client := &scriptedClient{steps: []step{{msgs: messages(100, 10)}}}
	eng, _ := newTestEngine(t, client, Options{MaxRetries: 3, PageSize: 100})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Fetch(ctx, Channel{}, 100)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestFetch_EmptyChannel(t *testing.T) {
	client := &scriptedClient{steps: nil}
	eng, _ := newTestEngine(t, client, Options{MaxRetries: 3, PageSize: 100})

	got, err := eng.Fetch(context.Background(), Channel{}, 100)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d messages, want 0", len(got))
	}
}
