package fetch

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/medlake/medlake/internal/logger"
)

const (
	transientBackoff  = 5 * time.Second
	unexpectedBackoff = 10 * time.Second
	congestionGrace   = 5 * time.Second

	jitterEvery  = 50
	jitterMin    = 1 * time.Second
	jitterSpread = 2 * time.Second
)

// Options configure an Engine.
type Options struct {
	MessageDelay time.Duration // pause after each message received
	MaxRetries   int           // retry budget per channel fetch
	PageSize     int           // messages requested per upstream call
}

// Engine streams messages from one channel at a time, pacing requests and
// absorbing upstream failures up to a retry budget. Exhausting the budget
// yields whatever was accumulated, never an error: partially fetched data
// is always kept.
type Engine struct {
	client Client
	opts   Options
	log    logger.Logger

	// Injected for tests.
	sleep  func(time.Duration)
	jitter func() time.Duration
}

// NewEngine creates a fetch engine over the given upstream client.
func NewEngine(client Client, opts Options, log logger.Logger) (*Engine, error) {
	if client == nil {
		return nil, errors.New("fetch: client is required")
	}
	if opts.MaxRetries < 1 {
		return nil, errors.New("fetch: max retries must be at least 1")
	}
	if opts.PageSize < 1 {
		return nil, errors.New("fetch: page size must be at least 1")
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Engine{
		client: client,
		opts:   opts,
		log:    log,
		sleep:  time.Sleep,
		jitter: func() time.Duration { return jitterMin + rand.N(jitterSpread) },
	}, nil
}

// Resolve turns a configured identifier into a channel handle.
func (e *Engine) Resolve(ctx context.Context, identifier string) (Channel, error) {
	return e.client.Resolve(ctx, identifier)
}

// Fetch pulls up to limit messages from the channel, newest-first.
//
// On a congestion signal it sleeps for the upstream-dictated wait plus a
// fixed grace; on a transient protocol error it sleeps a short fixed
// interval; on anything else a longer one. Each failure consumes one retry
// attempt. When the budget runs out the accumulated messages are returned
// with a nil error. Only an unresolvable channel or a canceled context
// aborts the fetch.
func (e *Engine) Fetch(ctx context.Context, ch Channel, limit int) ([]RawMessage, error) {
	var out []RawMessage
	offsetID := 0
	retries := 0

	for len(out) < limit {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		want := e.opts.PageSize
		if remaining := limit - len(out); remaining < want {
			want = remaining
		}

		page, err := e.client.History(ctx, ch, offsetID, want)
		if err != nil {
			var notFound *ChannelNotFoundError
			if errors.As(err, &notFound) {
				return out, err
			}

			retries++
			wait := e.classify(ch, err)
			if retries >= e.opts.MaxRetries {
				e.log.Warn("retry budget exhausted, keeping partial fetch",
					logger.String("channel", ch.Name()),
					logger.Int("messages", len(out)))
				return out, nil
			}
			e.sleep(wait)
			continue
		}

		if len(page) == 0 {
			break // channel history exhausted
		}

		for _, msg := range page {
			out = append(out, msg)
			offsetID = int(msg.ID)

			e.sleep(e.opts.MessageDelay)
			if len(out)%jitterEvery == 0 {
				e.sleep(e.jitter())
				e.log.Info("fetch progress",
					logger.String("channel", ch.Name()),
					logger.Int("messages", len(out)))
			}
			if len(out) == limit {
				break
			}
		}
	}

	return out, nil
}

// classify logs the failure and returns how long to wait before retrying.
func (e *Engine) classify(ch Channel, err error) time.Duration {
	var congestion *CongestionError
	if errors.As(err, &congestion) {
		e.log.Warn("upstream congestion signal",
			logger.String("channel", ch.Name()),
			logger.Duration("wait", congestion.Wait))
		return congestion.Wait + congestionGrace
	}

	var transient *TransientError
	if errors.As(err, &transient) {
		e.log.Error("transient protocol error",
			logger.String("channel", ch.Name()), logger.Error(err))
		return transientBackoff
	}

	e.log.Error("unexpected fetch error",
		logger.String("channel", ch.Name()), logger.Error(err))
	return unexpectedBackoff
}
