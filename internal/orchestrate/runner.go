// Package orchestrate drives multi-channel scrape runs: resolve, fetch,
// normalize, download media, persist, and report.
package orchestrate

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medlake/medlake/internal/fetch"
	"github.com/medlake/medlake/internal/lake"
	"github.com/medlake/medlake/internal/logger"
	"github.com/medlake/medlake/internal/normalize"
)

// Fetcher resolves channels and pulls their message history.
type Fetcher interface {
	Resolve(ctx context.Context, identifier string) (fetch.Channel, error)
	Fetch(ctx context.Context, ch fetch.Channel, limit int) ([]fetch.RawMessage, error)
}

// MediaFetcher downloads a message's photo, reporting success.
type MediaFetcher interface {
	Fetch(ctx context.Context, raw fetch.RawMessage, channelName string) (string, bool)
}

// BatchWriter persists one channel's records.
type BatchWriter interface {
	WriteBatch(channel string, records []normalize.Record) (lake.Manifest, error)
}

// Options configure a run.
type Options struct {
	MessagesPerChannel int
	Workers            int
	MessageDelay       time.Duration // recorded in the report
	ChannelDelayMin    time.Duration
	ChannelDelayMax    time.Duration
}

// Locations are the output directories recorded in the report.
type Locations struct {
	RawMessages string
	Images      string
	Logs        string
}

// Runner executes scrape runs. One channel failing never stops the others;
// only a canceled context ends the run early.
type Runner struct {
	engine Fetcher
	media  MediaFetcher
	writer BatchWriter
	opts   Options
	paths  Locations
	log    logger.Logger

	// Injected for tests.
	sleep     func(time.Duration)
	randDelay func() time.Duration
	now       func() time.Time
}

// NewRunner creates a runner over the given stages.
func NewRunner(engine Fetcher, media MediaFetcher, writer BatchWriter, opts Options, paths Locations, log logger.Logger) (*Runner, error) {
	if engine == nil || media == nil || writer == nil {
		return nil, errors.New("orchestrate: engine, media fetcher, and writer are required")
	}
	if opts.MessagesPerChannel < 1 {
		return nil, errors.New("orchestrate: messages per channel must be at least 1")
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if log == nil {
		log = logger.NewNop()
	}

	r := &Runner{
		engine: engine,
		media:  media,
		writer: writer,
		opts:   opts,
		paths:  paths,
		log:    log,
		sleep:  time.Sleep,
		now:    time.Now,
	}
	r.randDelay = func() time.Duration {
		spread := opts.ChannelDelayMax - opts.ChannelDelayMin
		if spread <= 0 {
			return opts.ChannelDelayMin
		}
		return opts.ChannelDelayMin + rand.N(spread)
	}
	return r, nil
}

// Run scrapes every channel in order and returns the run report. The report
// is always produced and lists every configured channel, failed ones with a
// zero count.
func (r *Runner) Run(ctx context.Context, channels []string) Report {
	report := newReport(uuid.NewString(), r.now().UTC(), len(channels), r.opts, r.paths)

	for i, identifier := range channels {
		if ctx.Err() != nil {
			r.log.Warn("run canceled", logger.Int("channels_done", i))
			break
		}

		count := r.scrapeChannel(ctx, identifier)
		report.ScrapeSession.ChannelsScraped[identifier] = count
		report.ScrapeSession.TotalMessages += count

		if i < len(channels)-1 {
			r.sleep(r.randDelay())
		}
	}

	return report
}

// scrapeChannel runs the full pipeline for one channel. Every failure is
// absorbed and logged; the return value is the number of records persisted.
func (r *Runner) scrapeChannel(ctx context.Context, identifier string) int {
	ch, err := r.engine.Resolve(ctx, identifier)
	if err != nil {
		var notFound *fetch.ChannelNotFoundError
		if errors.As(err, &notFound) {
			r.log.Warn("channel not found, skipping", logger.String("channel", identifier))
		} else {
			r.log.Error("resolve failed, skipping channel",
				logger.String("channel", identifier), logger.Error(err))
		}
		return 0
	}
	name := ch.Name()

	r.log.Info("scraping channel", logger.String("channel", name))

	raws, err := r.engine.Fetch(ctx, ch, r.opts.MessagesPerChannel)
	if err != nil {
		r.log.Error("fetch failed, skipping channel",
			logger.String("channel", name), logger.Error(err))
		return 0
	}

	records := r.process(ctx, name, raws)
	if len(records) == 0 {
		r.log.Warn("no messages, skipping batch write", logger.String("channel", name))
		return 0
	}

	manifest, err := r.writer.WriteBatch(name, records)
	if err != nil {
		r.log.Error("batch write failed",
			logger.String("channel", name), logger.Error(err))
		return 0
	}

	r.log.Info("channel done",
		logger.String("channel", name),
		logger.Int("messages", manifest.TotalMessages),
		logger.Int("images", manifest.WithImages))
	return manifest.TotalMessages
}

// process fans messages out to a worker pool for normalization and media
// download, preserving the input order in the result.
func (r *Runner) process(ctx context.Context, name string, raws []fetch.RawMessage) []normalize.Record {
	slots := make([]*normalize.Record, len(raws))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for range r.opts.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				raw := raws[i]
				rec, err := normalize.Normalize(raw, name)
				if err != nil {
					r.log.Warn("skipping malformed message",
						logger.String("channel", name), logger.Error(err))
					continue
				}
				if path, ok := r.media.Fetch(ctx, raw, name); ok {
					rec.ImagePath = &path
				}
				slots[i] = &rec
			}
		}()
	}

	for i := range raws {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	out := make([]normalize.Record, 0, len(raws))
	for _, rec := range slots {
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out
}
