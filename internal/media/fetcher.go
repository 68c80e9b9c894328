// Package media downloads photo attachments into the image root.
package media

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/medlake/medlake/internal/fetch"
	"github.com/medlake/medlake/internal/logger"
)

// Downloader fetches one photo to a local path.
type Downloader interface {
	DownloadPhoto(ctx context.Context, photo *fetch.PhotoRef, path string) error
}

// Fetcher downloads at most one photo per message. Media loss is never
// fatal: every failure mode degrades to "no path" and the text record is
// still saved.
type Fetcher struct {
	downloader Downloader
	imageRoot  string
	timeout    time.Duration
	log        logger.Logger

	now func() time.Time
}

// NewFetcher creates a media fetcher storing images under imageRoot, one
// subdirectory per channel.
func NewFetcher(downloader Downloader, imageRoot string, timeout time.Duration, log logger.Logger) (*Fetcher, error) {
	if downloader == nil {
		return nil, errors.New("media: downloader is required")
	}
	if strings.TrimSpace(imageRoot) == "" {
		return nil, errors.New("media: image root is required")
	}
	if timeout <= 0 {
		return nil, errors.New("media: timeout must be positive")
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Fetcher{
		downloader: downloader,
		imageRoot:  imageRoot,
		timeout:    timeout,
		log:        log,
		now:        time.Now,
	}, nil
}

// Fetch downloads the message's photo, returning the stored path and true
// on success. Non-photo media, download errors, timeouts, and empty files
// all return ("", false).
func (f *Fetcher) Fetch(ctx context.Context, raw fetch.RawMessage, channelName string) (string, bool) {
	if raw.Photo == nil {
		return "", false
	}

	dir := filepath.Join(f.imageRoot, sanitizeChannel(channelName))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		f.log.Error("create image dir", logger.String("dir", dir), logger.Error(err))
		return "", false
	}

	path := filepath.Join(dir, f.filename(channelName, raw.ID))

	dlCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := f.downloader.DownloadPhoto(dlCtx, raw.Photo, path); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			f.log.Warn("image download timed out", logger.Int64("message_id", raw.ID))
		} else {
			f.log.Error("image download failed", logger.Int64("message_id", raw.ID), logger.Error(err))
		}
		_ = os.Remove(path)
		return "", false
	}

	// A zero-byte file counts as failure.
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		f.log.Warn("image download produced no data", logger.Int64("message_id", raw.ID))
		_ = os.Remove(path)
		return "", false
	}

	f.log.Debug("downloaded image", logger.String("path", path))
	return path, true
}

// filename builds "<message_id>_<8-hex-hash>.jpg". The hash covers channel,
// message id, and the current timestamp, keeping names unique across re-runs.
func (f *Fetcher) filename(channelName string, messageID int64) string {
	sum := md5.Sum(fmt.Appendf(nil, "%s_%d_%d", channelName, messageID, f.now().UnixNano()))
	return fmt.Sprintf("%d_%s.jpg", messageID, hex.EncodeToString(sum[:])[:8])
}

func sanitizeChannel(name string) string {
	name = strings.ReplaceAll(name, "@", "")
	return strings.ReplaceAll(name, "/", "_")
}
