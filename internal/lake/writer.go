// Package lake persists normalized records into a date-partitioned data lake.
package lake

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/medlake/medlake/internal/logger"
	"github.com/medlake/medlake/internal/normalize"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Supported output formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// csvHeader mirrors the warehouse column order.
var csvHeader = []string{
	"message_id", "channel_name", "message_date", "message_text",
	"has_media", "image_path", "views", "forwards",
	"scraped_at", "message_length", "contains_price", "contains_contact",
}

// Manifest summarizes one channel's batch. It sits next to the data file so
// the lake is browsable without parsing the full batch.
type Manifest struct {
	Channel       string    `json:"channel"`
	TotalMessages int       `json:"total_messages"`
	DateScraped   time.Time `json:"date_scraped"`
	DateRange     DateRange `json:"date_range"`
	WithImages    int       `json:"with_images"`
	TotalViews    int       `json:"total_views"`
	FilePath      string    `json:"file_path"`
}

// DateRange bounds the message dates in a batch. Earliest comes from the
// last record and Latest from the first, matching newest-first batch order.
type DateRange struct {
	Earliest *time.Time `json:"earliest"`
	Latest   *time.Time `json:"latest"`
}

// Writer lays batches out as <root>/<YYYY-MM-DD>/<channel>.<ext> plus a
// manifest per channel. Re-running a day replaces that day's files.
type Writer struct {
	root   string
	format string
	log    logger.Logger

	now func() time.Time
}

// NewWriter creates a lake writer rooted at dir.
func NewWriter(dir, format string, log logger.Logger) (*Writer, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("lake: root dir is required")
	}
	if format != FormatJSON && format != FormatCSV {
		return nil, fmt.Errorf("lake: unsupported format %q", format)
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Writer{root: dir, format: format, log: log, now: time.Now}, nil
}

// WriteBatch persists one channel's records under the batch's date
// partition and writes the channel manifest beside them. The partition is
// the date of the first record; batches with no dated first record land
// under today. Files are written to a temp name and renamed, so readers
// never observe a half-written batch.
func (w *Writer) WriteBatch(channel string, records []normalize.Record) (Manifest, error) {
	if len(records) == 0 {
		return Manifest{}, errors.New("lake: empty batch")
	}

	channel = sanitizeChannel(channel)
	dir := filepath.Join(w.root, w.partition(records))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("create partition dir: %w", err)
	}

	dataPath := filepath.Join(dir, channel+"."+w.format)
	if err := w.writeData(dataPath, records); err != nil {
		return Manifest{}, err
	}

	manifest := buildManifest(channel, records, dataPath, w.now())
	manifestPath := filepath.Join(dir, channel+"_summary.json")
	if err := writeJSONAtomic(manifestPath, manifest); err != nil {
		return Manifest{}, fmt.Errorf("write manifest: %w", err)
	}

	w.log.Info("wrote batch",
		logger.String("channel", channel),
		logger.Int("messages", len(records)),
		logger.String("path", dataPath))
	return manifest, nil
}

// partition picks the directory name for the batch.
func (w *Writer) partition(records []normalize.Record) string {
	if d := records[0].MessageDate; d != nil {
		return d.Format("2006-01-02")
	}
	return w.now().Format("2006-01-02")
}

func (w *Writer) writeData(path string, records []normalize.Record) error {
	if w.format == FormatCSV {
		return writeCSVAtomic(path, records)
	}
	return writeJSONAtomic(path, records)
}

func buildManifest(channel string, records []normalize.Record, dataPath string, scraped time.Time) Manifest {
	m := Manifest{
		Channel:       channel,
		TotalMessages: len(records),
		DateScraped:   scraped.UTC(),
		DateRange: DateRange{
			Earliest: records[len(records)-1].MessageDate,
			Latest:   records[0].MessageDate,
		},
		FilePath: dataPath,
	}
	for _, rec := range records {
		if rec.ImagePath != nil {
			m.WithImages++
		}
		m.TotalViews += rec.Views
	}
	return m
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return replaceFile(path, data)
}

func writeCSVAtomic(path string, records []normalize.Record) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(csvHeader); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(csvRow(rec)); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

func csvRow(rec normalize.Record) []string {
	date := ""
	if rec.MessageDate != nil {
		date = rec.MessageDate.Format(time.RFC3339)
	}
	imagePath := ""
	if rec.ImagePath != nil {
		imagePath = *rec.ImagePath
	}
	return []string{
		strconv.FormatInt(rec.MessageID, 10),
		rec.ChannelName,
		date,
		rec.MessageText,
		strconv.FormatBool(rec.HasMedia),
		imagePath,
		strconv.Itoa(rec.Views),
		strconv.Itoa(rec.Forwards),
		rec.ScrapedAt.Format(time.RFC3339),
		strconv.Itoa(rec.MessageLength),
		strconv.FormatBool(rec.ContainsPrice),
		strconv.FormatBool(rec.ContainsContact),
	}
}

func replaceFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func sanitizeChannel(name string) string {
	name = strings.ReplaceAll(name, "@", "")
	return strings.ReplaceAll(name, "/", "_")
}
