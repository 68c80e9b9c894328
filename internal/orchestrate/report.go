package orchestrate

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Report summarizes one run. It is always produced, whatever happened to
// the individual channels.
type Report struct {
	ScrapeSession ScrapeSession `json:"scrape_session"`
	DataLocation  DataLocation  `json:"data_location"`
}

type ScrapeSession struct {
	RunID           string         `json:"run_id"`
	Date            time.Time      `json:"date"`
	TotalChannels   int            `json:"total_channels"`
	TotalMessages   int            `json:"total_messages"`
	ChannelsScraped map[string]int `json:"channels_scraped"`
	RateLimits      RateLimits     `json:"rate_limit_settings"`
}

type RateLimits struct {
	MaxPerChannel int    `json:"max_per_channel"`
	Delay         string `json:"delay"`
}

type DataLocation struct {
	RawMessages string `json:"raw_messages"`
	Images      string `json:"images"`
	Logs        string `json:"logs"`
}

func newReport(runID string, date time.Time, totalChannels int, opts Options, paths Locations) Report {
	return Report{
		ScrapeSession: ScrapeSession{
			RunID:           runID,
			Date:            date,
			TotalChannels:   totalChannels,
			ChannelsScraped: make(map[string]int),
			RateLimits: RateLimits{
				MaxPerChannel: opts.MessagesPerChannel,
				Delay:         opts.MessageDelay.String(),
			},
		},
		DataLocation: DataLocation{
			RawMessages: paths.RawMessages,
			Images:      paths.Images,
			Logs:        paths.Logs,
		},
	}
}

// Write saves the report as scrape_report_<timestamp>.json under dir and
// returns the file path.
func (r Report) Write(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("scrape_report_%s.json", r.ScrapeSession.Date.Format("20060102_150405")))
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
