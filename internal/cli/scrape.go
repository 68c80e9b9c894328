package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/medlake/medlake/internal/config"
	"github.com/medlake/medlake/internal/fetch"
	"github.com/medlake/medlake/internal/lake"
	"github.com/medlake/medlake/internal/logger"
	"github.com/medlake/medlake/internal/media"
	"github.com/medlake/medlake/internal/orchestrate"
	"github.com/medlake/medlake/internal/registry"
	"github.com/medlake/medlake/internal/telegram"
)

var scrapeLimit int

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape all configured channels into the data lake",
	RunE:  scrapeAction,
}

func init() {
	scrapeCmd.Flags().IntVar(&scrapeLimit, "limit", 0, "messages per channel (overrides config)")
	rootCmd.AddCommand(scrapeCmd)
}

func scrapeAction(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Telegram.APIID == 0 || cfg.Telegram.APIHash == "" {
		return fmt.Errorf("telegram credentials missing: set %s and %s (see https://my.telegram.org)",
			cfg.Telegram.APIIDEnv, cfg.Telegram.APIHashEnv)
	}

	if scrapeLimit > 0 {
		cfg.Scrape.MessagesPerChannel = scrapeLimit
	}

	if err := os.MkdirAll(cfg.Lake.LogsDir, 0o755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}
	log, err := logger.New(debug, filepath.Join(cfg.Lake.LogsDir, "medlake.log"))
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	channels := registry.Channels(cfg.Channels.File, cfg.Channels.Fallback, log)
	fmt.Printf("Scraping %d channels, up to %s messages each.\n",
		len(channels), humanize.Comma(int64(cfg.Scrape.MessagesPerChannel)))

	conn, err := telegram.NewConnector(cfg.Telegram, promptCode, log)
	if err != nil {
		return fmt.Errorf("create telegram connector: %w", err)
	}

	var report orchestrate.Report
	err = conn.Run(cmd.Context(), func(ctx context.Context, s *telegram.Session) error {
		engine, err := fetch.NewEngine(s, fetch.Options{
			MessageDelay: cfg.Scrape.MessageDelay.Duration,
			MaxRetries:   cfg.Scrape.MaxRetries,
			PageSize:     cfg.Scrape.PageSize,
		}, log)
		if err != nil {
			return fmt.Errorf("create fetch engine: %w", err)
		}

		images, err := media.NewFetcher(s, cfg.Lake.ImagesDir, cfg.Scrape.MediaTimeout.Duration, log)
		if err != nil {
			return fmt.Errorf("create media fetcher: %w", err)
		}

		writer, err := lake.NewWriter(cfg.Lake.MessagesDir, cfg.Lake.Format, log)
		if err != nil {
			return fmt.Errorf("create lake writer: %w", err)
		}

		runner, err := orchestrate.NewRunner(engine, images, writer, orchestrate.Options{
			MessagesPerChannel: cfg.Scrape.MessagesPerChannel,
			Workers:            cfg.Scrape.Workers,
			MessageDelay:       cfg.Scrape.MessageDelay.Duration,
			ChannelDelayMin:    cfg.Scrape.ChannelDelayMin.Duration,
			ChannelDelayMax:    cfg.Scrape.ChannelDelayMax.Duration,
		}, orchestrate.Locations{
			RawMessages: cfg.Lake.MessagesDir,
			Images:      cfg.Lake.ImagesDir,
			Logs:        cfg.Lake.LogsDir,
		}, log)
		if err != nil {
			return fmt.Errorf("create runner: %w", err)
		}

		report = runner.Run(ctx, channels)
		return nil
	})
	if err != nil {
		return fmt.Errorf("scrape: %w", err)
	}

	reportPath, err := report.Write(cfg.Lake.LogsDir)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	session := report.ScrapeSession
	scraped := 0
	for _, count := range session.ChannelsScraped {
		if count > 0 {
			scraped++
		}
	}
	fmt.Printf("\nScraped %s messages from %d of %d channels.\n",
		humanize.Comma(int64(session.TotalMessages)), scraped, session.TotalChannels)
	for _, name := range channels {
		fmt.Printf("  %s: %s messages\n", name, humanize.Comma(int64(session.ChannelsScraped[name])))
	}
	fmt.Printf("Report: %s\n", reportPath)
	return nil
}

// promptCode reads the Telegram login code from stdin.
func promptCode(_ context.Context) (string, error) {
	fmt.Print("Enter the login code Telegram sent you: ")
	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read login code: %w", err)
	}
	return strings.TrimSpace(code), nil
}
