package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/medlake/medlake/internal/config"
	"github.com/medlake/medlake/internal/logger"
	"github.com/medlake/medlake/internal/registry"
	"github.com/medlake/medlake/internal/warehouse"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, credentials, and dependencies",
	RunE:  doctorAction,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func doctorAction(cmd *cobra.Command, _ []string) error {
	ok := true

	// Config dir
	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		printCheck(false, "config directory %s (run: medlake init)", configDir)
		ok = false
	} else {
		printCheck(true, "config directory %s", configDir)
	}

	// Config file
	cfg, err := config.Load(configDir)
	if err != nil {
		printCheck(false, "config.yaml: %v", err)
		ok = false
	} else {
		channels := registry.Channels(cfg.Channels.File, cfg.Channels.Fallback, logger.NewNop())
		printCheck(true, "config.yaml (%d channels, %d messages per channel, %s format)",
			len(channels), cfg.Scrape.MessagesPerChannel, cfg.Lake.Format)
	}

	// Telegram credentials
	if cfg != nil {
		if cfg.Telegram.APIID == 0 || cfg.Telegram.APIHash == "" {
			printCheck(false, "telegram credentials (set %s and %s)", cfg.Telegram.APIIDEnv, cfg.Telegram.APIHashEnv)
			ok = false
		} else {
			printCheck(true, "telegram credentials")
		}

		// Session file
		if _, err := os.Stat(cfg.Telegram.SessionFile); err != nil {
			printInfo("no session file yet, first scrape will prompt for a login code")
		} else {
			printCheck(true, "telegram session %s", cfg.Telegram.SessionFile)
		}

		// Lake directories
		for _, dir := range []string{cfg.Lake.MessagesDir, cfg.Lake.ImagesDir, cfg.Lake.LogsDir} {
			if info, err := os.Stat(dir); err == nil && info.IsDir() {
				printCheck(true, "lake directory %s", dir)
			} else {
				printInfo("lake directory %s will be created on first run", dir)
			}
		}

		// Warehouse (optional; only checked when configured)
		if cfg.Warehouse.Host != "" {
			loader, err := warehouse.Open(cfg.Warehouse, logger.NewNop())
			if err != nil {
				printCheck(false, "warehouse: %v", err)
				ok = false
			} else {
				defer func() { _ = loader.Close() }()
				if err := loader.Ping(cmd.Context()); err != nil {
					printCheck(false, "warehouse ping: %v", err)
					ok = false
				} else {
					printCheck(true, "warehouse %s/%s", cfg.Warehouse.Host, cfg.Warehouse.Name)
				}
			}
		} else {
			printInfo("warehouse not configured, load command unavailable")
		}
	}

	if !ok {
		return fmt.Errorf("some checks failed")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}

func printCheck(pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Printf("[%s] %s\n", mark, fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...any) {
	fmt.Printf("[INFO] %s\n", fmt.Sprintf(format, args...))
}
