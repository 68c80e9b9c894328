package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medlake/medlake/internal/config"
	"github.com/medlake/medlake/internal/logger"
	"github.com/medlake/medlake/internal/registry"
)

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "List the channels a scrape run would target",
	RunE:  channelsAction,
}

func init() {
	rootCmd.AddCommand(channelsCmd)
}

func channelsAction(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	channels := registry.Channels(cfg.Channels.File, cfg.Channels.Fallback, logger.NewNop())
	fmt.Printf("%d channels (from %s):\n", len(channels), cfg.Channels.File)
	for _, ch := range channels {
		fmt.Printf("  %s\n", ch)
	}
	return nil
}
