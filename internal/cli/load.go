package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/medlake/medlake/internal/config"
	"github.com/medlake/medlake/internal/logger"
	"github.com/medlake/medlake/internal/warehouse"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load lake files into the Postgres warehouse",
	RunE:  loadAction,
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

func loadAction(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(debug, "")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	loader, err := warehouse.Open(cfg.Warehouse, log)
	if err != nil {
		return err
	}
	defer func() { _ = loader.Close() }()

	ctx := cmd.Context()
	if err := loader.EnsureTable(ctx); err != nil {
		return fmt.Errorf("prepare warehouse: %w", err)
	}

	n, err := loader.LoadDir(ctx, cfg.Lake.MessagesDir)
	if err != nil {
		return fmt.Errorf("load lake: %w", err)
	}

	fmt.Printf("Loaded %s records into %s.telegram_messages.\n",
		humanize.Comma(int64(n)), cfg.Warehouse.Schema)
	return nil
}
