package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/medlake/medlake/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config directory with example files",
	RunE:  initAction,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func initAction(_ *cobra.Command, _ []string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	created := 0

	configPath := filepath.Join(configDir, config.DefaultConfigFile)
	wrote, err := writeIfNotExists(configPath, []byte(exampleConfig))
	if err != nil {
		return err
	}
	if wrote {
		created++
	}

	channelsPath := filepath.Join(configDir, config.DefaultChannelsFile)
	wrote, err = writeIfNotExists(channelsPath, []byte(exampleChannels))
	if err != nil {
		return err
	}
	if wrote {
		created++
	}

	if created == 0 {
		fmt.Printf("Config directory %s already initialized.\n", configDir)
	} else {
		fmt.Printf("Initialized %s with %d config files.\n", configDir, created)
	}
	return nil
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("  created: %s\n", path)
	return true, nil
}

const exampleConfig = `# medlake configuration

telegram:
  api_id_env: TELEGRAM_API_ID
  api_hash_env: TELEGRAM_API_HASH
  phone_env: TELEGRAM_PHONE
  session_file: .medlake/medlake.session

channels:
  file: .medlake/channels.json
  fallback:
    - "lobelia4cosmetics"
    - "tikvahpharma"

scrape:
  messages_per_channel: 1000
  message_delay: 500ms
  max_retries: 3
  page_size: 100
  workers: 4
  media_timeout: 30s
  channel_delay_min: 10s
  channel_delay_max: 30s

lake:
  messages_dir: data/raw/telegram_messages
  images_dir: data/raw/images
  logs_dir: logs
  format: json

warehouse:
  host_env: DB_HOST
  port_env: DB_PORT
  name_env: DB_NAME
  user_env: DB_USER
  password_env: DB_PASSWORD
  schema: raw
`

const exampleChannels = `[
  "lobelia4cosmetics",
  "tikvahpharma"
]
`
