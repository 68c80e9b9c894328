// Package config loads and validates the medlake configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile   = "config.yaml"
	DefaultChannelsFile = "channels.json"

	DefaultSessionFile         = ".medlake/medlake.session"
	DefaultMessagesPerChannel  = 1000
	DefaultMessageDelay        = 500 * time.Millisecond
	DefaultMaxRetries          = 3
	DefaultPageSize            = 100
	DefaultWorkers             = 4
	DefaultMediaTimeout        = 30 * time.Second
	DefaultChannelDelayMin     = 10 * time.Second
	DefaultChannelDelayMax     = 30 * time.Second
	DefaultMessagesDir         = "data/raw/telegram_messages"
	DefaultImagesDir           = "data/raw/images"
	DefaultLogsDir             = "logs"
	DefaultFormat              = "json"
	DefaultWarehouseSchema     = "raw"
)

// DefaultChannels is used when no channels file is present.
var DefaultChannels = []string{
	"lobelia4cosmetics",
	"tikvahpharma",
}

// Duration wraps time.Duration for YAML unmarshaling from strings like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Scrape    ScrapeConfig    `yaml:"scrape"`
	Lake      LakeConfig      `yaml:"lake"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
}

type TelegramConfig struct {
	APIIDEnv    string `yaml:"api_id_env"`
	APIHashEnv  string `yaml:"api_hash_env"`
	PhoneEnv    string `yaml:"phone_env"`
	SessionFile string `yaml:"session_file"`

	// Resolved from env vars at load time.
	APIID   int    `yaml:"-"`
	APIHash string `yaml:"-"`
	Phone   string `yaml:"-"`
}

type ChannelsConfig struct {
	File     string   `yaml:"file"`
	Fallback []string `yaml:"fallback"`
}

type ScrapeConfig struct {
	MessagesPerChannel int      `yaml:"messages_per_channel"`
	MessageDelay       Duration `yaml:"message_delay"`
	MaxRetries         int      `yaml:"max_retries"`
	PageSize           int      `yaml:"page_size"`
	Workers            int      `yaml:"workers"`
	MediaTimeout       Duration `yaml:"media_timeout"`
	ChannelDelayMin    Duration `yaml:"channel_delay_min"`
	ChannelDelayMax    Duration `yaml:"channel_delay_max"`
}

type LakeConfig struct {
	MessagesDir string `yaml:"messages_dir"`
	ImagesDir   string `yaml:"images_dir"`
	LogsDir     string `yaml:"logs_dir"`
	Format      string `yaml:"format"`
}

type WarehouseConfig struct {
	HostEnv     string `yaml:"host_env"`
	PortEnv     string `yaml:"port_env"`
	NameEnv     string `yaml:"name_env"`
	UserEnv     string `yaml:"user_env"`
	PasswordEnv string `yaml:"password_env"`
	Schema      string `yaml:"schema"`

	// Resolved from env vars at load time.
	Host     string `yaml:"-"`
	Port     string `yaml:"-"`
	Name     string `yaml:"-"`
	User     string `yaml:"-"`
	Password string `yaml:"-"`
}

// Load reads config.yaml from dir, applies defaults, resolves env vars, and
// validates. A .env file in the working directory is loaded first if present.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	_ = godotenv.Load()

	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg, dir)
	if err := resolveEnv(&cfg); err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config, dir string) {
	if cfg.Telegram.APIIDEnv == "" {
		cfg.Telegram.APIIDEnv = "TELEGRAM_API_ID"
	}
	if cfg.Telegram.APIHashEnv == "" {
		cfg.Telegram.APIHashEnv = "TELEGRAM_API_HASH"
	}
	if cfg.Telegram.PhoneEnv == "" {
		cfg.Telegram.PhoneEnv = "TELEGRAM_PHONE"
	}
	if cfg.Telegram.SessionFile == "" {
		cfg.Telegram.SessionFile = DefaultSessionFile
	}
	if cfg.Channels.File == "" {
		cfg.Channels.File = filepath.Join(dir, DefaultChannelsFile)
	}
	if len(cfg.Channels.Fallback) == 0 {
		cfg.Channels.Fallback = DefaultChannels
	}
	if cfg.Scrape.MessagesPerChannel == 0 {
		cfg.Scrape.MessagesPerChannel = DefaultMessagesPerChannel
	}
	if cfg.Scrape.MessageDelay.Duration == 0 {
		cfg.Scrape.MessageDelay.Duration = DefaultMessageDelay
	}
	if cfg.Scrape.MaxRetries == 0 {
		cfg.Scrape.MaxRetries = DefaultMaxRetries
	}
	if cfg.Scrape.PageSize == 0 {
		cfg.Scrape.PageSize = DefaultPageSize
	}
	if cfg.Scrape.Workers == 0 {
		cfg.Scrape.Workers = DefaultWorkers
	}
	if cfg.Scrape.MediaTimeout.Duration == 0 {
		cfg.Scrape.MediaTimeout.Duration = DefaultMediaTimeout
	}
	if cfg.Scrape.ChannelDelayMin.Duration == 0 {
		cfg.Scrape.ChannelDelayMin.Duration = DefaultChannelDelayMin
	}
	if cfg.Scrape.ChannelDelayMax.Duration == 0 {
		cfg.Scrape.ChannelDelayMax.Duration = DefaultChannelDelayMax
	}
	if cfg.Lake.MessagesDir == "" {
		cfg.Lake.MessagesDir = DefaultMessagesDir
	}
	if cfg.Lake.ImagesDir == "" {
		cfg.Lake.ImagesDir = DefaultImagesDir
	}
	if cfg.Lake.LogsDir == "" {
		cfg.Lake.LogsDir = DefaultLogsDir
	}
	if cfg.Lake.Format == "" {
		cfg.Lake.Format = DefaultFormat
	}
	if cfg.Warehouse.HostEnv == "" {
		cfg.Warehouse.HostEnv = "DB_HOST"
	}
	if cfg.Warehouse.PortEnv == "" {
		cfg.Warehouse.PortEnv = "DB_PORT"
	}
	if cfg.Warehouse.NameEnv == "" {
		cfg.Warehouse.NameEnv = "DB_NAME"
	}
	if cfg.Warehouse.UserEnv == "" {
		cfg.Warehouse.UserEnv = "DB_USER"
	}
	if cfg.Warehouse.PasswordEnv == "" {
		cfg.Warehouse.PasswordEnv = "DB_PASSWORD"
	}
	if cfg.Warehouse.Schema == "" {
		cfg.Warehouse.Schema = DefaultWarehouseSchema
	}
}

func resolveEnv(cfg *Config) error {
	if cfg.Telegram.APIIDEnv != "" {
		raw := os.Getenv(cfg.Telegram.APIIDEnv)
		if raw != "" {
			id, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("%s: api id must be an integer: %w", cfg.Telegram.APIIDEnv, err)
			}
			cfg.Telegram.APIID = id
		}
	}
	if cfg.Telegram.APIHashEnv != "" {
		cfg.Telegram.APIHash = os.Getenv(cfg.Telegram.APIHashEnv)
	}
	if cfg.Telegram.PhoneEnv != "" {
		cfg.Telegram.Phone = os.Getenv(cfg.Telegram.PhoneEnv)
	}

	if cfg.Warehouse.HostEnv != "" {
		cfg.Warehouse.Host = os.Getenv(cfg.Warehouse.HostEnv)
	}
	if cfg.Warehouse.PortEnv != "" {
		cfg.Warehouse.Port = os.Getenv(cfg.Warehouse.PortEnv)
	}
	if cfg.Warehouse.NameEnv != "" {
		cfg.Warehouse.Name = os.Getenv(cfg.Warehouse.NameEnv)
	}
	if cfg.Warehouse.UserEnv != "" {
		cfg.Warehouse.User = os.Getenv(cfg.Warehouse.UserEnv)
	}
	if cfg.Warehouse.PasswordEnv != "" {
		cfg.Warehouse.Password = os.Getenv(cfg.Warehouse.PasswordEnv)
	}
	return nil
}

func validate(cfg *Config) error {
	switch cfg.Lake.Format {
	case "json", "csv":
		// valid
	default:
		return fmt.Errorf("lake.format: unknown format %q (want json or csv)", cfg.Lake.Format)
	}

	if cfg.Scrape.MaxRetries < 1 {
		return errors.New("scrape.max_retries: must be at least 1")
	}
	if cfg.Scrape.MessagesPerChannel < 1 {
		return errors.New("scrape.messages_per_channel: must be at least 1")
	}
	if cfg.Scrape.ChannelDelayMax.Duration < cfg.Scrape.ChannelDelayMin.Duration {
		return errors.New("scrape.channel_delay_max: must not be less than channel_delay_min")
	}

	return nil
}
