// Package warehouse loads lake files into the Postgres raw schema.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	_ "github.com/lib/pq"

	"github.com/medlake/medlake/internal/config"
	"github.com/medlake/medlake/internal/logger"
	"github.com/medlake/medlake/internal/normalize"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const createTableTemplate = `
CREATE TABLE IF NOT EXISTS %s.telegram_messages (
	id SERIAL PRIMARY KEY,
	message_id BIGINT,
	channel_name VARCHAR(255),
	message_date TIMESTAMP,
	message_text TEXT,
	has_media BOOLEAN,
	image_path TEXT,
	views INTEGER,
	forwards INTEGER,
	scraped_at TIMESTAMP,
	message_length INTEGER,
	contains_price BOOLEAN,
	contains_contact BOOLEAN
)`

const insertTemplate = `
INSERT INTO %s.telegram_messages (
	message_id, channel_name, message_date, message_text,
	has_media, image_path, views, forwards,
	scraped_at, message_length, contains_price, contains_contact
) VALUES (
	:message_id, :channel_name, :message_date, :message_text,
	:has_media, :image_path, :views, :forwards,
	:scraped_at, :message_length, :contains_price, :contains_contact
)`

// Loader pushes normalized records into the warehouse.
type Loader struct {
	db     *sqlx.DB
	schema string
	log    logger.Logger
}

// Open connects to Postgres using the resolved warehouse config.
func Open(cfg config.WarehouseConfig, log logger.Logger) (*Loader, error) {
	if cfg.Host == "" || cfg.Name == "" || cfg.User == "" {
		return nil, errors.New("warehouse: host, database name, and user are required")
	}
	port := cfg.Port
	if port == "" {
		port = "5432"
	}

	dsn := fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=disable",
		cfg.Host, port, cfg.Name, cfg.User, cfg.Password)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect warehouse: %w", err)
	}
	return NewLoader(db, cfg.Schema, log), nil
}

// NewLoader wraps an existing connection, mainly for tests.
func NewLoader(db *sqlx.DB, schema string, log logger.Logger) *Loader {
	if schema == "" {
		schema = config.DefaultWarehouseSchema
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Loader{db: db, schema: schema, log: log}
}

// Close releases the connection.
func (l *Loader) Close() error {
	return l.db.Close()
}

// Ping checks connectivity.
func (l *Loader) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// EnsureTable creates the schema and messages table if they do not exist.
func (l *Loader) EnsureTable(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", l.schema)); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := l.db.ExecContext(ctx, fmt.Sprintf(createTableTemplate, l.schema)); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// LoadDir inserts every batch file under root (one directory per date
// partition) and returns the number of records inserted. Manifest files are
// skipped. Re-loading the same files inserts duplicates; deduplication
// belongs to downstream transforms.
func (l *Loader) LoadDir(ctx context.Context, root string) (int, error) {
	files, err := filepath.Glob(filepath.Join(root, "*", "*.json"))
	if err != nil {
		return 0, fmt.Errorf("scan lake: %w", err)
	}

	total := 0
	for _, file := range files {
		if strings.HasSuffix(file, "_summary.json") {
			continue
		}

		n, err := l.loadFile(ctx, file)
		if err != nil {
			return total, fmt.Errorf("load %s: %w", file, err)
		}
		total += n
		l.log.Info("loaded batch file", logger.String("file", file), logger.Int("records", n))
	}
	return total, nil
}

func (l *Loader) loadFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var records []normalize.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, fmt.Errorf("decode: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	if _, err := l.db.NamedExecContext(ctx, fmt.Sprintf(insertTemplate, l.schema), records); err != nil {
		return 0, fmt.Errorf("insert: %w", err)
	}
	return len(records), nil
}
