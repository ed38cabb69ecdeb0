package blocktree

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/surrealdb/blocktree/pkg/client"
	"github.com/surrealdb/blocktree/pkg/codec"
	"github.com/surrealdb/blocktree/pkg/models"
)

const (
	DefaultMaxUndoDepth = 200

	envPrefix = "BLOCKTREE_"
)

// Config configures a Session.
type Config struct {
	// BaseURL is the block server's REST root, such as "http://localhost:8080/api".
	BaseURL string
	// LiveURL is the websocket change feed. Empty disables Listen without an explicit URL.
	LiveURL string
	Timeout time.Duration
	// Codec names the wire encoding, "json" or "cbor".
	Codec string
	// MaxUndoDepth bounds each undo stack. Zero or less means unbounded.
	MaxUndoDepth     int
	TempIDPrefix     string
	DefaultBlockType models.BlockType

	Logger zerolog.Logger
	// Registerer receives the session's metrics. Nil leaves them unregistered.
	Registerer prometheus.Registerer
}

// NewConfig returns a Config with every default filled in.
func NewConfig(baseURL string) Config {
	return Config{
		BaseURL:          baseURL,
		Timeout:          client.DefaultTimeout,
		Codec:            codec.NameJSON,
		MaxUndoDepth:     DefaultMaxUndoDepth,
		TempIDPrefix:     models.DefaultTempIDPrefix,
		DefaultBlockType: models.BlockTypeParagraph,
		Logger:           zerolog.Nop(),
	}
}

type fileConfig struct {
	BaseURL          string `yaml:"base_url"`
	LiveURL          string `yaml:"live_url"`
	Timeout          string `yaml:"timeout"`
	Codec            string `yaml:"codec"`
	MaxUndoDepth     *int   `yaml:"max_undo_depth"`
	TempIDPrefix     string `yaml:"temp_id_prefix"`
	DefaultBlockType string `yaml:"default_block_type"`
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := NewConfig("")

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.merge(fc); err != nil {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadEnv loads the given dotenv files, ".env" when none are named, and
// overlays every BLOCKTREE_* variable onto c. Missing files are not an error.
func (c *Config) LoadEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file: %w", err)
	}

	fc := fileConfig{
		BaseURL:          getEnvOrDefault("BASE_URL", ""),
		LiveURL:          getEnvOrDefault("LIVE_URL", ""),
		Timeout:          getEnvOrDefault("TIMEOUT", ""),
		Codec:            getEnvOrDefault("CODEC", ""),
		TempIDPrefix:     getEnvOrDefault("TEMP_ID_PREFIX", ""),
		DefaultBlockType: getEnvOrDefault("DEFAULT_BLOCK_TYPE", ""),
	}
	if v := getEnvOrDefault("MAX_UNDO_DEPTH", ""); v != "" {
		depth, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_UNDO_DEPTH: %w", envPrefix, err)
		}
		fc.MaxUndoDepth = &depth
	}
	return c.merge(fc)
}

// Validate reports the first setting a session cannot work with.
func (c Config) Validate() error {
	if _, err := codec.ByName(c.Codec); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return fmt.Errorf("negative timeout %s", c.Timeout)
	}
	return nil
}

func (c *Config) merge(fc fileConfig) error {
	if fc.BaseURL != "" {
		c.BaseURL = fc.BaseURL
	}
	if fc.LiveURL != "" {
		c.LiveURL = fc.LiveURL
	}
	if fc.Timeout != "" {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		c.Timeout = d
	}
	if fc.Codec != "" {
		c.Codec = fc.Codec
	}
	if fc.MaxUndoDepth != nil {
		c.MaxUndoDepth = *fc.MaxUndoDepth
	}
	if fc.TempIDPrefix != "" {
		c.TempIDPrefix = fc.TempIDPrefix
	}
	if fc.DefaultBlockType != "" {
		c.DefaultBlockType = models.BlockType(fc.DefaultBlockType)
	}
	return c.Validate()
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return defaultValue
	}

	return value
}
