// Package config provides YAML-based configuration for the vessel monitor.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vessel-monitor/backend/internal/feed"
	"github.com/vessel-monitor/backend/internal/ingest"
	"github.com/vessel-monitor/backend/internal/models"
	"github.com/vessel-monitor/backend/internal/stream"
)

// ErrNoAPIKey is returned by ResolveAPIKey when neither the env var nor the key file is set.
var ErrNoAPIKey = errors.New("no AIS stream API key configured")

// AppConfig represents the root configuration structure
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Feed      FeedConfig      `yaml:"feed"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Storage   StorageConfig   `yaml:"storage"`
	Export    ExportConfig    `yaml:"export"`
	Advanced  AdvancedConfig  `yaml:"advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port                int    `yaml:"port" validate:"min=1,max=65535"`
	BindAddress         string `yaml:"bindAddress"`
	EnableCORS          bool   `yaml:"enableCors"`
	AllowOrigins        string `yaml:"allowOrigins"`
	ReadTimeout         int    `yaml:"readTimeoutSeconds" validate:"gte=0"`
	WriteTimeout        int    `yaml:"writeTimeoutSeconds" validate:"gte=0"`
	IdleTimeout         int    `yaml:"idleTimeoutSeconds" validate:"gte=0"`
	BodyLimit           string `yaml:"bodyLimit"`
	PushIntervalSeconds int    `yaml:"pushIntervalSeconds" validate:"min=1"`
}

// FeedConfig describes the upstream AIS stream.
type FeedConfig struct {
	URL                     string      `yaml:"url" validate:"required,url"`
	APIKeyEnv               string      `yaml:"apiKeyEnv"`
	APIKeyFile              string      `yaml:"apiKeyFile"`
	AutoStart               bool        `yaml:"autoStart"`
	BoundingBoxes           []BoxConfig `yaml:"boundingBoxes" validate:"required,min=1,dive"`
	MessageTypes            []string    `yaml:"messageTypes" validate:"omitempty,dive,required"`
	HandshakeTimeoutSeconds int         `yaml:"handshakeTimeoutSeconds" validate:"gte=0"`
	ReadTimeoutSeconds      int         `yaml:"readTimeoutSeconds" validate:"gte=0"`
	QueueSize               int         `yaml:"queueSize" validate:"gte=0"`
}

// BoxConfig is one subscription area.
type BoxConfig struct {
	LatMin float64 `yaml:"latMin" validate:"gte=-90,lte=90"`
	LonMin float64 `yaml:"lonMin" validate:"gte=-180,lte=180"`
	LatMax float64 `yaml:"latMax" validate:"gte=-90,lte=90"`
	LonMax float64 `yaml:"lonMax" validate:"gte=-180,lte=180"`
}

// ReconnectConfig tunes the reconnect backoff.
type ReconnectConfig struct {
	PeerClosedDelayMs int     `yaml:"peerClosedDelayMs" validate:"min=1"`
	ErrorDelayMs      int     `yaml:"errorDelayMs" validate:"min=1"`
	MaxDelaySeconds   int     `yaml:"maxDelaySeconds" validate:"min=1"`
	Multiplier        float64 `yaml:"multiplier" validate:"gte=0"`
	Jitter            float64 `yaml:"jitter" validate:"gte=0,lte=1"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory   string `yaml:"dataDirectory"`
	ExportDirectory string `yaml:"exportDirectory"`
}

// ExportConfig controls the periodic snapshot exports.
type ExportConfig struct {
	Enabled         bool   `yaml:"enabled"`
	IntervalSeconds int    `yaml:"intervalSeconds" validate:"min=1"`
	CSV             bool   `yaml:"csv"`
	KeepFiles       int    `yaml:"keepFiles" validate:"gte=0"`
	DuckDB          bool   `yaml:"duckdb"`
	DuckDBPath      string `yaml:"duckdbPath"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `yaml:"logLevel" validate:"oneof=debug info warn error"`
	LogFormat            string `yaml:"logFormat" validate:"oneof=json console"`
	EnableRequestLogging bool   `yaml:"enableRequestLogging"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:                8089,
			BindAddress:         "0.0.0.0",
			EnableCORS:          true,
			AllowOrigins:        "*",
			ReadTimeout:         30,
			WriteTimeout:        30,
			IdleTimeout:         120,
			BodyLimit:           "1M",
			PushIntervalSeconds: 3,
		},
		Feed: FeedConfig{
			URL:                     feed.DefaultStreamURL,
			APIKeyEnv:               "AIS_STREAM_API_KEY",
			APIKeyFile:              "secrets/ais_stream.txt",
			AutoStart:               true,
			BoundingBoxes:           []BoxConfig{{LatMin: -90, LonMin: -180, LatMax: 90, LonMax: 180}},
			MessageTypes:            []string{feed.MessageTypePositionReport},
			HandshakeTimeoutSeconds: 15,
			ReadTimeoutSeconds:      90,
			QueueSize:               stream.DefaultQueueSize,
		},
		Reconnect: ReconnectConfig{
			PeerClosedDelayMs: 1000,
			ErrorDelayMs:      5000,
			MaxDelaySeconds:   60,
			Multiplier:        2,
			Jitter:            0.2,
		},
		Storage: StorageConfig{
			DataDirectory:   "./data",
			ExportDirectory: "./data/exports",
		},
		Export: ExportConfig{
			Enabled:         true,
			IntervalSeconds: 60,
			CSV:             true,
			KeepFiles:       24,
			DuckDB:          false,
			DuckDBPath:      "./data/vessels.duckdb",
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			LogFormat:            "json",
			EnableRequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from a YAML file, writing the defaults there first
// if the file does not exist.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to a YAML file
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# Vessel Monitor Configuration\n# This file is auto-generated on first run\n\n")
	content := append(header, output...)

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration against its struct tags.
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if url := os.Getenv("AIS_FEED_URL"); url != "" {
		c.Feed.URL = url
	}

	// DATA_DIR moves the export directory along with it unless that was set absolutely
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		if !filepath.IsAbs(c.Storage.ExportDirectory) {
			c.Storage.ExportDirectory = filepath.Join(dataDir, "exports")
		}
		c.Storage.DataDirectory = dataDir
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = strings.ToLower(level)
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{
		&c.Storage.DataDirectory,
		&c.Storage.ExportDirectory,
		&c.Export.DuckDBPath,
		&c.Feed.APIKeyFile,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetExportDir returns the absolute export directory path
func (c *AppConfig) GetExportDir() string {
	return c.Storage.ExportDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// GetPushInterval returns the WebSocket snapshot push interval
func (c *AppConfig) GetPushInterval() time.Duration {
	return time.Duration(c.Server.PushIntervalSeconds) * time.Second
}

// GetExportInterval returns the export scheduler interval
func (c *AppConfig) GetExportInterval() time.Duration {
	return time.Duration(c.Export.IntervalSeconds) * time.Second
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.ExportDirectory,
	}
	if c.Export.DuckDB && c.Export.DuckDBPath != "" {
		dirs = append(dirs, filepath.Dir(c.Export.DuckDBPath))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// LoadEnvFiles loads .env style files into the environment. Missing files are skipped;
// variables already set are not overwritten.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ResolveAPIKey returns the feed API key from the configured env var, falling back to the key file.
func (c *AppConfig) ResolveAPIKey() (string, error) {
	if c.Feed.APIKeyEnv != "" {
		if key := strings.TrimSpace(os.Getenv(c.Feed.APIKeyEnv)); key != "" {
			return key, nil
		}
	}
	if c.Feed.APIKeyFile != "" {
		data, err := os.ReadFile(c.Feed.APIKeyFile)
		if err == nil {
			if key := strings.TrimSpace(string(data)); key != "" {
				return key, nil
			}
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to read API key file: %w", err)
		}
	}
	return "", ErrNoAPIKey
}

// IngestParams builds pipeline parameters from the feed and reconnect sections.
func (c *AppConfig) IngestParams(apiKey string) ingest.Params {
	boxes := make([]models.BoundingBox, 0, len(c.Feed.BoundingBoxes))
	for _, b := range c.Feed.BoundingBoxes {
		boxes = append(boxes, models.NewBoundingBox(b.LatMin, b.LonMin, b.LatMax, b.LonMax))
	}

	return ingest.Params{
		URL:              c.Feed.URL,
		APIKey:           apiKey,
		BoundingBoxes:    boxes,
		MessageTypes:     c.Feed.MessageTypes,
		HandshakeTimeout: time.Duration(c.Feed.HandshakeTimeoutSeconds) * time.Second,
		ReadTimeout:      time.Duration(c.Feed.ReadTimeoutSeconds) * time.Second,
		QueueSize:        c.Feed.QueueSize,
		Backoff: stream.Backoff{
			PeerClosedDelay: time.Duration(c.Reconnect.PeerClosedDelayMs) * time.Millisecond,
			ErrorDelay:      time.Duration(c.Reconnect.ErrorDelayMs) * time.Millisecond,
			MaxDelay:        time.Duration(c.Reconnect.MaxDelaySeconds) * time.Second,
			Multiplier:      c.Reconnect.Multiplier,
			Jitter:          c.Reconnect.Jitter,
		},
	}
}
