package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// appConfig is the binary's configuration. Values come from an optional
// YAML file (CONFIG_FILE), overridden by environment variables.
type appConfig struct {
	Port       string `yaml:"port"`
	DBPath     string `yaml:"db_path"`
	BlobDir    string `yaml:"blob_dir"`
	ExportDir  string `yaml:"export_dir"`
	WebhookURL string `yaml:"webhook_url"`
	LogLevel   string `yaml:"log_level"`

	ChunkSize   int   `yaml:"chunk_size"`
	MaxFileSize int64 `yaml:"max_file_size"`

	Crawl struct {
		MaxDepth int `yaml:"max_depth"`
		MaxPages int `yaml:"max_pages"`
		DelayMS  int `yaml:"delay_ms"`
	} `yaml:"crawl"`

	MCPTransport string `yaml:"mcp_transport"`
}

func loadConfig() (*appConfig, error) {
	cfg := &appConfig{
		Port:        "8086",
		DBPath:      "db/corpus.db",
		BlobDir:     "data/blobs",
		LogLevel:    "info",
		MaxFileSize: 10 << 20,
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// Environment overrides.
	envStr("PORT", &cfg.Port)
	envStr("DB_PATH", &cfg.DBPath)
	envStr("BLOB_DIR", &cfg.BlobDir)
	envStr("EXPORT_DIR", &cfg.ExportDir)
	envStr("WEBHOOK_URL", &cfg.WebhookURL)
	envStr("LOG_LEVEL", &cfg.LogLevel)
	envStr("MCP_TRANSPORT", &cfg.MCPTransport)
	envInt("CHUNK_SIZE", &cfg.ChunkSize)
	envInt64("MAX_FILE_SIZE", &cfg.MaxFileSize)
	envInt("CRAWL_MAX_DEPTH", &cfg.Crawl.MaxDepth)
	envInt("CRAWL_MAX_PAGES", &cfg.Crawl.MaxPages)
	envInt("CRAWL_DELAY_MS", &cfg.Crawl.DelayMS)

	return cfg, nil
}

func (c *appConfig) crawlDelay() time.Duration {
	return time.Duration(c.Crawl.DelayMS) * time.Millisecond
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envInt64(key string, dst *int64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}
