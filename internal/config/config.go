// Package config handles application configuration from environment variables
// and the YAML server file they point to.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"squadbot/internal/filter"
	"squadbot/internal/model"
)

// Storage backends.
const (
	StorageFiles  = "files"
	StorageSQLite = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	LogLevel     string
	Storage      string
	DataDir      string
	DatabasePath string
	MetricsAddr  string

	GitHubToken string

	TelegramBotToken string
	PushoverAppToken string
	AWSRegion        string
	TextbeltURL      string

	File
}

// File is the structured part of the configuration, read from CONFIG_FILE.
type File struct {
	CommandPrefix   string               `yaml:"commandPrefix"`
	Servers         []model.ServerConfig `yaml:"servers"`
	GitHub          GitHub               `yaml:"github"`
	AnnounceFilters []model.Filter       `yaml:"announceFilters"`
	StatusURL       string               `yaml:"statusURL"`
}

// GitHub lists the organizations and commit feeds to watch.
type GitHub struct {
	Orgs        []string `yaml:"orgs"`
	CommitFeeds []string `yaml:"commitFeeds"`
}

// Load reads configuration from environment variables, after seeding them
// from a .env file when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		Storage:          strings.ToLower(envOrDefault("STORAGE", StorageFiles)),
		DataDir:          envOrDefault("DATA_DIR", "./data"),
		DatabasePath:     envOrDefault("DATABASE_PATH", "./data/squadbot.db"),
		MetricsAddr:      os.Getenv("METRICS_ADDR"),
		GitHubToken:      os.Getenv("GITHUB_TOKEN"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		PushoverAppToken: os.Getenv("PUSHOVER_APP_TOKEN"),
		AWSRegion:        envOrDefault("AWS_REGION", "us-east-1"),
		TextbeltURL:      envOrDefault("TEXTBELT_URL", "https://textbelt.com/text"),
	}
	if cfg.Storage != StorageFiles && cfg.Storage != StorageSQLite {
		return nil, fmt.Errorf("invalid STORAGE %q, use: %s, %s", cfg.Storage, StorageFiles, StorageSQLite)
	}

	path := envOrDefault("CONFIG_FILE", "./squadbot.yaml")
	f, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.File = *f
	return cfg, nil
}

// LoadFile reads and validates the YAML server file at path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML server file.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if f.CommandPrefix == "" {
		f.CommandPrefix = "!"
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the server list for missing and duplicate entries.
func (f *File) Validate() error {
	if len(f.Servers) == 0 {
		return fmt.Errorf("at least one server is required")
	}
	if len([]rune(f.CommandPrefix)) != 1 {
		return fmt.Errorf("command prefix must be a single character, got %q", f.CommandPrefix)
	}
	names := make(map[string]bool)
	for i, s := range f.Servers {
		if s.Name == "" {
			return fmt.Errorf("server #%d: name is required", i+1)
		}
		if names[s.Name] {
			return fmt.Errorf("server %q: duplicate name", s.Name)
		}
		names[s.Name] = true
		if s.Address == "" || s.Username == "" || s.Nickname == "" {
			return fmt.Errorf("server %q: address, username and nickname are required", s.Name)
		}
		rooms := make(map[string]bool)
		for _, r := range s.Rooms {
			if r.Name == "" {
				return fmt.Errorf("server %q: room name is required", s.Name)
			}
			if rooms[r.Name] {
				return fmt.Errorf("server %q: duplicate room %q", s.Name, r.Name)
			}
			rooms[r.Name] = true
		}
	}
	for _, fl := range f.AnnounceFilters {
		switch fl.Kind {
		case model.FilterInclude, model.FilterExclude:
		case model.FilterIncludeRe, model.FilterExcludeRe:
			if err := filter.ValidateRegex(fl.Value); err != nil {
				return fmt.Errorf("announce filter %q: %w", fl.Value, err)
			}
		default:
			return fmt.Errorf("invalid announce filter kind %q", fl.Kind)
		}
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
