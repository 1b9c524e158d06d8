package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds credentials and deployment settings read from the environment.
// Credentials are never logged.
type Config struct {
	GitHubToken   string     `env:"GITHUB_TOKEN"`
	GitHubBaseURL string     `env:"GITHUB_BASE_URL"`
	GmailToken    string     `env:"GMAIL_TOKEN"`
	OpenAIAPIKey  string     `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string     `env:"OPENAI_BASE_URL"`
	OpenAIModel   string     `env:"OPENAI_MODEL"`
	TelegramToken string     `env:"TELEGRAM_TOKEN"`
	DBPath        string     `env:"DB_PATH"`
	LogLevel      slog.Level `env:"LOG_LEVEL"       envDefault:"INFO"`
}

func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.GitHubToken = strings.TrimSpace(cfg.GitHubToken)
	cfg.GmailToken = strings.TrimSpace(cfg.GmailToken)
	cfg.OpenAIAPIKey = strings.TrimSpace(cfg.OpenAIAPIKey)
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)

	return cfg, nil
}

// RunOptions tunes one pipeline run. Zero values mean "not set" so that
// layers can be merged: defaults, then the options file, then flags.
type RunOptions struct {
	DaysAgo        int      `yaml:"days_ago"`
	MaxItems       int      `yaml:"max_items"`
	Model          string   `yaml:"model"`
	Label          string   `yaml:"label"`
	Query          string   `yaml:"query"`
	Feeds          []string `yaml:"feeds"`
	Concurrency    int      `yaml:"concurrency"`
	FailurePolicy  string   `yaml:"failure_policy"`
	OutputFormat   string   `yaml:"output_format"`
	Schedule       string   `yaml:"schedule"`
	TelegramChatID int64    `yaml:"telegram_chat_id"`
}

// File is the optional YAML options file: shared defaults plus one section per pipeline.
type File struct {
	Defaults RunOptions `yaml:"defaults"`
	PRs      RunOptions `yaml:"prs"`
	Emails   RunOptions `yaml:"emails"`
	Feeds    RunOptions `yaml:"feeds"`
}

func LoadFile(path string) (File, error) {
	var f File

	path = strings.TrimSpace(path)
	if path == "" {
		return f, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("read options file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err = dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return f, fmt.Errorf("parse options file (path = %s): %w", path, err)
	}

	var root yaml.Node
	if err = yaml.Unmarshal(data, &root); err != nil {
		return f, fmt.Errorf("parse options file (path = %s): %w", path, err)
	}

	if err = checkPositive(&root); err != nil {
		return f, fmt.Errorf("validate options file (path = %s): %w", path, err)
	}

	return f, nil
}

// checkPositive rejects days_ago and max_items written as 0 or less in any
// section. Zero means unset once loaded, so an explicit 0 would be ignored.
func checkPositive(root *yaml.Node) error {
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil
	}

	doc := root.Content[0]

	var errs []error

	for i := 0; i+1 < len(doc.Content); i += 2 {
		section, opts := doc.Content[i], doc.Content[i+1]
		if opts.Kind != yaml.MappingNode {
			continue
		}

		for j := 0; j+1 < len(opts.Content); j += 2 {
			key, value := opts.Content[j].Value, opts.Content[j+1]
			if key != "days_ago" && key != "max_items" {
				continue
			}

			var n int
			if err := value.Decode(&n); err == nil && n <= 0 {
				errs = append(errs, fmt.Errorf("%s.%s must be positive (got %d)", section.Value, key, n))
			}
		}
	}

	return errors.Join(errs...)
}

// For returns the file's options for one pipeline layered over its defaults.
func (f File) For(pipeline string) RunOptions {
	switch pipeline {
	case "prs":
		return f.Defaults.Merge(f.PRs)
	case "emails":
		return f.Defaults.Merge(f.Emails)
	case "feeds":
		return f.Defaults.Merge(f.Feeds)
	default:
		return f.Defaults
	}
}

// Merge returns o with every field that is set in override replaced.
func (o RunOptions) Merge(override RunOptions) RunOptions {
	if override.DaysAgo != 0 {
		o.DaysAgo = override.DaysAgo
	}
	if override.MaxItems != 0 {
		o.MaxItems = override.MaxItems
	}
	if override.Model != "" {
		o.Model = override.Model
	}
	if override.Label != "" {
		o.Label = override.Label
	}
	if override.Query != "" {
		o.Query = override.Query
	}
	if len(override.Feeds) > 0 {
		o.Feeds = override.Feeds
	}
	if override.Concurrency != 0 {
		o.Concurrency = override.Concurrency
	}
	if override.FailurePolicy != "" {
		o.FailurePolicy = override.FailurePolicy
	}
	if override.OutputFormat != "" {
		o.OutputFormat = override.OutputFormat
	}
	if override.Schedule != "" {
		o.Schedule = override.Schedule
	}
	if override.TelegramChatID != 0 {
		o.TelegramChatID = override.TelegramChatID
	}

	return o
}

func (o RunOptions) Validate() error {
	var errs []error

	if o.DaysAgo <= 0 {
		errs = append(errs, fmt.Errorf("days_ago must be positive (got %d)", o.DaysAgo))
	}
	if o.MaxItems <= 0 {
		errs = append(errs, fmt.Errorf("max_items must be positive (got %d)", o.MaxItems))
	}
	if o.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must not be negative (got %d)", o.Concurrency))
	}

	return errors.Join(errs...)
}
