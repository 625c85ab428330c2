package internal

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/kbclaude/internal/workspace"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Workspace WorkspaceConfig   `yaml:"workspace"`
	Index     IndexConfig       `yaml:"index"`
	Watch     WatchConfig       `yaml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Workspace.Validate(); err != nil {
		return fmt.Errorf("workspace: %w", err)
	}
	if err := c.Index.Validate(); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if err := c.Watch.Validate(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	return nil
}

// Layout returns the workspace layout described by the configuration.
func (c *Config) Layout() workspace.Layout {
	return workspace.Layout{
		DirName:      c.Workspace.DirName,
		ManifestFile: c.Workspace.ManifestFile,
		TableFile:    c.Workspace.TableFile,
		IndexFile:    c.Index.File,
	}
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatText
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatText, LogFormatJSON)),
	)
}

// WorkspaceConfig names the knowledge base directory and its generated files.
type WorkspaceConfig struct {
	DirName      string `yaml:"dir_name"`
	ManifestFile string `yaml:"manifest_file"`
	TableFile    string `yaml:"table_file"`
}

// Validate validates the workspace configuration.
func (c *WorkspaceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DirName, validation.Required, validation.By(plainName)),
		validation.Field(&c.ManifestFile, validation.Required, validation.By(plainName)),
		validation.Field(&c.TableFile, validation.Required, validation.By(plainName)),
	)
}

// IndexConfig controls the derived search index.
type IndexConfig struct {
	Enabled bool   `yaml:"enabled"`
	File    string `yaml:"file"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.File, validation.When(c.Enabled, validation.Required), validation.By(plainName)),
	)
}

// WatchConfig holds file watcher configuration.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Required, validation.Min(10*time.Millisecond), validation.Max(time.Minute)),
	)
}

// plainName rejects values that would escape the workspace directory.
func plainName(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if strings.ContainsAny(s, `/\`) || s == "." || s == ".." {
		return fmt.Errorf("must be a plain file name, got %q", s)
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelWarn,
			LogFormat: LogFormatText,
		},
		Workspace: WorkspaceConfig{
			DirName:      workspace.DefaultDirName,
			ManifestFile: workspace.DefaultManifestFile,
			TableFile:    workspace.DefaultTableFile,
		},
		Index: IndexConfig{
			Enabled: true,
			File:    workspace.DefaultIndexFile,
		},
		Watch: WatchConfig{
			Debounce: 200 * time.Millisecond,
		},
	}
}
