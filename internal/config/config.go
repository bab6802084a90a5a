// Package config loads promptfix configuration from YAML or JSON files.
// Loading never fails: unreadable or malformed sources fall back to the
// built-in defaults and the problem is returned as a warning.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	perrors "github.com/FocuswithJustin/promptfix/core/errors"
	"github.com/FocuswithJustin/promptfix/core/engine"
	"github.com/FocuswithJustin/promptfix/core/styles"
	"github.com/FocuswithJustin/promptfix/internal/logging"
)

// Config is the configuration outside the style presets, which live in
// the Index of a Loaded result.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
	Audit   AuditConfig   `yaml:"audit"`
}

// EngineConfig tunes document editing.
type EngineConfig struct {
	Container string            `yaml:"container"`
	Wrapper   string            `yaml:"wrapper"`
	Indent    string            `yaml:"indent"`
	Anchors   map[string]string `yaml:"anchors"`
}

// LoggingConfig selects the log handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AuditConfig enables the run audit log. An empty Path disables it.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Container: "general_tags",
			Wrapper:   "root",
			Indent:    "  ",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// EngineOptions converts the engine section into engine options.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		Container: c.Engine.Container,
		Wrapper:   c.Engine.Wrapper,
		Indent:    c.Engine.Indent,
		Anchors:   c.Engine.Anchors,
	}
}

// Loaded is the result of one load: the effective configuration, the style
// index built from it, and any warnings raised on the way.
type Loaded struct {
	Config   *Config
	Index    *styles.Index
	Warnings []error
}

// Degraded reports whether any part of the source was replaced by defaults.
func (l *Loaded) Degraded() bool {
	return len(l.Warnings) > 0
}

// Load reads path and merges it over the defaults. An empty path yields the
// defaults silently. Every warning is logged to logger (nil means the
// package default) and returned in Loaded.Warnings.
func Load(path string, logger *slog.Logger) *Loaded {
	cfg := DefaultConfig()
	var warnings []error
	var overrides map[string]styles.Preset

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err != nil:
			warnings = append(warnings, perrors.NewDegraded(path, "unreadable", err))
		case isJSON(path, data):
			overrides, warnings = decodeJSON(path, data, cfg)
		default:
			overrides, warnings = decodeYAML(path, data, cfg)
		}
	}

	for _, w := range warnings {
		logging.ConfigDegraded(logger, path, w)
	}
	return &Loaded{
		Config:   cfg,
		Index:    styles.Build(styles.Defaults(), overrides),
		Warnings: warnings,
	}
}

func isJSON(path string, data []byte) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return true
	case ".yaml", ".yml":
		return false
	}
	return bytes.HasPrefix(bytes.TrimSpace(data), []byte("{"))
}

// fileConfig mirrors Config for decoding; styles stay a raw node so each
// preset can be checked on its own.
type fileConfig struct {
	Styles  yaml.Node     `yaml:"styles"`
	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
	Audit   AuditConfig   `yaml:"audit"`
}

func decodeYAML(path string, data []byte, cfg *Config) (map[string]styles.Preset, []error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, []error{perrors.NewDegraded(path, "invalid YAML", err)}
	}
	merge(cfg, fc.Engine, fc.Logging, fc.Audit)

	node := &fc.Styles
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.MappingNode:
	default:
		return nil, []error{perrors.NewDegraded(path, "styles is not a mapping", nil)}
	}

	var warnings []error
	presets := make(map[string]styles.Preset)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		value := node.Content[i+1]
		var p styles.Preset
		if value.Kind != yaml.MappingNode {
			warnings = append(warnings, perrors.NewDegraded(path, fmt.Sprintf("preset %q is not a mapping", name), nil))
			continue
		}
		if err := value.Decode(&p); err != nil {
			warnings = append(warnings, perrors.NewDegraded(path, fmt.Sprintf("preset %q", name), err))
			continue
		}
		presets[name] = p
	}
	return presets, warnings
}

func decodeJSON(path string, data []byte, cfg *Config) (map[string]styles.Preset, []error) {
	if !gjson.ValidBytes(data) {
		return nil, []error{perrors.NewDegraded(path, "invalid JSON", nil)}
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, []error{perrors.NewDegraded(path, "top level is not an object", nil)}
	}

	fe := EngineConfig{
		Container: root.Get("engine.container").String(),
		Wrapper:   root.Get("engine.wrapper").String(),
		Indent:    root.Get("engine.indent").String(),
	}
	if anchors := root.Get("engine.anchors"); anchors.IsObject() {
		fe.Anchors = make(map[string]string)
		anchors.ForEach(func(key, value gjson.Result) bool {
			fe.Anchors[key.String()] = value.String()
			return true
		})
	}
	merge(cfg, fe, LoggingConfig{
		Level:  root.Get("logging.level").String(),
		Format: root.Get("logging.format").String(),
	}, AuditConfig{
		Path: root.Get("audit.path").String(),
	})

	st := root.Get("styles")
	if !st.Exists() {
		return nil, nil
	}
	if !st.IsObject() {
		return nil, []error{perrors.NewDegraded(path, "styles is not a mapping", nil)}
	}

	var warnings []error
	presets := make(map[string]styles.Preset)
	st.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if !value.IsObject() {
			warnings = append(warnings, perrors.NewDegraded(path, fmt.Sprintf("preset %q is not a mapping", name), nil))
			return true
		}
		presets[name] = styles.Preset{
			Artist: value.Get("artist").String(),
			Style:  value.Get("style").String(),
		}
		return true
	})
	return presets, warnings
}

// merge copies every non-empty value over the defaults.
func merge(cfg *Config, e EngineConfig, l LoggingConfig, a AuditConfig) {
	if e.Container != "" {
		cfg.Engine.Container = e.Container
	}
	if e.Wrapper != "" {
		cfg.Engine.Wrapper = e.Wrapper
	}
	if e.Indent != "" {
		cfg.Engine.Indent = e.Indent
	}
	if len(e.Anchors) > 0 {
		cfg.Engine.Anchors = make(map[string]string, len(e.Anchors))
		for field, anchor := range e.Anchors {
			cfg.Engine.Anchors[strings.ToLower(field)] = anchor
		}
	}
	if l.Level != "" {
		cfg.Logging.Level = l.Level
	}
	if l.Format != "" {
		cfg.Logging.Format = l.Format
	}
	if a.Path != "" {
		cfg.Audit.Path = a.Path
	}
}
