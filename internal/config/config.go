// Package config loads and normalizes the autorefs build configuration from
// a YAML file, a .env file, and AUTOREFS_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/autorefs/internal/rewrite"
)

// TriState is a YAML value that accepts booleans and a small set of mode
// strings (e.g. link_titles: external, strip_title_tags: auto).
type TriState string

const (
	TriTrue     TriState = "true"
	TriFalse    TriState = "false"
	TriAuto     TriState = "auto"
	TriExternal TriState = "external"
)

// UnmarshalYAML accepts either a boolean or a string.
func (t *TriState) UnmarshalYAML(value *yaml.Node) error {
	var b bool
	if err := value.Decode(&b); err == nil {
		*t = TriFalse
		if b {
			*t = TriTrue
		}
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	*t = TriState(s)
	return nil
}

// Config is the build configuration.
type Config struct {
	// Source is the directory holding the Markdown pages.
	Source string `yaml:"source"`
	// Output is the directory the rendered site is written to.
	Output string `yaml:"output"`

	// ResolveClosest picks the path-distance-nearest candidate when an
	// identifier has multiple URLs, instead of warning and using the first.
	ResolveClosest bool `yaml:"resolve_closest"`
	// LinkTitles controls title attributes on resolved links:
	// true, false, external (external links only), or auto.
	LinkTitles TriState `yaml:"link_titles"`
	// StripTitleTags strips HTML markup from link tooltips: true, false, auto.
	StripTitleTags TriState `yaml:"strip_title_tags"`
	// RecordBacklinks enables backlink recording and rendering.
	RecordBacklinks bool `yaml:"record_backlinks"`

	// ReportDB is an optional SQLite path for build reports ("" disables).
	ReportDB string `yaml:"report_db"`
}

// Load reads, overrides, and normalizes the configuration. A missing config
// file yields the defaults.
func Load(path string) (*Config, error) {
	// A .env file is optional; existing env vars are never overridden.
	_ = godotenv.Load()

	cfg := &Config{}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("AUTOREFS_SOURCE"); v != "" {
		c.Source = v
	}
	if v := os.Getenv("AUTOREFS_OUTPUT"); v != "" {
		c.Output = v
	}
	if v := os.Getenv("AUTOREFS_RESOLVE_CLOSEST"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.ResolveClosest = b
		}
	}
	if v := os.Getenv("AUTOREFS_LINK_TITLES"); v != "" {
		c.LinkTitles = TriState(v)
	}
	if v := os.Getenv("AUTOREFS_STRIP_TITLE_TAGS"); v != "" {
		c.StripTitleTags = TriState(v)
	}
	if v := os.Getenv("AUTOREFS_RECORD_BACKLINKS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.RecordBacklinks = b
		}
	}
	if v := os.Getenv("AUTOREFS_REPORT_DB"); v != "" {
		c.ReportDB = v
	}
}

// normalize applies defaults and resolves auto tri-states. Without theme
// detection there is nothing for auto to key off, so it means true.
func (c *Config) normalize() error {
	if c.Source == "" {
		c.Source = "docs"
	}
	if c.Output == "" {
		c.Output = "site"
	}
	if c.LinkTitles == "" || c.LinkTitles == TriAuto {
		c.LinkTitles = TriTrue
	}
	switch c.LinkTitles {
	case TriTrue, TriFalse, TriExternal:
	default:
		return fmt.Errorf("invalid link_titles value %q (want true, false, external, or auto)", c.LinkTitles)
	}
	if c.StripTitleTags == "" || c.StripTitleTags == TriAuto {
		c.StripTitleTags = TriTrue
	}
	switch c.StripTitleTags {
	case TriTrue, TriFalse:
	default:
		return fmt.Errorf("invalid strip_title_tags value %q (want true, false, or auto)", c.StripTitleTags)
	}
	return nil
}

// TitlePolicy maps the normalized link_titles value onto the rewriter's policy.
func (c *Config) TitlePolicy() rewrite.TitlePolicy {
	switch c.LinkTitles {
	case TriFalse:
		return rewrite.TitlesNever
	case TriExternal:
		return rewrite.TitlesExternal
	default:
		return rewrite.TitlesAlways
	}
}

// StripTags reports whether tooltips should have their markup stripped.
func (c *Config) StripTags() bool {
	return c.StripTitleTags == TriTrue
}
