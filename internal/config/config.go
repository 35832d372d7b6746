package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "cmdnice.yaml"

type Config struct {
	Root       string            `yaml:"root" toml:"root"`
	Paths      []string          `yaml:"paths" toml:"paths"`
	Alias      map[string]string `yaml:"alias" toml:"alias"`
	AliasPaths map[string]string `yaml:"alias_paths" toml:"alias_paths"`
	Extension  string            `yaml:"extension" toml:"extension"`
	UseCache   *bool             `yaml:"use_cache" toml:"use_cache"`
	Strict     bool              `yaml:"strict" toml:"strict"`
	// IDRule is a template for local module ids; {id} is the canonical id.
	IDRule   string `yaml:"id_rule" toml:"id_rule"`
	LogLevel string `yaml:"log_level" toml:"log_level"`
	Beautify bool   `yaml:"beautify" toml:"beautify"`

	Concat struct {
		Separator     string `yaml:"separator" toml:"separator"`
		UseCache      *bool  `yaml:"use_cache" toml:"use_cache"`
		OnDuplicateID string `yaml:"on_duplicate_id" toml:"on_duplicate_id"`
	} `yaml:"concat" toml:"concat"`
	Debug struct {
		Postfix string `yaml:"postfix" toml:"postfix"`
	} `yaml:"debug" toml:"debug"`
	Style struct {
		Paths []string `yaml:"paths" toml:"paths"`
	} `yaml:"style" toml:"style"`
	Batch struct {
		Concurrency int `yaml:"concurrency" toml:"concurrency"`
	} `yaml:"batch" toml:"batch"`
}

// CacheEnabled reports whether the transport caches are on (default true).
func (c *Config) CacheEnabled() bool {
	return c.UseCache == nil || *c.UseCache
}

// ConcatCacheEnabled falls back to use_cache when concat.use_cache is unset.
func (c *Config) ConcatCacheEnabled() bool {
	if c.Concat.UseCache != nil {
		return *c.Concat.UseCache
	}
	return c.CacheEnabled()
}

// LoadConfig reads path (YAML, or TOML for a .toml file). A missing file at
// the default location yields the defaults; any other missing file is an
// error. Environment variables override file values.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	// 2. Load config file
	var cfg Config
	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, file, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, err
	}

	// 3. Override with Environment Variables if present
	if root := os.Getenv("CMDNICE_ROOT"); root != "" {
		cfg.Root = root
	}
	if level := os.Getenv("CMDNICE_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if strict := os.Getenv("CMDNICE_STRICT"); strict != "" {
		v, err := strconv.ParseBool(strict)
		if err != nil {
			return nil, fmt.Errorf("invalid CMDNICE_STRICT %q: %w", strict, err)
		}
		cfg.Strict = v
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	if err := cfg.normalize(base); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return toml.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

// normalize fills defaults and makes every path absolute. A relative root is
// taken from the config file's directory; other paths from the root.
func (c *Config) normalize(base string) error {
	if c.Root == "" {
		c.Root = base
	} else if !filepath.IsAbs(c.Root) {
		c.Root = filepath.Join(base, c.Root)
	}
	c.Root = filepath.Clean(c.Root)

	if len(c.Paths) == 0 {
		c.Paths = []string{c.Root}
	}
	c.Paths = c.absolute(c.Paths)
	c.Style.Paths = c.absolute(c.Style.Paths)

	if c.Extension == "" {
		c.Extension = ".js"
	} else if !strings.HasPrefix(c.Extension, ".") {
		c.Extension = "." + c.Extension
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
	if c.Concat.Separator == "" {
		c.Concat.Separator = ";"
	}
	if c.Debug.Postfix == "" {
		c.Debug.Postfix = "-debug"
	}
	if c.Batch.Concurrency <= 0 {
		c.Batch.Concurrency = 1
	}

	switch c.Concat.OnDuplicateID {
	case "":
		c.Concat.OnDuplicateID = "first"
	case "first", "error":
	default:
		return fmt.Errorf("concat.on_duplicate_id must be first or error, got %q", c.Concat.OnDuplicateID)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

func (c *Config) absolute(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(c.Root, p)
		}
		out = append(out, filepath.Clean(p))
	}
	return out
}
