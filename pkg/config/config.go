// Package config loads pv settings. Sources, lowest priority first:
// built-in defaults, ~/.config/pv/config.yaml, the project's
// .pv/config.yaml (found by walking up from the working directory), PV_*
// environment variables and finally command-line flags bound by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Dicklesworthstone/proof_viewer/pkg/render"
)

const (
	// ProjectDir holds per-project configuration and state
	ProjectDir = ".pv"
	// FileName is the config file name in both the user and project dirs
	FileName = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. PV_SERVER
	EnvPrefix = "PV"
)

// Config holds every pv setting
type Config struct {
	Server               string          `mapstructure:"server" yaml:"server"`
	Workset              int             `mapstructure:"workset" yaml:"workset"`
	File                 string          `mapstructure:"file" yaml:"file"`
	Style                string          `mapstructure:"style" yaml:"style"`
	IncludeNonEssentials bool            `mapstructure:"include_non_essentials" yaml:"include_non_essentials"`
	MaxDepth             int             `mapstructure:"max_depth" yaml:"max_depth"`
	StateDir             string          `mapstructure:"state_dir" yaml:"state_dir"`
	Cache                CacheConfig     `mapstructure:"cache" yaml:"cache"`
	Log                  LogConfig       `mapstructure:"log" yaml:"log"`
	Discovery            DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
}

// CacheConfig controls the SQLite lookup cache
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// LogConfig controls logging
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// DiscoveryConfig controls where offline dumps are looked for
type DiscoveryConfig struct {
	ScanPaths []string `mapstructure:"scan_paths" yaml:"scan_paths"`
	MaxDepth  int      `mapstructure:"max_depth" yaml:"max_depth"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		Server:   "http://localhost:8888",
		Style:    render.AltHTML.String(),
		MaxDepth: 4096,
		StateDir: defaultStateDir(),
		Cache:    CacheConfig{Enabled: true},
		Log:      LogConfig{Level: "warn"},
		Discovery: DiscoveryConfig{
			MaxDepth: 3,
		},
	}
}

// LoadOptions tells Load where to look
type LoadOptions struct {
	// ConfigFile, when set, replaces the user and project files
	ConfigFile string
	// WorkDir is where the project search starts; defaults to the cwd
	WorkDir string
	// UserDir overrides ~/.config/pv
	UserDir string
}

// New returns a viper instance carrying the defaults and environment
// bindings. Callers bind their flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault("server", d.Server)
	v.SetDefault("workset", d.Workset)
	v.SetDefault("file", d.File)
	v.SetDefault("style", d.Style)
	v.SetDefault("include_non_essentials", d.IncludeNonEssentials)
	v.SetDefault("max_depth", d.MaxDepth)
	v.SetDefault("state_dir", d.StateDir)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.path", d.Cache.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("discovery.scan_paths", d.Discovery.ScanPaths)
	v.SetDefault("discovery.max_depth", d.Discovery.MaxDepth)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config files into v and returns the validated result
func Load(v *viper.Viper, opts LoadOptions) (*Config, error) {
	v.SetConfigType("yaml")
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
	} else {
		for _, path := range searchPaths(opts) {
			if err := mergeFile(v, path); err != nil {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.StateDir = expandHome(cfg.StateDir)
	cfg.File = expandHome(cfg.File)
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = filepath.Join(cfg.StateDir, "cache.db")
	}
	cfg.Cache.Path = expandHome(cfg.Cache.Path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings for consistency
func (c *Config) Validate() error {
	if _, err := render.ParseStyle(c.Style); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("invalid config: max_depth must not be negative, got %d", c.MaxDepth)
	}
	if c.Workset < 0 {
		return fmt.Errorf("invalid config: workset must not be negative, got %d", c.Workset)
	}
	if c.Server == "" && c.File == "" {
		return errors.New("invalid config: set either server or file")
	}
	return nil
}

// RenderStyle returns the parsed rendering style
func (c *Config) RenderStyle() render.Style {
	s, err := render.ParseStyle(c.Style)
	if err != nil {
		return render.AltHTML
	}
	return s
}

// StatePath returns a path inside the state directory
func (c *Config) StatePath(name string) string {
	return filepath.Join(c.StateDir, name)
}

// UserConfigPath returns ~/.config/pv/config.yaml
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "pv", FileName)
}

// WriteDefault writes the built-in settings to path. An existing file is
// left alone unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	header := "# pv configuration. Every key can be overridden with a PV_* environment\n" +
		"# variable, e.g. PV_SERVER or PV_CACHE_ENABLED.\n"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(header), data...), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func searchPaths(opts LoadOptions) []string {
	var paths []string
	userDir := opts.UserDir
	if userDir == "" {
		if p := UserConfigPath(); p != "" {
			userDir = filepath.Dir(p)
		}
	}
	if userDir != "" {
		paths = append(paths, filepath.Join(userDir, FileName))
	}

	workDir := opts.WorkDir
	if workDir == "" {
		workDir, _ = os.Getwd()
	}
	if workDir != "" {
		if root, ok := findProjectRoot(workDir); ok {
			paths = append(paths, filepath.Join(root, ProjectDir, FileName))
		}
	}
	return paths
}

func mergeFile(v *viper.Viper, path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	if err := v.MergeConfig(f); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ProjectDir
	}
	return filepath.Join(home, ".local", "share", "pv")
}
