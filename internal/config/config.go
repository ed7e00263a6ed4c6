package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/lptsplit/lptsplit/internal/logger"
	"github.com/lptsplit/lptsplit/internal/render"
	tlsx "github.com/lptsplit/lptsplit/internal/tls"
)

// EnvPrefix is prepended to environment overrides, e.g. LPTSPLIT_OUTPUT_DIR.
const EnvPrefix = "LPTSPLIT"

// ErrInvalid marks configuration problems that prevent the monitor from
// starting.
var ErrInvalid = errors.New("invalid configuration")

// Config is the top-level configuration file structure.
type Config struct {
	PrinterFile  string         `toml:"printer_file" mapstructure:"printer_file"`
	OutputDir    string         `toml:"output_dir" mapstructure:"output_dir"`
	PollInterval time.Duration  `toml:"poll_interval" mapstructure:"poll_interval"`
	CloseSettle  time.Duration  `toml:"close_settle" mapstructure:"close_settle"`
	PIDFile      string         `toml:"pid_file" mapstructure:"pid_file"`
	Output       OutputConfig   `toml:"output" mapstructure:"output"`
	Renderer     RendererConfig `toml:"renderer" mapstructure:"renderer"`
	Log          LogConfig      `toml:"log" mapstructure:"log"`
	History      HistoryConfig  `toml:"history" mapstructure:"history"`
	Server       ServerConfig   `toml:"server" mapstructure:"server"`
}

type OutputConfig struct {
	Extension string `toml:"extension" mapstructure:"extension"`
}

// RendererConfig describes the external document renderer.
type RendererConfig struct {
	Path      string   `toml:"path" mapstructure:"path"` // empty: next to the lptsplit binary
	TopOfForm int      `toml:"tof" mapstructure:"tof"`
	Args      []string `toml:"args" mapstructure:"args"` // extra options before "--"
	Env       []string `toml:"env" mapstructure:"env"`
	EnvFiles  []string `toml:"env_files" mapstructure:"env_files"`
	UseOSEnv  bool     `toml:"use_os_env" mapstructure:"use_os_env"`
	LogDir    string   `toml:"log_dir" mapstructure:"log_dir"`
}

type LogConfig struct {
	File       string `toml:"file" mapstructure:"file"`
	Level      string `toml:"level" mapstructure:"level"`
	Console    bool   `toml:"console" mapstructure:"console"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

// HistoryConfig enables the job archive when DSN is set.
type HistoryConfig struct {
	DSN     string        `toml:"dsn" mapstructure:"dsn"`
	Timeout time.Duration `toml:"timeout" mapstructure:"timeout"`
}

// ServerConfig enables the read-only status API when Listen is set.
type ServerConfig struct {
	Listen   string      `toml:"listen" mapstructure:"listen"`
	BasePath string      `toml:"base_path" mapstructure:"base_path"`
	Metrics  bool        `toml:"metrics" mapstructure:"metrics"`
	TLS      tlsx.Config `toml:"tls" mapstructure:"tls"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("printer_file", "")
	v.SetDefault("output_dir", "")
	v.SetDefault("poll_interval", 2*time.Second)
	v.SetDefault("close_settle", time.Second)
	v.SetDefault("pid_file", "lptsplit.pid")
	v.SetDefault("output.extension", "pdf")
	v.SetDefault("renderer.path", "")
	v.SetDefault("renderer.tof", render.DefaultTopOfForm)
	v.SetDefault("renderer.args", []string{})
	v.SetDefault("renderer.env", []string{})
	v.SetDefault("renderer.env_files", []string{})
	v.SetDefault("renderer.use_os_env", true)
	v.SetDefault("renderer.log_dir", "")
	v.SetDefault("log.file", "lptsplit.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", false)
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)
	v.SetDefault("history.dsn", "")
	v.SetDefault("history.timeout", 5*time.Second)
	v.SetDefault("server.listen", "")
	v.SetDefault("server.base_path", "/api")
	v.SetDefault("server.metrics", true)
	v.SetDefault("server.tls.enabled", false)
	v.SetDefault("server.tls.cert_file", "")
	v.SetDefault("server.tls.key_file", "")
	v.SetDefault("server.tls.dir", "")
	v.SetDefault("server.tls.auto_generate", false)
	v.SetDefault("server.tls.min_version", "")
}

// Load reads path (TOML, YAML or JSON by extension) on top of the defaults
// and applies LPTSPLIT_* environment overrides. An empty path yields the
// defaults plus environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext == "" {
			v.SetConfigType("toml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &c, nil
}

// Validate checks everything that must hold before monitoring starts. All
// problems are reported together; each wraps ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.PrinterFile == "" {
		bad("printer file not set")
	} else if fi, err := os.Stat(c.PrinterFile); err != nil {
		bad("printer file %s: %v", c.PrinterFile, err)
	} else if fi.IsDir() {
		bad("printer file %s is a directory", c.PrinterFile)
	}

	if c.OutputDir == "" {
		bad("output directory not set")
	} else if fi, err := os.Stat(c.OutputDir); err != nil {
		bad("output directory %s: %v", c.OutputDir, err)
	} else if !fi.IsDir() {
		bad("output directory %s is not a directory", c.OutputDir)
	}

	exe, err := c.RendererPath()
	if err == nil {
		err = render.CheckExecutable(exe)
	}
	if err != nil {
		bad("%v", err)
	}

	if c.PollInterval <= 0 {
		bad("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.CloseSettle < 0 {
		bad("close_settle must not be negative, got %s", c.CloseSettle)
	}
	if c.Renderer.TopOfForm < 0 {
		bad("renderer tof must not be negative, got %d", c.Renderer.TopOfForm)
	}
	return errors.Join(errs...)
}

// RendererPath returns the configured renderer or the default one next to the
// running binary.
func (c *Config) RendererPath() (string, error) {
	if c.Renderer.Path != "" {
		return c.Renderer.Path, nil
	}
	return render.DefaultExecutable()
}

// RendererArgs returns the renderer options placed before "--".
func (c *Config) RendererArgs() []string {
	return render.Args(c.Renderer.TopOfForm, c.Renderer.Args)
}

// Logger converts the log section to a logger.Config.
func (c *Config) Logger() logger.Config {
	return logger.Config{
		File:        c.Log.File,
		Level:       c.Log.Level,
		Console:     c.Log.Console,
		RendererDir: c.Renderer.LogDir,
		MaxSizeMB:   c.Log.MaxSizeMB,
		MaxBackups:  c.Log.MaxBackups,
		MaxAgeDays:  c.Log.MaxAgeDays,
		Compress:    c.Log.Compress,
	}
}

// RendererEnv builds the renderer environment. Precedence, lowest first:
// the OS environment (when use_os_env), env_files in order, then env.
func (c *Config) RendererEnv() ([]string, error) {
	m := make(map[string]string)
	if c.Renderer.UseOSEnv {
		for _, kv := range os.Environ() {
			if k, v, ok := strings.Cut(kv, "="); ok {
				m[k] = v
			}
		}
	}
	for _, p := range c.Renderer.EnvFiles {
		pairs, err := godotenv.Read(filepath.Clean(p))
		if err != nil {
			return nil, fmt.Errorf("renderer env file: %w", err)
		}
		for k, v := range pairs {
			m[k] = v
		}
	}
	for _, kv := range c.Renderer.Env {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out, nil
}
