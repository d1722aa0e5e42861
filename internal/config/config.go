// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// ErrInvalid is wrapped by every validation failure so callers can tell a
// rejected configuration apart from a failed run.
var ErrInvalid = errors.New("invalid configuration")

// DefaultOutputDir is where reports go when no directory is configured.
const DefaultOutputDir = "./test-reports"

// Config holds the entire application configuration.
type Config struct {
	Logger LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Server ServerConfig      `mapstructure:"server" yaml:"server"`
	Run    TestConfiguration `mapstructure:"run" yaml:"run"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ServerConfig configures the HTTP front end used by `shelfcheck serve`.
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	// OutputDir is the root for reports of HTTP runs. A request may only
	// name a relative directory beneath it.
	OutputDir       string        `mapstructure:"output_dir" yaml:"output_dir"`
}

// Viewport is the browser window size used for every page visit.
type Viewport struct {
	Width  int `mapstructure:"width" yaml:"width" json:"width"`
	Height int `mapstructure:"height" yaml:"height" json:"height"`
}

// Cookie is installed into the browsing context before the first page visit.
type Cookie struct {
	Name   string `mapstructure:"name" yaml:"name" json:"name"`
	Value  string `mapstructure:"value" yaml:"value" json:"value"`
	Domain string `mapstructure:"domain" yaml:"domain,omitempty" json:"domain,omitempty"`
	Path   string `mapstructure:"path" yaml:"path,omitempty" json:"path,omitempty"`
}

// TestConfiguration describes a single QA run. It is built once, from flags
// or a config document, and is not modified while the run executes.
type TestConfiguration struct {
	BaseURL     string            `mapstructure:"base_url" yaml:"base_url" json:"baseUrl"`
	ProductURLs []string          `mapstructure:"product_urls" yaml:"product_urls" json:"productUrls"`
	Timeout     time.Duration     `mapstructure:"timeout" yaml:"timeout" json:"-"`
	Retries     int               `mapstructure:"retries" yaml:"retries" json:"retries"`
	Viewport    Viewport          `mapstructure:"viewport" yaml:"viewport" json:"viewport"`
	Headless    bool              `mapstructure:"headless" yaml:"headless" json:"headless"`
	Headers     map[string]string `mapstructure:"headers" yaml:"headers" json:"headers,omitempty"`
	Cookies     []Cookie          `mapstructure:"cookies" yaml:"cookies" json:"cookies,omitempty"`

	OutputDir      string `mapstructure:"output_dir" yaml:"output_dir" json:"outputDir,omitempty"`
	GenerateReport bool   `mapstructure:"generate_report" yaml:"generate_report" json:"generateReport"`
	Verbose        bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`
	// ChromePath overrides the Chrome binary lookup. It is never taken from
	// an HTTP payload.
	ChromePath     string `mapstructure:"chrome_path" yaml:"chrome_path" json:"-"`

	// Fixed waits after navigation so lazy images and async errors surface.
	ImageSettle       time.Duration `mapstructure:"image_settle" yaml:"image_settle" json:"-"`
	ErrorSettle       time.Duration `mapstructure:"error_settle" yaml:"error_settle" json:"-"`
	InPageErrorWindow time.Duration `mapstructure:"in_page_error_window" yaml:"in_page_error_window" json:"-"`

	// PageInterval spaces out page visits; zero disables pacing.
	PageInterval time.Duration `mapstructure:"page_interval" yaml:"page_interval" json:"-"`
	// RetryDelay is the linear backoff unit between attempts of one check.
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay" json:"-"`
}

// Validate rejects configurations that must never reach the browser.
func (c *TestConfiguration) Validate() error {
	var problems []string
	if strings.TrimSpace(c.BaseURL) == "" {
		problems = append(problems, "base URL is required")
	} else if err := checkURL(c.BaseURL); err != nil {
		problems = append(problems, fmt.Sprintf("base URL: %v", err))
	}
	if len(c.ProductURLs) == 0 {
		problems = append(problems, "at least one product URL is required")
	}
	for i, u := range c.ProductURLs {
		if err := checkURL(u); err != nil {
			problems = append(problems, fmt.Sprintf("product URL #%d: %v", i+1, err))
		}
	}
	if c.Timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}
	if c.Retries <= 0 {
		problems = append(problems, "retries must be a positive integer")
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		problems = append(problems, "viewport width and height must be positive")
	}
	for i, ck := range c.Cookies {
		if ck.Name == "" {
			problems = append(problems, fmt.Sprintf("cookie #%d has no name", i+1))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q is not an http(s) URL", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}

// ApplyDefaults fills zero values with the package defaults. It is used for
// configurations that bypass viper, such as HTTP request payloads.
func (c *TestConfiguration) ApplyDefaults() {
	d := NewDefaultConfig().Run
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.Retries <= 0 {
		c.Retries = d.Retries
	}
	if c.Viewport.Width <= 0 {
		c.Viewport.Width = d.Viewport.Width
	}
	if c.Viewport.Height <= 0 {
		c.Viewport.Height = d.Viewport.Height
	}
	if c.OutputDir == "" {
		c.OutputDir = d.OutputDir
	}
	if c.ImageSettle <= 0 {
		c.ImageSettle = d.ImageSettle
	}
	if c.ErrorSettle <= 0 {
		c.ErrorSettle = d.ErrorSettle
	}
	if c.InPageErrorWindow <= 0 {
		c.InPageErrorWindow = d.InPageErrorWindow
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
}

// Normalize trims URL lists and expands a leading ~ in the output directory.
func (c *TestConfiguration) Normalize() error {
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	urls := make([]string, 0, len(c.ProductURLs))
	for _, u := range c.ProductURLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	c.ProductURLs = urls

	if c.OutputDir != "" {
		dir, err := homedir.Expand(c.OutputDir)
		if err != nil {
			return fmt.Errorf("%w: output directory: %v", ErrInvalid, err)
		}
		c.OutputDir = dir
	}
	return nil
}

// SplitURLList parses the comma separated --urls flag value.
func SplitURLList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg, DecodeHook()); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "shelfcheck")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Server --
	v.SetDefault("server.listen_addr", "127.0.0.1:8088")
	v.SetDefault("server.request_timeout", "15m")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.output_dir", DefaultOutputDir)

	// -- Run --
	v.SetDefault("run.base_url", "")
	v.SetDefault("run.product_urls", []string{})
	v.SetDefault("run.timeout", "30s")
	v.SetDefault("run.retries", 3)
	v.SetDefault("run.viewport.width", 1920)
	v.SetDefault("run.viewport.height", 1080)
	v.SetDefault("run.headless", true)
	v.SetDefault("run.output_dir", DefaultOutputDir)
	v.SetDefault("run.generate_report", true)
	v.SetDefault("run.verbose", false)
	v.SetDefault("run.chrome_path", "")
	v.SetDefault("run.image_settle", "2s")
	v.SetDefault("run.error_settle", "3s")
	v.SetDefault("run.in_page_error_window", "1s")
	v.SetDefault("run.page_interval", "0s")
	v.SetDefault("run.retry_delay", "1s")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
// It does not validate the run section; that happens when a run is requested.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, DecodeHook()); err != nil {
		return nil, fmt.Errorf("%w: error unmarshaling config: %v", ErrInvalid, err)
	}
	if err := cfg.Run.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
