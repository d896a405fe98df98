// Package config loads SDK settings from a TOML file.
//
// Environment variables are expanded in the file before decoding, and a .env
// file next to the config (or in the working directory) is loaded first when
// present. Every failure is a Config failure.
package config

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/vinayprograms/aisdk/credentials"
	"github.com/vinayprograms/aisdk/errors"
	"github.com/vinayprograms/aisdk/llm"
	"github.com/vinayprograms/aisdk/logging"
	"github.com/vinayprograms/aisdk/telemetry"
)

// Defaults applied when the file leaves a setting out.
const (
	DefaultMaxTokens = 4096
	DefaultTimeout   = "60s"
	DefaultLogLevel  = "info"
)

// Config holds provider and runtime settings.
type Config struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url"`
	MaxTokens int    `toml:"max_tokens"`
	Timeout   string `toml:"timeout"`
	LogLevel  string `toml:"log_level"`

	Tools     ToolsConfig     `toml:"tools"`
	Telemetry TelemetryConfig `toml:"telemetry"`

	// Path is the file the config was loaded from.
	Path string `toml:"-"`
}

// ToolsConfig holds tool execution settings.
type ToolsConfig struct {
	StrictSchema bool `toml:"strict_schema"`
}

// TelemetryConfig holds trace export settings. Tracing is off unless
// Enabled is set.
type TelemetryConfig struct {
	Enabled     bool              `toml:"enabled"`
	ServiceName string            `toml:"service_name"`
	Endpoint    string            `toml:"endpoint"`
	Protocol    string            `toml:"protocol"`
	Insecure    bool              `toml:"insecure"`
	Debug       bool              `toml:"debug"`
	Headers     map[string]string `toml:"headers"`
}

var telemetryProtocols = map[string]bool{
	"":                       true,
	telemetry.ProtocolGRPC:   true,
	telemetry.ProtocolHTTP:   true,
	telemetry.ProtocolStdout: true,
}

// keyless providers authenticate without an API key (AWS credential chain,
// local OpenAI-compatible servers).
var keyless = map[string]bool{
	llm.ProviderBedrock:      true,
	llm.ProviderOpenAICompat: true,
}

// Default returns a Config with defaults filled in and no provider.
func Default() *Config {
	return &Config{
		MaxTokens: DefaultMaxTokens,
		Timeout:   DefaultTimeout,
		LogLevel:  DefaultLogLevel,
	}
}

// Load reads, resolves, and validates the config at path.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Config("cannot read config: "+err.Error(),
			errors.WithCause(err), errors.WithMetadata("path", path))
	}

	cfg, err := Parse(os.ExpandEnv(string(data)))
	if err != nil {
		if failure, ok := errors.As(err); ok {
			return nil, errors.Config(failure.Message(), errors.WithCause(failure.Unwrap()),
				errors.WithMetadataMap(failure.Metadata()), errors.WithMetadata("path", path))
		}
		return nil, err
	}
	cfg.Path = path

	if err := cfg.resolveAPIKey(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes TOML text over the defaults. Keys the Config does not know
// are rejected. The result is not validated.
func Parse(text string) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(text, cfg)
	if err != nil {
		return nil, errors.Config("invalid config: "+err.Error(), errors.WithCause(err))
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		sort.Strings(keys)
		return nil, errors.Config("unknown config keys: "+strings.Join(keys, ", "),
			errors.WithMetadata("keys", strings.Join(keys, ",")))
	}
	return cfg, nil
}

// loadDotEnv loads .env from dir, then from the working directory. Existing
// environment variables win. A missing file is not an error.
func loadDotEnv(dir string) error {
	seen := map[string]bool{}
	for _, candidate := range []string{filepath.Join(dir, ".env"), ".env"} {
		abs, err := filepath.Abs(candidate)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if err := godotenv.Load(candidate); err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				continue
			}
			return errors.Config("invalid .env file: "+err.Error(),
				errors.WithCause(err), errors.WithMetadata("path", candidate))
		}
	}
	return nil
}

// resolveAPIKey fills APIKey from credentials.toml or the provider's
// environment variable when the config does not set one. A base_url in the
// provider's credentials table is used when the config has none.
func (c *Config) resolveAPIKey() error {
	if c.Provider == "" || (c.APIKey != "" && c.BaseURL != "") {
		return nil
	}
	creds, _, err := credentials.Load()
	if err != nil {
		return err
	}
	if c.APIKey == "" {
		c.APIKey = creds.GetAPIKey(c.Provider)
	}
	if c.BaseURL == "" {
		c.BaseURL = creds.BaseURL(c.Provider)
	}
	return nil
}

// Validate checks required fields and value ranges. Each failure names the
// offending setting in its "field" metadata.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return invalid("provider", "provider is required")
	}
	if !KnownProvider(c.Provider) {
		return invalid("provider", fmt.Sprintf("unknown provider %q", c.Provider),
			errors.WithMetadata("provider", c.Provider))
	}
	if c.Model == "" {
		return invalid("model", "model is required")
	}
	if c.APIKey == "" && !keyless[c.Provider] {
		return invalid("api_key", fmt.Sprintf("no API key for provider %q (set api_key or %s)",
			c.Provider, credentials.EnvVar(c.Provider)),
			errors.WithMetadata("provider", c.Provider))
	}
	if c.Provider == llm.ProviderOpenAICompat && c.BaseURL == "" {
		return invalid("base_url", "base_url is required for provider openai-compat")
	}
	if c.MaxTokens <= 0 {
		return invalid("max_tokens", fmt.Sprintf("max_tokens must be positive, got %d", c.MaxTokens))
	}
	if _, err := c.TimeoutDuration(); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		failure := errors.Classify(err)
		return invalid("log_level", failure.Message(), errors.WithCause(err))
	}
	if !telemetryProtocols[c.Telemetry.Protocol] {
		return invalid("telemetry.protocol", fmt.Sprintf("unknown telemetry protocol %q", c.Telemetry.Protocol),
			errors.WithMetadata("protocol", c.Telemetry.Protocol))
	}
	return nil
}

// invalid builds a Config failure about one setting.
func invalid(field, message string, opts ...errors.Option) *errors.Error {
	return errors.Config(message, append(opts, errors.WithMetadata("field", field))...)
}

// KnownProvider reports whether provider names a provider the SDK can
// classify faults for or resolve a key for.
func KnownProvider(provider string) bool {
	switch provider {
	case llm.ProviderAnthropic, llm.ProviderOpenAI, llm.ProviderOpenAICompat,
		llm.ProviderGoogle, llm.ProviderBedrock:
		return true
	}
	return credentials.Known(provider)
}

// TimeoutDuration parses Timeout.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, invalid("timeout", fmt.Sprintf("invalid timeout %q", c.Timeout), errors.WithCause(err))
	}
	if d <= 0 {
		return 0, invalid("timeout", fmt.Sprintf("timeout must be positive, got %s", c.Timeout))
	}
	return d, nil
}

// NewLogger returns a logger at the configured level.
func (c *Config) NewLogger() (*logging.Logger, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.New()
	logger.SetLevel(level)
	if c.Path != "" {
		logger.ConfigLoaded(c.Path, c.Provider, c.Model)
	}
	return logger, nil
}

// StartTelemetry installs the configured trace provider. It returns nil when
// telemetry is disabled; otherwise the caller shuts the provider down.
func (c *Config) StartTelemetry(ctx context.Context) (*telemetry.Provider, error) {
	t := c.Telemetry
	if !t.Enabled {
		return nil, nil
	}
	return telemetry.InitProvider(ctx, telemetry.ProviderConfig{
		ServiceName: t.ServiceName,
		Endpoint:    t.Endpoint,
		Protocol:    t.Protocol,
		Insecure:    t.Insecure,
		Debug:       t.Debug,
		Headers:     t.Headers,
	})
}
