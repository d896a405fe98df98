// Package credentials resolves provider API keys from credentials.toml and
// the environment.
//
// A credentials file holds one table per provider plus an optional [llm]
// table used when no provider table matches:
//
//	[anthropic]
//	api_key = "sk-ant-..."
//
//	[ollama]
//	base_url = "http://localhost:11434/v1"
//
//	[llm]
//	api_key = "..."
//
// The file must be mode 0400. Every load failure is a Config failure.
package credentials

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/vinayprograms/aisdk/errors"
)

// ErrInsecurePermissions is the cause of the Config failure returned when a
// credentials file is readable or writable by anyone but its owner.
var ErrInsecurePermissions = stderrors.New("credentials file has insecure permissions")

// genericSection names the table consulted when a provider has none.
const genericSection = "llm"

// Source says where a key was found.
type Source string

const (
	SourceFile Source = "file"
	SourceEnv  Source = "env"
	SourceNone Source = "none"
)

// Credentials holds the provider tables of a credentials file.
type Credentials struct {
	// LLM is the [llm] table, used when a provider has no table of its own.
	LLM *ProviderCreds

	providers map[string]*ProviderCreds
}

// ProviderCreds is one provider table.
type ProviderCreds struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// envVars maps providers to the variable their own SDKs read.
var envVars = map[string]string{
	"anthropic":     "ANTHROPIC_API_KEY",
	"openai":        "OPENAI_API_KEY",
	"openai-compat": "OPENAI_API_KEY",
	"google":        "GOOGLE_API_KEY",
	"gemini":        "GOOGLE_API_KEY",
	"deepseek":      "DEEPSEEK_API_KEY",
	"openrouter":    "OPENROUTER_API_KEY",
	"mistral":       "MISTRAL_API_KEY",
	"groq":          "GROQ_API_KEY",
}

// StandardPaths returns the credential file locations in order of priority:
// the working directory, ~/.config/aisdk, then ~/.aisdk.
func StandardPaths() []string {
	paths := []string{"credentials.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "aisdk", "credentials.toml"),
			filepath.Join(home, ".aisdk", "credentials.toml"),
		)
	}
	return paths
}

// Load loads the first credentials file found in StandardPaths. It returns
// nil credentials and an empty path when there is none.
func Load() (*Credentials, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		creds, err := LoadFile(path)
		return creds, path, err
	}
	return nil, "", nil
}

// LoadFile loads credentials from a specific file. Every failure is a Config
// failure; one caused by file permissions matches ErrInsecurePermissions
// under errors.Is.
func LoadFile(path string) (*Credentials, error) {
	if err := checkPermissions(path); err != nil {
		return nil, err
	}

	var tables map[string]*ProviderCreds
	md, err := toml.DecodeFile(path, &tables)
	if err != nil {
		return nil, errors.Config("invalid credentials file: "+err.Error(),
			errors.WithCause(err), errors.WithMetadata("path", path))
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		key := undecoded[0].String()
		return nil, errors.Config(fmt.Sprintf("unknown key %q in credentials file", key),
			errors.WithMetadata("path", path), errors.WithMetadata("key", key))
	}

	creds := &Credentials{providers: make(map[string]*ProviderCreds, len(tables))}
	for name, table := range tables {
		if table == nil {
			continue
		}
		if name == genericSection {
			creds.LLM = table
			continue
		}
		creds.providers[name] = table
	}
	return creds, nil
}

func checkPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Config("cannot read credentials: "+err.Error(),
			errors.WithCause(err), errors.WithMetadata("path", path))
	}
	if runtime.GOOS == "windows" {
		return nil
	}
	if mode := info.Mode().Perm(); mode != 0400 {
		return errors.Config(fmt.Sprintf("%s has mode %04o (must be 0400)", path, mode),
			errors.WithCause(ErrInsecurePermissions), errors.WithMetadata("path", path))
	}
	return nil
}

// Providers returns the names of the provider tables, sorted.
func (c *Credentials) Providers() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.providers))
	for name := range c.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// table returns the provider's own table, matching "open-router" against
// [openrouter].
func (c *Credentials) table(provider string) *ProviderCreds {
	if c == nil {
		return nil
	}
	if t, ok := c.providers[provider]; ok {
		return t
	}
	return c.providers[strings.ToLower(strings.ReplaceAll(provider, "-", ""))]
}

// Lookup returns the API key for a provider and where it came from.
// Priority: [provider] table, then [llm], then the provider's environment
// variable.
func (c *Credentials) Lookup(provider string) (string, Source) {
	if t := c.table(provider); t != nil && t.APIKey != "" {
		return t.APIKey, SourceFile
	}
	if c != nil && c.LLM != nil && c.LLM.APIKey != "" {
		return c.LLM.APIKey, SourceFile
	}
	if key := os.Getenv(EnvVar(provider)); key != "" {
		return key, SourceEnv
	}
	return "", SourceNone
}

// GetAPIKey returns the API key for a provider, or "" when none is set.
func (c *Credentials) GetAPIKey(provider string) string {
	key, _ := c.Lookup(provider)
	return key
}

// BaseURL returns the base_url of the provider's table, if any.
func (c *Credentials) BaseURL(provider string) string {
	if t := c.table(provider); t != nil {
		return t.BaseURL
	}
	return ""
}

// Known reports whether provider has a standard key variable.
func Known(provider string) bool {
	_, ok := envVars[provider]
	return ok
}

// EnvVar returns the environment variable holding a provider's key. Unknown
// providers use PROVIDER_API_KEY.
func EnvVar(provider string) string {
	if name, ok := envVars[provider]; ok {
		return name
	}
	return strings.ToUpper(strings.ReplaceAll(provider, "-", "_")) + "_API_KEY"
}
