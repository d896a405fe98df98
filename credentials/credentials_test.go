package credentials

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/vinayprograms/aisdk/errors"
)

// writeCreds writes content to a credentials file with the given mode.
func writeCreds(t *testing.T, content string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.toml")
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, mode); err != nil {
		t.Fatal(err)
	}
	return path
}

// chdir moves into a fresh directory for the rest of the test.
func chdir(t *testing.T) {
	t.Helper()
	orig, _ := os.Getwd()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(orig) })
}

func TestStandardPaths(t *testing.T) {
	paths := StandardPaths()
	if len(paths) < 2 {
		t.Errorf("expected at least 2 standard paths, got %d", len(paths))
	}
	if paths[0] != "credentials.toml" {
		t.Errorf("first path should be credentials.toml, got %s", paths[0])
	}
	for _, p := range paths[1:] {
		if !strings.Contains(p, "aisdk") {
			t.Errorf("home path %s should live under an aisdk directory", p)
		}
	}
}

// =============================================================================
// Key resolution
// =============================================================================

func TestLoadFile_KeyResolution(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		provider string
		want     string
	}{
		{
			name:     "provider table",
			content:  "[anthropic]\napi_key = \"sk-ant-test123\"\n\n[openai]\napi_key = \"sk-openai-test456\"\n",
			provider: "openai",
			want:     "sk-openai-test456",
		},
		{
			name:     "generic llm table",
			content:  "[llm]\napi_key = \"generic-llm-key\"\n",
			provider: "my-custom-provider",
			want:     "generic-llm-key",
		},
		{
			name:     "provider overrides llm",
			content:  "[llm]\napi_key = \"generic-key\"\n\n[anthropic]\napi_key = \"anthropic-specific-key\"\n",
			provider: "anthropic",
			want:     "anthropic-specific-key",
		},
		{
			name:     "llm covers providers without a table",
			content:  "[llm]\napi_key = \"generic-key\"\n\n[anthropic]\napi_key = \"anthropic-specific-key\"\n",
			provider: "openai",
			want:     "generic-key",
		},
		{
			name:     "hyphenated provider name",
			content:  "[openrouter]\napi_key = \"openrouter-key\"\n",
			provider: "open-router",
			want:     "openrouter-key",
		},
		{
			name:     "table without a key falls through to llm",
			content:  "[ollama]\nbase_url = \"http://localhost:11434/v1\"\n\n[llm]\napi_key = \"generic-key\"\n",
			provider: "ollama",
			want:     "generic-key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds, err := LoadFile(writeCreds(t, tt.content, 0400))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := creds.GetAPIKey(tt.provider); got != tt.want {
				t.Errorf("GetAPIKey(%q) = %q, want %q", tt.provider, got, tt.want)
			}
		})
	}
}

func TestLookup_Source(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "env-groq")
	t.Setenv("ANTHROPIC_API_KEY", "env-anthropic")
	t.Setenv("NOBODY_API_KEY", "")

	creds := &Credentials{
		providers: map[string]*ProviderCreds{
			"anthropic": {APIKey: "file-key"},
		},
	}

	tests := []struct {
		provider string
		wantKey  string
		wantSrc  Source
	}{
		{"anthropic", "file-key", SourceFile},
		{"groq", "env-groq", SourceEnv},
		{"nobody", "", SourceNone},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			key, src := creds.Lookup(tt.provider)
			if key != tt.wantKey || src != tt.wantSrc {
				t.Errorf("Lookup(%q) = %q, %v, want %q, %v", tt.provider, key, src, tt.wantKey, tt.wantSrc)
			}
		})
	}
}

func TestGetAPIKey_NilCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-openai")

	var creds *Credentials
	if got := creds.GetAPIKey("openai"); got != "env-openai" {
		t.Errorf("GetAPIKey(openai) = %q, want %q", got, "env-openai")
	}
	if got := creds.BaseURL("openai"); got != "" {
		t.Errorf("BaseURL(openai) = %q, want empty", got)
	}
	if got := creds.Providers(); got != nil {
		t.Errorf("Providers() = %v, want nil", got)
	}
}

func TestEnvVar(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{"anthropic", "ANTHROPIC_API_KEY"},
		{"openai-compat", "OPENAI_API_KEY"},
		{"gemini", "GOOGLE_API_KEY"},
		{"deepseek", "DEEPSEEK_API_KEY"},
		{"my-llm", "MY_LLM_API_KEY"},
	}
	for _, tt := range tests {
		if got := EnvVar(tt.provider); got != tt.want {
			t.Errorf("EnvVar(%q) = %q, want %q", tt.provider, got, tt.want)
		}
	}
}

func TestBaseURL(t *testing.T) {
	content := `
[openrouter]
api_key = "or-key"
base_url = "https://openrouter.ai/api/v1"

[ollama]
base_url = "http://localhost:11434/v1"
`
	creds, err := LoadFile(writeCreds(t, content, 0400))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := creds.BaseURL("open-router"); got != "https://openrouter.ai/api/v1" {
		t.Errorf("BaseURL(open-router) = %q", got)
	}
	if got := creds.BaseURL("anthropic"); got != "" {
		t.Errorf("BaseURL(anthropic) = %q, want empty", got)
	}
	if got := creds.Providers(); len(got) != 2 || got[0] != "ollama" || got[1] != "openrouter" {
		t.Errorf("Providers() = %v", got)
	}
}

// =============================================================================
// Load failures
// =============================================================================

func TestLoadFile_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission check not applicable on Windows")
	}

	for _, mode := range []os.FileMode{0644, 0600, 0440} {
		t.Run(mode.String(), func(t *testing.T) {
			path := writeCreds(t, "[llm]\napi_key = \"secret-key\"\n", mode)

			_, err := LoadFile(path)
			if !stderrors.Is(err, ErrInsecurePermissions) {
				t.Fatalf("expected ErrInsecurePermissions, got %v", err)
			}
			if !errors.IsKind(err, errors.KindConfig) {
				t.Errorf("expected a config failure, got %v", err)
			}
			if got := errors.GetMetadata(err)["path"]; got != path {
				t.Errorf("path metadata = %q, want %q", got, path)
			}
		})
	}
}

func TestLoadFile_Failures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantKey string
	}{
		{"malformed toml", "[anthropic\napi_key = 1", ""},
		{"wrong value type", "[anthropic]\napi_key = 1\n", ""},
		{"unknown key", "[anthropic]\napi_key = \"k\"\norg = \"acme\"\n", "anthropic.org"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeCreds(t, tt.content, 0400))
			if !errors.IsKind(err, errors.KindConfig) {
				t.Fatalf("expected a config failure, got %v", err)
			}
			if errors.IsRetryable(err) {
				t.Error("a broken credentials file should not be retryable")
			}
			if tt.wantKey != "" {
				if got := errors.GetMetadata(err)["key"]; got != tt.wantKey {
					t.Errorf("key metadata = %q, want %q", got, tt.wantKey)
				}
			}
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	_, err := LoadFile(path)
	if !errors.IsKind(err, errors.KindConfig) {
		t.Fatalf("expected a config failure, got %v", err)
	}
	if !stderrors.Is(err, os.ErrNotExist) {
		t.Errorf("expected the stat error as cause, got %v", errors.Cause(err))
	}
}

// =============================================================================
// Standard locations
// =============================================================================

func TestLoad_NoFile(t *testing.T) {
	chdir(t)
	t.Setenv("HOME", t.TempDir())

	creds, path, err := Load()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if creds != nil || path != "" {
		t.Errorf("Load() = %v, %q, want nothing", creds, path)
	}
}

func TestLoad_FromCurrentDir(t *testing.T) {
	chdir(t)
	os.WriteFile("credentials.toml", []byte("[llm]\napi_key = \"from-current-dir\"\n"), 0400)

	creds, path, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "credentials.toml" {
		t.Errorf("path = %q, want %q", path, "credentials.toml")
	}
	if got := creds.GetAPIKey("any"); got != "from-current-dir" {
		t.Errorf("GetAPIKey(any) = %q", got)
	}
}

func TestLoad_ReportsPathOfBrokenFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission check not applicable on Windows")
	}
	chdir(t)
	os.WriteFile("credentials.toml", []byte("[llm]\napi_key = \"k\"\n"), 0644)

	_, path, err := Load()
	if !stderrors.Is(err, ErrInsecurePermissions) {
		t.Fatalf("expected ErrInsecurePermissions, got %v", err)
	}
	if path != "credentials.toml" {
		t.Errorf("path = %q, want %q", path, "credentials.toml")
	}
}
