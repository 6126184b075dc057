package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CODENEXUS_HOME", tmpDir)

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HomeDir != tmpDir {
		t.Errorf("HomeDir = %q, want %q", cfg.HomeDir, tmpDir)
	}
	if cfg.View.PageSize != 50 {
		t.Errorf("View.PageSize = %d, want 50", cfg.View.PageSize)
	}
	if cfg.Email.BatchSize != 100 || cfg.Email.Mode != "bcc" || cfg.Email.AutoDispatch {
		t.Errorf("Email = %+v, want batch 100, bcc, manual", cfg.Email)
	}
	if cfg.Cache.QuotaBytes != DefaultQuotaBytes || cfg.Cache.Disabled {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Firestore.Database != "(default)" || cfg.Firestore.RateLimitQPS != 10 {
		t.Errorf("Firestore = %+v", cfg.Firestore)
	}
	if got := cfg.CachePath(); got != filepath.Join(tmpDir, "cache.db") {
		t.Errorf("CachePath() = %q", got)
	}
}

func TestLoad_File(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeConfig(t, tmpDir, `
[admin]
email = " admin@codenexus.dev "

[firestore]
project_id = "codenexus-prod"
rate_limit_qps = 2.5

[oauth]
client_secrets = "~/secrets/client.json"

[cache]
quota_bytes = 1048576
disabled = true

[view]
page_size = 25

[email]
batch_size = 40
auto_dispatch = true
mode = "personalized"
`)

	cfg, err := Load(path, tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Admin.Email != "admin@codenexus.dev" {
		t.Errorf("Admin.Email = %q", cfg.Admin.Email)
	}
	if cfg.Firestore.ProjectID != "codenexus-prod" || cfg.Firestore.RateLimitQPS != 2.5 {
		t.Errorf("Firestore = %+v", cfg.Firestore)
	}
	if strings.HasPrefix(cfg.OAuth.ClientSecrets, "~") || !strings.HasSuffix(cfg.OAuth.ClientSecrets, filepath.Join("secrets", "client.json")) {
		t.Errorf("ClientSecrets = %q, want expanded path", cfg.OAuth.ClientSecrets)
	}
	if cfg.Cache.QuotaBytes != 1<<20 || !cfg.Cache.Disabled {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.View.PageSize != 25 {
		t.Errorf("View.PageSize = %d", cfg.View.PageSize)
	}
	if cfg.Email.BatchSize != 40 || !cfg.Email.AutoDispatch || cfg.Email.Mode != "personalized" {
		t.Errorf("Email = %+v", cfg.Email)
	}
	if err := cfg.RequireRemote(); err != nil {
		t.Errorf("RequireRemote() = %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `
[admin]
email = "file@codenexus.dev"

[firestore]
project_id = "from-file"
`)
	t.Setenv("CODENEXUS_HOME", tmpDir)
	t.Setenv("CODENEXUS_ADMIN_EMAIL", "env@codenexus.dev")
	t.Setenv("CODENEXUS_CACHE_QUOTA_BYTES", "2048")
	t.Setenv("CODENEXUS_RATE_LIMIT_QPS", "0")

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Admin.Email != "env@codenexus.dev" {
		t.Errorf("Admin.Email = %q, want env value", cfg.Admin.Email)
	}
	if cfg.Firestore.ProjectID != "from-file" {
		t.Errorf("ProjectID = %q, unset env must not clear it", cfg.Firestore.ProjectID)
	}
	if cfg.Cache.QuotaBytes != 2048 {
		t.Errorf("QuotaBytes = %d, want 2048", cfg.Cache.QuotaBytes)
	}
	if cfg.Firestore.RateLimitQPS != 0 {
		t.Errorf("RateLimitQPS = %v, want 0", cfg.Firestore.RateLimitQPS)
	}
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("CODENEXUS_HOME", t.TempDir())
	t.Setenv("CODENEXUS_CACHE_QUOTA_BYTES", "lots")
	if _, err := Load("", ""); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	tmpDir := t.TempDir()
	if _, err := Load(filepath.Join(tmpDir, "nope.toml"), tmpDir); err == nil {
		t.Fatal("expected error for missing --config file")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"page size", "[view]\npage_size = 0\n", "page_size"},
		{"batch size", "[email]\nbatch_size = -1\n", "batch_size"},
		{"mode", "[email]\nmode = \"carrier-pigeon\"\n", "email.mode"},
		{"syntax", "[view\n", "decode config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			path := writeConfig(t, tmpDir, tt.content)
			_, err := Load(path, tmpDir)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestRequireRemote(t *testing.T) {
	cfg := &Config{ConfigPath: "/x/config.toml", Admin: AdminConfig{Email: "a@b.c"}}
	err := cfg.RequireRemote()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"firestore.project_id", "oauth.client_secrets"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err, want)
		}
	}
	if strings.Contains(err.Error(), "admin.email") {
		t.Errorf("error %q should not mention admin.email", err)
	}
}

func TestEnsureHomeDir(t *testing.T) {
	home := filepath.Join(t.TempDir(), "nested", "home")
	cfg := &Config{HomeDir: home}
	if err := cfg.EnsureHomeDir(); err != nil {
		t.Fatalf("EnsureHomeDir() = %v", err)
	}
	if info, err := os.Stat(home); err != nil || !info.IsDir() {
		t.Fatalf("home not created: %v", err)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"/abs/path", "/abs/path"},
		{"~", home},
		{"~/x/y", filepath.Join(home, "x", "y")},
		{"~other/x", "~other/x"},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
