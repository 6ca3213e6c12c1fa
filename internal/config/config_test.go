package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// DatabaseConfig.GetDSN
// ---------------------------------------------------------------------------

func TestGetDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "standard config",
			cfg: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "recordstore",
				Password: "secret",
				Name:     "recordstore",
				SSLMode:  "require",
			},
			want: "host=localhost port=5432 user=recordstore password=secret dbname=recordstore sslmode=require",
		},
		{
			name: "empty password",
			cfg: DatabaseConfig{
				Host:    "db.example.com",
				Port:    5433,
				User:    "admin",
				Name:    "records",
				SSLMode: "disable",
			},
			want: "host=db.example.com port=5433 user=admin password= dbname=records sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetDSN(); got != tt.want {
				t.Errorf("GetDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetAddress(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{"default", ServerConfig{Host: "0.0.0.0", Port: 3000}, "0.0.0.0:3000"},
		{"empty host", ServerConfig{Port: 8080}, ":8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetAddress(); got != tt.want {
				t.Errorf("GetAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Config.Validate
// ---------------------------------------------------------------------------

func minimalValidConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 3000},
		Store: StoreConfig{
			Backend:      "blob",
			DocumentName: "database.json",
			KeyPrefix:    "sk_live_",
		},
		Storage: StorageConfig{
			DefaultBackend: "local",
			Local:          LocalStorageConfig{BasePath: "./data"},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid minimal config", func(*Config) {}, false},
		{"port 0", func(c *Config) { c.Server.Port = 0 }, true},
		{"port 70000", func(c *Config) { c.Server.Port = 70000 }, true},
		{"unknown store backend", func(c *Config) { c.Store.Backend = "redis" }, true},
		{"blob without document name", func(c *Config) { c.Store.DocumentName = "" }, true},
		{"empty key prefix", func(c *Config) { c.Store.KeyPrefix = "" }, true},
		{"invalid storage backend", func(c *Config) { c.Storage.DefaultBackend = "ftp" }, true},
		{"local missing base_path", func(c *Config) { c.Storage.Local.BasePath = "" }, true},
		{"s3 missing bucket", func(c *Config) {
			c.Storage.DefaultBackend = "s3"
			c.Storage.S3 = S3StorageConfig{Region: "us-east-1"}
		}, true},
		{"s3 missing region", func(c *Config) {
			c.Storage.DefaultBackend = "s3"
			c.Storage.S3 = S3StorageConfig{Bucket: "records"}
		}, true},
		{"valid s3", func(c *Config) {
			c.Storage.DefaultBackend = "s3"
			c.Storage.S3 = S3StorageConfig{Bucket: "records", Region: "us-east-1"}
		}, false},
		{"azure missing account_key", func(c *Config) {
			c.Storage.DefaultBackend = "azure"
			c.Storage.Azure = AzureStorageConfig{AccountName: "acct", ContainerName: "c"}
		}, true},
		{"valid azure", func(c *Config) {
			c.Storage.DefaultBackend = "azure"
			c.Storage.Azure = AzureStorageConfig{AccountName: "acct", AccountKey: "k", ContainerName: "c"}
		}, false},
		{"gcs missing bucket", func(c *Config) { c.Storage.DefaultBackend = "gcs" }, true},
		{"postgres ignores storage", func(c *Config) {
			c.Store.Backend = "postgres"
			c.Storage.DefaultBackend = ""
			c.Database = DatabaseConfig{Host: "localhost", Name: "rs", User: "rs"}
		}, false},
		{"postgres missing host", func(c *Config) {
			c.Store.Backend = "postgres"
			c.Database = DatabaseConfig{Name: "rs", User: "rs"}
		}, true},
		{"sqlite missing path", func(c *Config) { c.Store.Backend = "sqlite" }, true},
		{"sqlite with path", func(c *Config) {
			c.Store.Backend = "sqlite"
			c.SQLite.Path = "/tmp/rs.db"
		}, false},
		{"session required but disabled", func(c *Config) { c.Auth.Session.Required = true }, true},
		{"tls missing cert", func(c *Config) { c.Security.TLS = TLSConfig{Enabled: true, KeyFile: "k.pem"} }, true},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := minimalValidConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("Validate() expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("Load() with a missing explicit file should fail, got %+v", cfg)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("default port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Store.KeyPrefix != "sk_live_" {
		t.Errorf("default key prefix = %q, want sk_live_", cfg.Store.KeyPrefix)
	}
	if cfg.Store.DocumentName != "database.json" {
		t.Errorf("default document name = %q", cfg.Store.DocumentName)
	}
	if cfg.Server.MaxBodyBytes != 10<<20 {
		t.Errorf("default max body = %d, want 10MiB", cfg.Server.MaxBodyBytes)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("file value not applied: level = %q", cfg.Logging.Level)
	}
	if cfg.Jobs.KeyStatsInterval != time.Minute {
		t.Errorf("default key stats interval = %v", cfg.Jobs.KeyStatsInterval)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 4000\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("RS_STORE_KEY_PREFIX", "sk_test_")
	t.Setenv("RS_STORAGE_LOCAL_BASE_PATH", "/var/lib/rs")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("port = %d, want 4000 from file", cfg.Server.Port)
	}
	if cfg.Store.KeyPrefix != "sk_test_" {
		t.Errorf("key prefix = %q, want sk_test_", cfg.Store.KeyPrefix)
	}
	if cfg.Storage.Local.BasePath != "/var/lib/rs" {
		t.Errorf("base path = %q", cfg.Storage.Local.BasePath)
	}

	t.Setenv("PORT", "5050")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 5050 {
		t.Errorf("PORT override: port = %d, want 5050", cfg.Server.Port)
	}

	t.Setenv("PORT", "not-a-port")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for non-numeric PORT")
	}
}

// ---------------------------------------------------------------------------
// expandEnv
// ---------------------------------------------------------------------------

func TestExpandEnv(t *testing.T) {
	t.Setenv("CONFIG_TEST_SECRET", "super-secret")
	if got := expandEnv("${CONFIG_TEST_SECRET}"); got != "super-secret" {
		t.Errorf("expandEnv() = %q, want %q", got, "super-secret")
	}
	if got := expandEnv("no-vars-here"); got != "no-vars-here" {
		t.Errorf("expandEnv() = %q", got)
	}
	os.Unsetenv("CONFIG_TEST_DEFINITELY_UNSET_12345")
	if got := expandEnv("${CONFIG_TEST_DEFINITELY_UNSET_12345}"); got != "" {
		t.Errorf("expandEnv() = %q, want empty string", got)
	}
}

func TestWebConfig_AssetRoot(t *testing.T) {
	tests := []struct {
		name string
		cfg  WebConfig
		want string
	}{
		{"nothing configured", WebConfig{}, ""},
		{"derived from index", WebConfig{IndexPath: filepath.Join("site", "index.html")}, "site"},
		{"explicit root wins", WebConfig{IndexPath: filepath.Join("site", "index.html"), Root: "assets"}, "assets"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.AssetRoot(); got != tt.want {
				t.Errorf("AssetRoot() = %q, want %q", got, tt.want)
			}
		})
	}
}
