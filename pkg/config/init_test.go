package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestInitConfig_Success(t *testing.T) {
	// XDG_CONFIG_HOME works on every platform; HOME is ignored on Windows.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	contentStr := string(content)
	for _, section := range []string{
		"# QueryKit Configuration File",
		"logging:",
		"cache:",
		"workers:",
		"preload:",
		"source:",
		"api:",
	} {
		if !strings.Contains(contentStr, section) {
			t.Errorf("Config file missing section: %s", section)
		}
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		t.Fatalf("Generated config is not valid YAML: %v", err)
	}
}

func TestInitConfig_AlreadyExists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}

	_, err := InitConfig(false)
	if err == nil {
		t.Fatal("Expected error when config already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected 'already exists' error, got: %v", err)
	}
}

func TestInitConfigToPath_Force(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "custom", "config.yaml")

	if err := InitConfigToPath(configPath, false); err != nil {
		t.Fatalf("First InitConfigToPath failed: %v", err)
	}
	first, _ := os.ReadFile(configPath)

	if err := InitConfigToPath(configPath, true); err != nil {
		t.Fatalf("InitConfigToPath with force failed: %v", err)
	}
	second, _ := os.ReadFile(configPath)

	if len(second) == 0 {
		t.Fatal("Recreated config file is empty")
	}
	if string(first) == string(second) {
		t.Error("Expected a fresh JWT secret on overwrite")
	}
}

func TestInitConfigToPath_Permissions(t *testing.T) {
	if os.PathSeparator == '\\' {
		t.Skip("file modes are not enforced on Windows")
	}
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	if err := InitConfigToPath(configPath, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}
	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Failed to stat config: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected mode 0600 for a file holding secrets, got %v", info.Mode().Perm())
	}
}

func TestGeneratedConfigIsLoadable(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	if err := InitConfigToPath(configPath, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected INFO log level in generated config, got %q", cfg.Logging.Level)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("Expected port 8080 in generated config, got %d", cfg.API.Port)
	}
	if cfg.Cache.StaleTime != 30*time.Second {
		t.Errorf("Expected stale_time 30s in generated config, got %v", cfg.Cache.StaleTime)
	}
	if cfg.Storage.MaxObjectSize != 16*MiB {
		t.Errorf("Expected max_object_size 16Mi in generated config, got %v", cfg.Storage.MaxObjectSize)
	}
}

func TestGeneratedConfigHasJWTSecret(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	if err := InitConfigToPath(configPath, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if len(cfg.API.JWT.Secret) != 64 {
		t.Errorf("Expected a 64-character JWT secret, got %d", len(cfg.API.JWT.Secret))
	}
}

func TestWriteConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Source = SourceConfig{
		Type: SourceREST,
		REST: RESTConfig{URL: "https://project.supabase.co", APIKey: "anon"},
	}
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	if err := WriteConfig(cfg, configPath, false); err != nil {
		t.Fatalf("WriteConfig failed: %v", err)
	}
	if err := WriteConfig(cfg, configPath, false); err == nil {
		t.Fatal("Expected error when config already exists")
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load written config: %v", err)
	}
	if loaded.Source.Type != SourceREST || loaded.Source.REST.URL != "https://project.supabase.co" {
		t.Errorf("Expected rest source to round-trip, got %+v", loaded.Source)
	}
}

func TestNewJWTSecret(t *testing.T) {
	a, err := NewJWTSecret()
	if err != nil {
		t.Fatalf("NewJWTSecret failed: %v", err)
	}
	b, _ := NewJWTSecret()
	if len(a) != 64 || a == b {
		t.Errorf("Expected distinct 64-character secrets, got %q and %q", a, b)
	}
}
