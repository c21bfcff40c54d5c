package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}

	// Check storage defaults
	if cfg.Storage.Dir == "" {
		t.Error("DefaultConfig() Storage.Dir is empty")
	}
	if cfg.Storage.SnapshotFile != "campfire_logs.json" {
		t.Errorf("DefaultConfig() Storage.SnapshotFile = %v, want campfire_logs.json", cfg.Storage.SnapshotFile)
	}

	// Check archive defaults
	if !cfg.Archive.Enabled {
		t.Error("DefaultConfig() Archive.Enabled = false, want true")
	}
	if cfg.Archive.RetentionSize != "500MB" {
		t.Errorf("DefaultConfig() Archive.RetentionSize = %v, want 500MB", cfg.Archive.RetentionSize)
	}
	if cfg.Archive.RetentionDays != 7 {
		t.Errorf("DefaultConfig() Archive.RetentionDays = %v, want 7", cfg.Archive.RetentionDays)
	}

	// Check server defaults
	if cfg.Server.Port != 8080 {
		t.Errorf("DefaultConfig() Server.Port = %v, want 8080", cfg.Server.Port)
	}

	// Check log defaults
	if cfg.Logs.MinLevel != "DEBUG" {
		t.Errorf("DefaultConfig() Logs.MinLevel = %v, want DEBUG", cfg.Logs.MinLevel)
	}
	if cfg.Logs.Format != "auto" {
		t.Errorf("DefaultConfig() Logs.Format = %v, want auto", cfg.Logs.Format)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	// Loading a non-existent file should return default config, not an error
	cfg, err := Load("/nonexistent/config.toml")
	if err != nil {
		t.Errorf("Load() with non-existent file returned error = %v", err)
	}

	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}

	// Should match default config
	defaultCfg := DefaultConfig()
	if cfg.Archive.RetentionSize != defaultCfg.Archive.RetentionSize {
		t.Errorf("Load() non-existent file Archive.RetentionSize = %v, want %v", cfg.Archive.RetentionSize, defaultCfg.Archive.RetentionSize)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[storage]
dir = "/custom/storage"
snapshot_file = "custom.json"

[archive]
enabled = false
db_path = "/custom/archive"
retention_size = "2GB"
retention_days = 14

[server]
port = 9090

[logs]
min_level = "WARNING"
format = "json"
`

	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.Dir != "/custom/storage" {
		t.Errorf("Storage.Dir = %v, want /custom/storage", cfg.Storage.Dir)
	}
	if cfg.Storage.SnapshotFile != "custom.json" {
		t.Errorf("Storage.SnapshotFile = %v, want custom.json", cfg.Storage.SnapshotFile)
	}
	if cfg.Archive.Enabled {
		t.Error("Archive.Enabled = true, want false")
	}
	if cfg.Archive.RetentionSize != "2GB" {
		t.Errorf("Archive.RetentionSize = %v, want 2GB", cfg.Archive.RetentionSize)
	}
	if cfg.Archive.RetentionDays != 14 {
		t.Errorf("Archive.RetentionDays = %v, want 14", cfg.Archive.RetentionDays)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %v, want 9090", cfg.Server.Port)
	}
	if cfg.Logs.MinLevel != "WARNING" {
		t.Errorf("Logs.MinLevel = %v, want WARNING", cfg.Logs.MinLevel)
	}
}

func TestLoad_PartialFile(t *testing.T) {
	// Unspecified sections keep their defaults
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[server]
port = 3000
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %v, want 3000", cfg.Server.Port)
	}
	if cfg.Archive.RetentionSize != "500MB" {
		t.Errorf("Archive.RetentionSize = %v, want default 500MB", cfg.Archive.RetentionSize)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	if err := os.WriteFile(configPath, []byte("this is not [valid toml"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Load() with invalid TOML returned nil error")
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"1GB", 1024 * 1024 * 1024, false},
		{"500MB", 500 * 1024 * 1024, false},
		{"10KB", 10 * 1024, false},
		{"1.5GB", int64(1.5 * 1024 * 1024 * 1024), false},
		{"  2mb ", 2 * 1024 * 1024, false},
		{"100", 0, true},
		{"abcMB", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestGetRetentionSizeBytes(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.GetRetentionSizeBytes(); got != 500*1024*1024 {
		t.Errorf("GetRetentionSizeBytes() = %d, want %d", got, 500*1024*1024)
	}

	cfg.Archive.RetentionSize = "garbage"
	if got := cfg.GetRetentionSizeBytes(); got != 500*1024*1024 {
		t.Errorf("GetRetentionSizeBytes() fallback = %d, want %d", got, 500*1024*1024)
	}
}
