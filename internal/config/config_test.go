package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadNoConfigFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Path == "" {
		t.Fatal("expected a default storage path")
	}
	if cfg.Upload.Threads != 4 {
		t.Fatalf("expected default upload thread count 4, got %d", cfg.Upload.Threads)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
storage:
  path: /data/media
  minute_resolution: 5
upload:
  threads: 8
maintainers:
  deletion:
    window: "mo[00:00..06:00]"
  compression:
    window: "mo[00:00..06:00]"
  record_reconciler:
    window: "mo[00:00..06:00]"
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Path != "/data/media" {
		t.Fatalf("expected overridden storage path, got %q", cfg.Storage.Path)
	}
	if cfg.Upload.Threads != 8 {
		t.Fatalf("expected overridden thread count, got %d", cfg.Upload.Threads)
	}
	// Untouched sections still pick up defaults.
	if cfg.Rules.MaxCacheTime == 0 {
		t.Fatal("expected a default max cache time")
	}
}

func TestLoadEnvironmentVariableOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  path: /data/media\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("MEDIASTORAGE_STORAGE_PATH", "/override/path")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Path != "/override/path" {
		t.Fatalf("expected env var to override file value, got %q", cfg.Storage.Path)
	}
}

func TestGetDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected default config to validate, got: %v", err)
	}
}

func TestValidateRejectsMissingMaintenanceWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Maintainers.Deletion.Window = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation to fail for an empty deletion window")
	}
}

func TestValidateAllowsEmptyFileReconcilerWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Maintainers.FileReconciler.Window = ""
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected an empty file reconciler window to validate (means disabled), got: %v", err)
	}
}

func TestValidateRejectsInvalidLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "NONSENSE"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation to reject an invalid log level")
	}
}

func TestGetDefaultConfigPathUnderXDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path := GetDefaultConfigPath()
	if filepath.Dir(path) != filepath.Join(dir, "mediastorage") {
		t.Fatalf("unexpected config dir: %s", path)
	}
}

func TestSaveConfigRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Storage.Path = "/srv/media"
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load saved config: %v", err)
	}
	if loaded.Storage.Path != "/srv/media" {
		t.Fatalf("expected saved storage path to round-trip, got %q", loaded.Storage.Path)
	}
}
