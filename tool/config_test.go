package tool

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/moyoez/gfpgan-client/types"
)

func TestLoadConfigCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected the default config to be written: %v", err)
	}
	if cfg.ReconnectDelay != DefaultReconnectDelay || cfg.Endpoints.Status != "/initialize_models" {
		t.Errorf("Unexpected defaults %+v", cfg)
	}

	again, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Reloading failed: %v", err)
	}
	if again.ServerURL != cfg.ServerURL || again.RequestTimeout != cfg.RequestTimeout {
		t.Errorf("Expected a round trip of the defaults, got %+v", again)
	}
}

func TestLoadConfigFillsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "serverURL: http://gpu-box:7860/\nreconnectDelay: 5s\nendpoints:\n  process: /api/process\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.ServerURL != "http://gpu-box:7860" {
		t.Errorf("Expected the trailing slash trimmed, got %q", cfg.ServerURL)
	}
	if cfg.ReconnectDelay != 5*time.Second {
		t.Errorf("Expected 5s reconnect delay, got %s", cfg.ReconnectDelay)
	}
	if cfg.Endpoints.Process != "/api/process" || cfg.Endpoints.Clear != "/clear" {
		t.Errorf("Unexpected endpoints %+v", cfg.Endpoints)
	}
}

func TestLoadConfigRejectsDirectory(t *testing.T) {
	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Error("Expected an error for a directory")
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := DefaultConfig()
	ApplyFlags(&cfg, types.Config{
		UseServerURL:      "http://10.0.0.2:5000",
		UseListenPort:     8080,
		UseDownloadFolder: "/tmp/out",
		UseBgUpscale:      true,
		SkipNotify:        true,
	})
	if cfg.ServerURL != "http://10.0.0.2:5000" || cfg.ListenPort != 8080 || cfg.DownloadFolder != "/tmp/out" {
		t.Errorf("Flags not applied: %+v", cfg)
	}
	if !cfg.BackgroundUpscale || cfg.NotifySocketPath != "" {
		t.Errorf("Expected bg upscale on and the socket disabled, got %+v", cfg)
	}
	if GetCurrentConfig().ListenPort != 8080 {
		t.Error("Expected the current config to follow ApplyFlags")
	}
}
