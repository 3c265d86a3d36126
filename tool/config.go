package tool

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/moyoez/gfpgan-client/types"
)

var (
	ConfigPath    = "config.yaml" // be aware that it can be changed, default to ./config.yaml
	CurrentConfig types.AppConfig
)

const (
	DefaultReconnectDelay   = 3 * time.Second
	DefaultArtifactCacheTTL = 10 * time.Minute
	DefaultNotifySocketPath = "/tmp/gfpgan-notify.sock"
)

// DefaultEndpoints are the paths served by the GFPGAN web UI backend.
func DefaultEndpoints() types.Endpoints {
	return types.Endpoints{
		Process:     "/process",
		Status:      "/initialize_models",
		Remove:      "/remove",
		Clear:       "/clear",
		DownloadAll: "/download_all",
		Output:      "/output",
		Info:        "/api/info",
	}
}

func DefaultConfig() types.AppConfig {
	return types.AppConfig{
		ServerURL:         "http://127.0.0.1:5000",
		Endpoints:         DefaultEndpoints(),
		RequestTimeout:    10 * time.Minute, // archive downloads; submits are not bounded by it
		ReconnectDelay:    DefaultReconnectDelay,
		DownloadFolder:    "output",
		ListenPort:        0,
		BackgroundUpscale: false,
		NotifySocketPath:  DefaultNotifySocketPath,
		NotifyWebsocket:   true,
		ArtifactCacheTTL:  DefaultArtifactCacheTTL,
	}
}

func LoadConfig(path string) (types.AppConfig, error) {
	if path == "" {
		path = ConfigPath
	}
	ConfigPath = path

	cfg := DefaultConfig()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if writeErr := writeDefaultConfig(path, cfg); writeErr != nil {
				return cfg, fmt.Errorf("config file not found, and failed to generate default config: %v", writeErr)
			}
			DefaultLogger.Infof("Created new config file at %s", path)
			CurrentConfig = cfg
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if info.IsDir() {
		return cfg, fmt.Errorf("config file path is a directory: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %v", err)
	}
	normalizeConfig(&cfg)

	CurrentConfig = cfg
	return cfg, nil
}

// ApplyFlags merges CLI overrides into cfg; flags win over the file.
func ApplyFlags(cfg *types.AppConfig, flags types.Config) {
	if flags.UseServerURL != "" {
		cfg.ServerURL = flags.UseServerURL
	}
	if flags.UseListenPort > 0 {
		cfg.ListenPort = flags.UseListenPort
	}
	if flags.UseDownloadFolder != "" {
		cfg.DownloadFolder = flags.UseDownloadFolder
	}
	if flags.UseBgUpscale {
		cfg.BackgroundUpscale = true
	}
	if flags.SkipNotify {
		cfg.NotifySocketPath = ""
	}
	if flags.UseProbe {
		cfg.Probe = true
	}
	normalizeConfig(cfg)
	CurrentConfig = *cfg
}

// normalizeConfig fills zero values left by a partial config file.
func normalizeConfig(cfg *types.AppConfig) {
	def := DefaultEndpoints()
	ep := &cfg.Endpoints
	for _, f := range []struct {
		field *string
		value string
	}{
		{&ep.Process, def.Process},
		{&ep.Status, def.Status},
		{&ep.Remove, def.Remove},
		{&ep.Clear, def.Clear},
		{&ep.DownloadAll, def.DownloadAll},
		{&ep.Output, def.Output},
		{&ep.Info, def.Info},
	} {
		if strings.TrimSpace(*f.field) == "" {
			*f.field = f.value
		}
	}
	cfg.ServerURL = strings.TrimRight(strings.TrimSpace(cfg.ServerURL), "/")
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.ArtifactCacheTTL <= 0 {
		cfg.ArtifactCacheTTL = DefaultArtifactCacheTTL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultTimeout
	}
}

func writeDefaultConfig(path string, cfg types.AppConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func GetCurrentConfig() *types.AppConfig {
	return &CurrentConfig
}
