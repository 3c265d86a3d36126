package types

import "time"

// AppConfig represents the application configuration loaded from config file
type AppConfig struct {
	ServerURL         string        `yaml:"serverURL"`
	Endpoints         Endpoints     `yaml:"endpoints"`
	RequestTimeout    time.Duration `yaml:"requestTimeout"`
	ReconnectDelay    time.Duration `yaml:"reconnectDelay"`  // fixed delay between stream retries, no backoff
	DownloadFolder    string        `yaml:"downloadFolder"`  // where download-all archives and artifacts are saved
	ListenPort        int           `yaml:"listenPort"`      // local control server, 0 disables it
	BackgroundUpscale bool          `yaml:"backgroundUpscale"`
	NotifySocketPath  string        `yaml:"notifySocketPath,omitempty"`
	NotifyWebsocket   bool          `yaml:"notifyWebsocket"`
	ArtifactCacheTTL  time.Duration `yaml:"artifactCacheTTL"`
	Probe             bool          `yaml:"probe,omitempty"`
}

// Endpoints holds the processing server paths, relative to ServerURL.
type Endpoints struct {
	Process     string `yaml:"process"`
	Status      string `yaml:"status"`
	Remove      string `yaml:"remove"`
	Clear       string `yaml:"clear"`
	DownloadAll string `yaml:"downloadAll"`
	Output      string `yaml:"output"`
	Info        string `yaml:"info"`
}

// Config holds runtime overrides from CLI flags
type Config struct {
	Log               string
	UseConfigPath     string
	UseServerURL      string
	UseListenPort     int
	UseDownloadFolder string
	UseBgUpscale      bool
	SkipNotify        bool // if true, do not forward notifications to the unix socket.
	SkipStatus        bool // if true, do not open the model status stream.
	UseProbe          bool
	Files             []string // positional args, submitted once in one-shot mode.
}
