package tool

import (
	"flag"

	"github.com/moyoez/gfpgan-client/types"
)

// SetFlags parses CLI flags and returns the override config.
// Remaining positional arguments are files to submit once.
func SetFlags() types.Config {
	var cfg types.Config
	flag.StringVar(&cfg.Log, "log", "", "log mode: dev|prod|none")
	flag.StringVar(&cfg.UseConfigPath, "useConfigPath", "", "override config file path")
	flag.StringVar(&cfg.UseServerURL, "useServerURL", "", "override processing server base URL, e.g. http://127.0.0.1:5000")
	flag.IntVar(&cfg.UseListenPort, "useListenPort", 0, "serve the local control API on this port")
	flag.StringVar(&cfg.UseDownloadFolder, "useDownloadFolder", "", "override folder for downloaded results")
	flag.BoolVar(&cfg.UseBgUpscale, "useBgUpscale", false, "enable the background upscaling pass")
	flag.BoolVar(&cfg.SkipNotify, "skipNotify", false, "do not forward notifications to the unix socket")
	flag.BoolVar(&cfg.SkipStatus, "skipStatus", false, "do not open the model status stream")
	flag.BoolVar(&cfg.UseProbe, "useProbe", false, "ping the processing host before starting")
	flag.Parse()
	cfg.Files = flag.Args()
	return cfg
}
