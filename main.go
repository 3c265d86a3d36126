package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moyoez/gfpgan-client/api"
	"github.com/moyoez/gfpgan-client/api/notifyhub"
	"github.com/moyoez/gfpgan-client/app"
	"github.com/moyoez/gfpgan-client/fileset"
	"github.com/moyoez/gfpgan-client/session"
	"github.com/moyoez/gfpgan-client/status"
	"github.com/moyoez/gfpgan-client/tool"
	"github.com/moyoez/gfpgan-client/types"
)

func main() {
	cfg := tool.SetFlags()
	appCfg, err := tool.LoadConfig(cfg.UseConfigPath)
	if err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}
	tool.ApplyFlags(&appCfg, cfg)

	// initialize logger
	tool.InitLogger()
	tool.SetLogMode(cfg.Log)
	logger := tool.DefaultLogger

	if appCfg.Probe {
		res, err := tool.Probe(appCfg.ServerURL, 3, 5*time.Second)
		if err != nil {
			logger.Warnf("Probe failed: %v", err)
		} else {
			logger.Infof("Probe %s: %d/%d replies, avg %s", res.Host, res.Received, res.Sent, res.AvgRtt)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(appCfg, logger)
	defer a.Close()

	var hub *notifyhub.Hub
	if appCfg.ListenPort > 0 && appCfg.NotifyWebsocket {
		hub = notifyhub.New()
		a.Sink.Add(hub)
	}

	manager := session.NewManager(a)
	a.OnClose(manager.Close)

	var channel *status.Channel
	if !cfg.SkipStatus {
		channel, err = status.NewChannel(a)
		if err != nil {
			logger.Fatalf("%v", err)
		}
		channel.Start()
		a.OnClose(channel.Stop)
	}

	infoCtx, cancelInfo := context.WithTimeout(ctx, 5*time.Second)
	if info, err := a.Transfer.FetchInfo(infoCtx); err != nil {
		logger.Warnf("Failed to fetch server info: %v", err)
	} else {
		logger.Infof("Server version %s, GPU %s", info.AppVersion, info.GPUName)
	}
	cancelInfo()

	if len(cfg.Files) > 0 {
		if err := runOnce(ctx, manager, cfg.Files, types.SubmitOptions{BackgroundUpscale: appCfg.BackgroundUpscale}, appCfg.DownloadFolder); err != nil {
			logger.Errorf("%v", err)
			a.Close()
			os.Exit(1)
		}
		if appCfg.ListenPort <= 0 {
			return
		}
	}

	if appCfg.ListenPort <= 0 {
		logger.Info("No files given and listenPort is 0, following the status stream until interrupted")
		<-ctx.Done()
		return
	}

	server := api.NewServer(api.Options{
		Port:     appCfg.ListenPort,
		Session:  manager,
		Channel:  channel,
		Info:     a.Transfer,
		Previews: a.Previews,
		Hub:      hub,
	})
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatalf("Control API startup failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("Control API shutdown: %v", err)
	}
}

// runOnce stages paths, submits them and saves the restored images.
func runOnce(ctx context.Context, m *session.Manager, paths []string, opts types.SubmitOptions, dir string) error {
	blobs := make([]fileset.Blob, 0, len(paths))
	for _, p := range paths {
		b, err := fileset.NewFileBlob(p)
		if err != nil {
			return err
		}
		blobs = append(blobs, b)
	}
	m.AddFiles(blobs...)

	done, err := m.Submit(ctx, opts)
	if err != nil {
		return err
	}
	final := <-done
	if final.Phase == types.SubmissionFailed {
		return fmt.Errorf("submission failed: %s", final.Error)
	}
	saved, err := m.SaveRestored(ctx, dir)
	for _, p := range saved {
		tool.DefaultLogger.Infof("Saved %s", p)
	}
	return err
}
