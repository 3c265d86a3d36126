// Package app holds the per-process collaborators shared by the upload
// session manager and the status channel, with explicit setup and teardown.
package app

import (
	"net/http"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/moyoez/gfpgan-client/notify"
	"github.com/moyoez/gfpgan-client/preview"
	"github.com/moyoez/gfpgan-client/tool"
	"github.com/moyoez/gfpgan-client/transfer"
	"github.com/moyoez/gfpgan-client/types"
)

// Context is built once at session start and closed on teardown.
type Context struct {
	Config   types.AppConfig
	Logger   *log.Logger
	HTTP     *http.Client // request/response calls
	Stream   *http.Client // server-push stream, no timeout
	Sink     *notify.Fanout
	Previews *preview.Registry
	Transfer *transfer.Client

	mu      sync.Mutex
	closers []func()
	closed  bool
}

// New wires the collaborators from cfg. The log sink is always attached; the
// unix socket sink is attached when cfg.NotifySocketPath is set.
func New(cfg types.AppConfig, logger *log.Logger) *Context {
	if logger == nil {
		logger = tool.DefaultLogger
	}
	httpClient := tool.NewHTTPClient(cfg.RequestTimeout)
	c := &Context{
		Config:   cfg,
		Logger:   logger,
		HTTP:     httpClient,
		Stream:   tool.NewStreamHTTPClient(),
		Sink:     notify.NewFanout(notify.NewLogSink(logger)),
		Previews: preview.NewRegistry(logger),
		Transfer: transfer.NewClient(cfg, httpClient, logger),
	}
	if cfg.NotifySocketPath != "" {
		socket := notify.NewSocketSink(cfg.NotifySocketPath, logger)
		c.Sink.Add(socket)
		c.OnClose(socket.Close)
	}
	return c
}

// OnClose registers fn to run on Close, in reverse registration order.
func (c *Context) OnClose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, fn)
}

// Close runs the registered teardown steps once and releases leftover previews.
func (c *Context) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	if n := c.Previews.ReleaseAll(); n > 0 {
		c.Logger.Warnf("Released %d preview handle(s) still live at teardown", n)
	}
}
