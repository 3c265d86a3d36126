package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/moyoez/gfpgan-client/api/controllers"
	"github.com/moyoez/gfpgan-client/api/middlewares"
	"github.com/moyoez/gfpgan-client/api/notifyhub"
	"github.com/moyoez/gfpgan-client/notify"
	"github.com/moyoez/gfpgan-client/preview"
	"github.com/moyoez/gfpgan-client/session"
	"github.com/moyoez/gfpgan-client/status"
	"github.com/moyoez/gfpgan-client/tool"
	"github.com/moyoez/gfpgan-client/types"
)

// Server is the local control API: a UI on this host drives the session
// and the status channel through it.
type Server struct {
	port    int
	session *session.Manager
	channel *status.Channel
	info    controllers.InfoFetcher
	preview *preview.Registry
	hub     *notifyhub.Hub // nil disables /notify-ws

	engine *gin.Engine
	server *http.Server
	mu     sync.RWMutex
}

// Options groups the collaborators the routes are bound to.
type Options struct {
	Port     int
	Session  *session.Manager
	Channel  *status.Channel
	Info     controllers.InfoFetcher
	Previews *preview.Registry
	Hub      *notifyhub.Hub
}

func NewServer(opts Options) *Server {
	return &Server{
		port:    opts.Port,
		session: opts.Session,
		channel: opts.Channel,
		info:    opts.Info,
		preview: opts.Previews,
		hub:     opts.Hub,
	}
}

// Engine builds the routes once and returns them; tests drive it with httptest.
func (s *Server) Engine() *gin.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		s.engine = s.setupRoutes()
	}
	return s.engine
}

func (s *Server) setupRoutes() *gin.Engine {
	if tool.DefaultLogger.GetLevel() == log.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	sessionCtrl := controllers.NewSessionController(s.session, s.preview)
	// one submit per second is plenty for a human, bursts of 3 for double clicks
	submitLimit := rate.NewLimiter(rate.Every(time.Second), 3)

	self := engine.Group("/api/self/v1", middlewares.OnlyAllowLocal)
	{
		self.GET("/session", sessionCtrl.HandleState)
		self.POST("/files", sessionCtrl.HandleAddFiles)
		self.DELETE("/files/:name", sessionCtrl.HandleRemoveFile)
		self.POST("/clear", sessionCtrl.HandleClear)
		self.POST("/submit", middlewares.RateLimit(submitLimit), sessionCtrl.HandleSubmit)
		self.GET("/preview/:handle", sessionCtrl.HandlePreview)
		self.GET("/output/:id", sessionCtrl.HandleArtifact)
		self.POST("/download-all", sessionCtrl.HandleDownloadAll)

		if s.channel != nil {
			statusCtrl := controllers.NewStatusController(s.channel, s.info)
			self.GET("/status", statusCtrl.HandleStatus)
			self.POST("/status/reconnect", statusCtrl.HandleReconnect)
			self.POST("/status/stop", statusCtrl.HandleStop)
			if s.info != nil {
				self.GET("/info", statusCtrl.HandleInfo)
			}
		}

		self.GET("/create-qr-code", controllers.GenerateQRCode(tool.BuildLocalURL(tool.PreferredLocalIPv4(), s.port)))
		if s.hub != nil {
			self.GET("/notify-ws", notifyhub.HandleNotifyWS(s.hub, s.currentState))
		}
	}
	return engine
}

// currentState is replayed to a websocket client when it connects.
func (s *Server) currentState() []*types.Notification {
	ns := []*types.Notification{notify.SetChanged(s.session.Count())}
	if restored := s.session.Restored(); len(restored) > 0 {
		ns = append(ns, notify.ResultsReady(restored))
	}
	if s.channel != nil {
		snap := s.channel.Snapshot()
		for _, ev := range []*types.StatusEvent{snap.Device, snap.Progress, snap.Error} {
			if ev != nil {
				ns = append(ns, notify.FromStatus(*ev))
			}
		}
		if st := snap.Channel; st.Phase == types.ChannelReconnecting {
			ns = append(ns, notify.Reconnecting(st.Attempt, st.Delay))
		}
	}
	return ns
}

// Start serves until Shutdown; http.ErrServerClosed is not an error.
func (s *Server) Start() error {
	engine := s.Engine()

	s.mu.Lock()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	tool.DefaultLogger.Infof("Starting control API on http://0.0.0.0:%d", s.port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
