// Package status follows the model initialization stream of the processing
// server and republishes its events as notifications.
//
// A Channel owns at most one subscription at a time. Any drop that was not
// requested through Stop moves it to Reconnecting, and exactly one retry
// follows after a fixed delay, forever, without backoff growth.
package status

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/moyoez/gfpgan-client/app"
	"github.com/moyoez/gfpgan-client/notify"
	"github.com/moyoez/gfpgan-client/tool"
	"github.com/moyoez/gfpgan-client/types"
)

var errStreamEnded = errors.New("status stream ended")

type Channel struct {
	url     string
	client  *http.Client
	sink    notify.Sink
	delay   time.Duration
	logger  *log.Logger
	dropLog rate.Sometimes

	life sync.Mutex // serializes Start and Stop

	mu       sync.Mutex
	state    types.ChannelState
	cancel   context.CancelFunc
	done     chan struct{}
	wake     chan struct{}
	open     int
	progress *types.StatusEvent
	device   *types.StatusEvent
	lastErr  *types.StatusEvent
}

// NewChannel builds a channel on the status endpoint of the application context.
func NewChannel(a *app.Context) (*Channel, error) {
	url, err := a.Transfer.StatusURL()
	if err != nil {
		return nil, fmt.Errorf("failed to build status URL: %v", err)
	}
	return New(url, a.Stream, a.Sink, a.Config.ReconnectDelay, a.Logger), nil
}

func New(url string, client *http.Client, sink notify.Sink, delay time.Duration, logger *log.Logger) *Channel {
	if client == nil {
		client = tool.NewStreamHTTPClient()
	}
	if sink == nil {
		sink = notify.Discard
	}
	if delay <= 0 {
		delay = tool.DefaultReconnectDelay
	}
	if logger == nil {
		logger = tool.DefaultLogger
	}
	return &Channel{
		url:     url,
		client:  client,
		sink:    sink,
		delay:   delay,
		logger:  logger.WithPrefix("status"),
		dropLog: rate.Sometimes{First: 5, Interval: 30 * time.Second},
		state:   types.ChannelState{Phase: types.ChannelClosed},
		wake:    make(chan struct{}, 1),
	}
}

// Start opens the subscription. It is a no-op while Connecting or Open;
// while Reconnecting it cuts the pending delay short.
func (c *Channel) Start() {
	c.life.Lock()
	defer c.life.Unlock()

	c.mu.Lock()
	if c.cancel != nil {
		phase := c.state.Phase
		c.mu.Unlock()
		if phase == types.ChannelReconnecting {
			select {
			case c.wake <- struct{}{}:
				c.logger.Info("Reconnect requested")
			default:
			}
		}
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.state = types.ChannelState{Phase: types.ChannelConnecting}
	c.mu.Unlock()

	go c.run(ctx, done)
}

// Stop releases the subscription and returns once it is gone. Nothing is
// delivered to the sink after Stop returns. Stopping twice is a no-op.
func (c *Channel) Stop() {
	c.life.Lock()
	defer c.life.Unlock()

	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
		c.logger.Debug("Status stream stopped")
	}

	c.mu.Lock()
	c.state = types.ChannelState{Phase: types.ChannelClosed}
	c.mu.Unlock()
}

func (c *Channel) State() types.ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OpenSubscriptions is the number of stream connections currently held (0 or 1).
func (c *Channel) OpenSubscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Snapshot returns the channel state and the latest event per category.
func (c *Channel) Snapshot() types.StatusSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return types.StatusSnapshot{
		Channel:  c.state,
		Progress: copyEvent(c.progress),
		Device:   copyEvent(c.device),
		Error:    copyEvent(c.lastErr),
	}
}

func copyEvent(ev *types.StatusEvent) *types.StatusEvent {
	if ev == nil {
		return nil
	}
	cp := *ev
	return &cp
}

func (c *Channel) setState(s types.ChannelState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func (c *Channel) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	attempt := 0
	for {
		c.setState(types.ChannelState{Phase: types.ChannelConnecting})
		err := c.subscribe(ctx, &attempt)
		if ctx.Err() != nil {
			return
		}

		attempt++
		c.logger.Warnf("Status stream lost (%v), reconnecting in %s (attempt %d)", err, c.delay, attempt)
		select {
		case <-c.wake:
		default:
		}
		c.setState(types.ChannelState{Phase: types.ChannelReconnecting, Attempt: attempt, Delay: c.delay})
		c.emit(ctx, notify.Reconnecting(attempt, c.delay))

		timer := time.NewTimer(c.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-c.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// subscribe holds one connection until it drops or ctx is cancelled.
func (c *Channel) subscribe(ctx context.Context, attempt *int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create status request: %v", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to open status stream: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Errorf("Failed to close status stream: %v", err)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status stream returned %s", resp.Status)
	}

	c.mu.Lock()
	c.open++
	c.state = types.ChannelState{Phase: types.ChannelOpen}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.open--
		c.mu.Unlock()
	}()
	*attempt = 0
	c.logger.Infof("Status stream connected to %s", c.url)

	fr := newFrameReader(resp.Body)
	for {
		f, err := fr.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errStreamEnded
			}
			return fmt.Errorf("failed to read status stream: %w", err)
		}
		if f.event != "" && f.event != "message" {
			c.logger.Debugf("Ignoring %q frame", f.event)
			continue
		}
		ev, err := Decode([]byte(f.data))
		if err != nil {
			c.dropLog.Do(func() {
				c.logger.Warnf("Dropping status message %q: %v", shorten(f.data, 120), err)
			})
			continue
		}
		c.record(ev)
		c.emit(ctx, notify.FromStatus(ev))
	}
}

// record keeps the latest event of each category for Snapshot.
func (c *Channel) record(ev types.StatusEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := ev
	switch {
	case ev.IsError():
		c.lastErr = &cp
	case ev.Kind == types.StatusInfo:
		c.device = &cp
	default:
		c.progress = &cp
	}
}

func (c *Channel) emit(ctx context.Context, n *types.Notification) {
	if ctx.Err() != nil {
		return
	}
	c.sink.Notify(n)
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
