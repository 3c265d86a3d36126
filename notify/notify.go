// Package notify carries user-facing notifications from the session manager
// and the status channel to whatever renders them.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/moyoez/gfpgan-client/types"
)

// Sink receives notifications in the order they were produced.
// Implementations must not block for long: the status channel delivers from its read loop.
type Sink interface {
	Notify(n *types.Notification)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(n *types.Notification)

func (f SinkFunc) Notify(n *types.Notification) { f(n) }

// Discard drops everything.
var Discard Sink = SinkFunc(func(*types.Notification) {})

// Fanout forwards each notification to every registered sink.
type Fanout struct {
	mu    sync.RWMutex
	sinks []Sink
}

func NewFanout(sinks ...Sink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		f.Add(s)
	}
	return f
}

func (f *Fanout) Add(s Sink) {
	if s == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, s)
}

func (f *Fanout) Notify(n *types.Notification) {
	if n == nil {
		return
	}
	f.mu.RLock()
	sinks := append([]Sink(nil), f.sinks...)
	f.mu.RUnlock()
	for _, s := range sinks {
		s.Notify(n)
	}
}

// SetChanged reports the new size of the file set.
func SetChanged(count int) *types.Notification {
	msg := ""
	if count > 0 {
		msg = fmt.Sprintf("%d image(s) selected", count)
	}
	return &types.Notification{
		Type:    types.NotifyTypeSetChanged,
		Message: msg,
		Data:    map[string]any{"count": count},
	}
}

func Cleared() *types.Notification {
	return &types.Notification{
		Type:  types.NotifyTypeCleared,
		Title: "History Cleared",
		Data:  map[string]any{"count": 0},
	}
}

// Submitting announces a submission; the first one of a session may wait for model loading.
func Submitting(count int, firstRun bool) *types.Notification {
	msg := "Enhancing images, please wait..."
	if firstRun {
		msg = "First run: Loading models... this will be slow."
	}
	return &types.Notification{
		Type:    types.NotifyTypeSubmitting,
		Title:   "Processing",
		Message: msg,
		Data:    map[string]any{"count": count, "firstRun": firstRun},
	}
}

func ResultsReady(images []string) *types.Notification {
	return &types.Notification{
		Type:    types.NotifyTypeResultsReady,
		Title:   "Enhancement Completed",
		Message: fmt.Sprintf("%d image(s) restored", len(images)),
		Data:    map[string]any{"images": append([]string(nil), images...)},
	}
}

func SubmissionFailed(message string) *types.Notification {
	return &types.Notification{
		Type:    types.NotifyTypeSubmissionFailed,
		Title:   "An error occurred",
		Message: message,
		Data:    map[string]any{"message": message},
	}
}

func Reconnecting(attempt int, delay time.Duration) *types.Notification {
	return &types.Notification{
		Type:    types.NotifyTypeReconnecting,
		Title:   "Connection Lost",
		Message: "Attempting to reconnect...",
		Data:    map[string]any{"attempt": attempt, "delayMs": delay.Milliseconds()},
	}
}

// FromStatus republishes a decoded stream event.
func FromStatus(ev types.StatusEvent) *types.Notification {
	switch ev.Kind {
	case types.StatusDownloading:
		return &types.Notification{
			Type:    types.NotifyTypeDownloading,
			Title:   "Downloading " + ev.ModelName,
			Message: fmt.Sprintf("%d%% (%s)", ev.Percentage, ev.Speed),
			Data: map[string]any{
				"modelName":  ev.ModelName,
				"percentage": ev.Percentage,
				"speed":      ev.Speed,
			},
		}
	case types.StatusCompleted:
		return &types.Notification{
			Type:    types.NotifyTypeCompleted,
			Title:   "Download Complete",
			Message: ev.ModelName,
			Data:    map[string]any{"modelName": ev.ModelName},
		}
	case types.StatusReady:
		return &types.Notification{
			Type:    types.NotifyTypeReady,
			Title:   "Models Ready",
			Message: "Models loaded successfully",
		}
	case types.StatusInfo:
		half := "Disabled"
		if ev.HalfPrecision {
			half = "Enabled"
		}
		return &types.Notification{
			Type:    types.NotifyTypeInfo,
			Title:   "Device Info",
			Message: fmt.Sprintf("%s, half precision %s", ev.GPUName, half),
			Data: map[string]any{
				"gpuName":       ev.GPUName,
				"halfPrecision": ev.HalfPrecision,
			},
		}
	default:
		return &types.Notification{
			Type:    types.NotifyTypeStatusError,
			Title:   "Model Initialization Error",
			Message: ev.Message,
			Data: map[string]any{
				"status":    string(ev.Kind),
				"modelName": ev.ModelName,
				"message":   ev.Message,
			},
		}
	}
}
