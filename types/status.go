package types

import "time"

// StatusKind is the discriminator of a model status event.
type StatusKind string

const (
	StatusDownloading    StatusKind = "downloading"
	StatusCompleted      StatusKind = "completed"
	StatusReady          StatusKind = "ready"
	StatusInfo           StatusKind = "info"
	StatusModelInitError StatusKind = "model_init_error"
	StatusError          StatusKind = "error"
)

// StatusEvent is one decoded message of the model status stream.
// Only the fields of its Kind are meaningful.
type StatusEvent struct {
	Kind          StatusKind `json:"status"`
	ModelName     string     `json:"model_name,omitempty"`
	Percentage    int        `json:"percentage,omitempty"`
	Speed         string     `json:"speed,omitempty"`
	GPUName       string     `json:"gpu_detected,omitempty"`
	HalfPrecision bool       `json:"half_precision,omitempty"`
	Message       string     `json:"message,omitempty"`
}

// IsError reports whether the event is a server-reported error.
func (e StatusEvent) IsError() bool {
	return e.Kind == StatusError || e.Kind == StatusModelInitError
}

// ChannelPhase is the connection lifecycle phase of the status stream.
type ChannelPhase string

const (
	ChannelConnecting   ChannelPhase = "connecting"
	ChannelOpen         ChannelPhase = "open"
	ChannelReconnecting ChannelPhase = "reconnecting"
	ChannelClosed       ChannelPhase = "closed"
)

// ChannelState carries the attempt number and delay while reconnecting.
type ChannelState struct {
	Phase   ChannelPhase  `json:"phase"`
	Attempt int           `json:"attempt,omitempty"`
	Delay   time.Duration `json:"delay,omitempty"`
}

// StatusSnapshot is what a UI shows for the stream: the channel state plus
// the latest event of each category, each replacing the previous one.
type StatusSnapshot struct {
	Channel  ChannelState `json:"channel"`
	Progress *StatusEvent `json:"progress,omitempty"` // downloading, completed or ready
	Device   *StatusEvent `json:"device,omitempty"`   // info
	Error    *StatusEvent `json:"error,omitempty"`
}
