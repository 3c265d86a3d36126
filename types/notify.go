package types

// Notification represents a notification message structure
type Notification struct {
	Type    string         `json:"type,omitempty"`    // Notification type, e.g. "set_changed", "downloading", etc.
	Title   string         `json:"title,omitempty"`   // Notification title
	Message string         `json:"message,omitempty"` // Notification message/content
	Data    map[string]any `json:"data,omitempty"`    // Additional data fields
}

const (
	NotifyTypeSetChanged       = "set_changed"
	NotifyTypeCleared          = "cleared"
	NotifyTypeSubmitting       = "submitting"
	NotifyTypeResultsReady     = "results_ready"
	NotifyTypeSubmissionFailed = "submission_failed"

	NotifyTypeDownloading  = "downloading"
	NotifyTypeCompleted    = "completed"
	NotifyTypeReady        = "ready"
	NotifyTypeInfo         = "info"
	NotifyTypeStatusError  = "status_error"
	NotifyTypeReconnecting = "reconnecting"
)
