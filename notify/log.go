package notify

import (
	"github.com/charmbracelet/log"

	"github.com/moyoez/gfpgan-client/tool"
	"github.com/moyoez/gfpgan-client/types"
)

// LogSink writes notifications to a logger, errors at error level.
type LogSink struct {
	logger *log.Logger
}

func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = tool.DefaultLogger
	}
	return &LogSink{logger: logger.WithPrefix("notify")}
}

func (s *LogSink) Notify(n *types.Notification) {
	if n == nil {
		return
	}
	msg := n.Title
	if msg == "" {
		msg = n.Type
	}
	switch n.Type {
	case types.NotifyTypeSubmissionFailed, types.NotifyTypeStatusError:
		s.logger.Error(msg, "type", n.Type, "message", n.Message)
	case types.NotifyTypeReconnecting:
		s.logger.Warn(msg, "type", n.Type, "message", n.Message, "attempt", n.Data["attempt"])
	case types.NotifyTypeDownloading:
		s.logger.Debug(msg, "type", n.Type, "message", n.Message)
	default:
		s.logger.Info(msg, "type", n.Type, "message", n.Message)
	}
}
