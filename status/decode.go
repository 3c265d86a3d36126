package status

import (
	"errors"
	"fmt"
	"math"

	"github.com/bytedance/sonic"

	"github.com/moyoez/gfpgan-client/types"
)

var ErrUnknownStatus = errors.New("unknown status")

// wireEvent is the JSON shape on the stream. Percentage may come as a float
// and older servers only send progress.
type wireEvent struct {
	Status        string  `json:"status"`
	ModelName     string  `json:"model_name"`
	Percentage    float64 `json:"percentage"`
	Progress      float64 `json:"progress"`
	Speed         string  `json:"speed"`
	GPUDetected   string  `json:"gpu_detected"`
	HalfPrecision bool    `json:"half_precision"`
	ErrorMessage  string  `json:"error_message"`
	Message       string  `json:"message"`
}

// Decode parses one stream message into a StatusEvent.
func Decode(data []byte) (types.StatusEvent, error) {
	var w wireEvent
	if err := sonic.Unmarshal(data, &w); err != nil {
		return types.StatusEvent{}, fmt.Errorf("failed to parse status message: %v", err)
	}
	ev := types.StatusEvent{Kind: types.StatusKind(w.Status), ModelName: w.ModelName}
	switch ev.Kind {
	case types.StatusDownloading:
		pct := w.Percentage
		if pct == 0 && w.Progress > 0 {
			pct = w.Progress
		}
		ev.Percentage = clampPercentage(pct)
		ev.Speed = w.Speed
	case types.StatusCompleted, types.StatusReady:
	case types.StatusInfo:
		ev.GPUName = w.GPUDetected
		ev.HalfPrecision = w.HalfPrecision
	case types.StatusError, types.StatusModelInitError:
		ev.Message = w.ErrorMessage
		if ev.Message == "" {
			ev.Message = w.Message
		}
	default:
		return types.StatusEvent{}, fmt.Errorf("%w %q", ErrUnknownStatus, w.Status)
	}
	return ev, nil
}

func clampPercentage(p float64) int {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return int(math.Floor(p))
}
