package types

// SubmissionPhase is the lifecycle phase of a session's submission.
type SubmissionPhase string

const (
	SubmissionIdle       SubmissionPhase = "idle"
	SubmissionSubmitting SubmissionPhase = "submitting"
	SubmissionSucceeded  SubmissionPhase = "succeeded"
	SubmissionFailed     SubmissionPhase = "failed"
)

// SubmissionState is Idle, Submitting, Succeeded(Results) or Failed(Error).
type SubmissionState struct {
	Phase   SubmissionPhase `json:"phase"`
	Results []string        `json:"results,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Terminal reports whether a new submission may start from this state.
func (s SubmissionState) Terminal() bool {
	return s.Phase != SubmissionSubmitting
}

// SessionSnapshot is the derived UI state of an upload session.
type SessionSnapshot struct {
	Count         int             `json:"count"`
	Files         []FileInfo      `json:"files"`
	State         SubmissionState `json:"state"`
	Restored      []string        `json:"restored"`
	SubmitEnabled bool            `json:"submitEnabled"`
	FirstRun      bool            `json:"firstRun"`
}
