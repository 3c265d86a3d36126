package types

// FileInfo is the display view of one staged file.
type FileInfo struct {
	FileName string `json:"fileName"`
	Size     int64  `json:"size"`
	FileType string `json:"fileType"`
	Preview  string `json:"preview,omitempty"` // preview handle id
}

// SubmitOptions are the recognized extra options of a submission.
type SubmitOptions struct {
	BackgroundUpscale bool `json:"bgUpscale"`
}
