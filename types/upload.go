package types

// ProcessResponse is the processing endpoint reply.
type ProcessResponse struct {
	Status  string   `json:"status"`
	Images  []string `json:"images"`
	Message string   `json:"message,omitempty"`
}

// RemoveFileRequest is the removal endpoint body.
type RemoveFileRequest struct {
	RemoveFile string `json:"remove_file"`
}

// StatusResponse is the generic {status} reply of the remove and clear endpoints.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the body of a non-2xx reply.
type ErrorResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message"`
}

// InfoResponse is returned by the server info endpoint.
type InfoResponse struct {
	AppVersion string `json:"app_version"`
	GPUName    string `json:"gpu_name"`
}

const (
	ProcessStatusSuccess = "success"
	FilesFieldName       = "files[]"
	BgUpscaleFieldName   = "bg_upscale"
	BgUpscaleOn          = "on"
	ArchiveName          = "Enhanced-Images.zip"
)
