package tool

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// GetFileInfoFromPath reads name, size and MIME type of a local file.
// The type comes from the extension and falls back to content sniffing.
func GetFileInfoFromPath(filePath string) (string, int64, string, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return "", 0, "", fmt.Errorf("failed to stat file: %v", err)
	}
	if fileInfo.IsDir() {
		return "", 0, "", fmt.Errorf("path is a directory, not a file")
	}

	fileName := filepath.Base(filePath)
	fileType := mime.TypeByExtension(filepath.Ext(filePath))
	if fileType == "" {
		if m, err := mimetype.DetectFile(filePath); err == nil {
			fileType = m.String()
		}
	}
	if fileType == "" {
		fileType = "application/octet-stream"
	}
	return fileName, fileInfo.Size(), fileType, nil
}

// DetectContentType sniffs an in-memory upload whose name carries no usable extension.
func DetectContentType(name string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return mimetype.Detect(data).String()
}
