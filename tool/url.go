package tool

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildEndpointURL joins the server base URL and an endpoint path.
func BuildEndpointURL(base, path string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("failed to parse base URL: %v", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid base URL %q: scheme and host are required", base)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}

// BuildArtifactURL builds the static-file URL of one produced image.
func BuildArtifactURL(base, outputPath, id string) (string, error) {
	if id == "" || strings.ContainsAny(id, "/\\") || id == "." || id == ".." {
		return "", fmt.Errorf("invalid artifact id %q", id)
	}
	prefix, err := BuildEndpointURL(base, outputPath)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(prefix, "/") + "/" + url.PathEscape(id), nil
}

// BuildLocalURL is the address other devices on the LAN use for the control server.
func BuildLocalURL(ip string, port int) string {
	return fmt.Sprintf("http://%s:%d", ip, port)
}
