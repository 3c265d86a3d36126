package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/moyoez/gfpgan-client/tool"
	"github.com/moyoez/gfpgan-client/types"
)

// DownloadAll fetches the bulk archive and saves it in dir as Enhanced-Images.zip
// (or the next free variant). It returns the saved path.
func (c *Client) DownloadAll(ctx context.Context, dir string) (string, error) {
	rc, err := c.OpenArchive(ctx)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	path, err := tool.SaveStream(ctx, dir, types.ArchiveName, rc)
	if err != nil {
		return "", fmt.Errorf("failed to save archive: %w", err)
	}
	c.logger.Infof("Saved results archive to %s", path)
	return path, nil
}

// OpenArchive starts the bulk download and returns the archive stream; the caller closes it.
func (c *Client) OpenArchive(ctx context.Context) (io.ReadCloser, error) {
	url, err := c.endpoint(c.endpoints.DownloadAll)
	if err != nil {
		return nil, fmt.Errorf("failed to build download URL: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %v", err)
	}
	resp, err := c.doRequest(req, "download request")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer c.closeBody(resp)
		_, replyErr := readReply(resp)
		return nil, replyErr
	}
	return resp.Body, nil
}

// FetchArtifact returns the bytes of one produced image, from cache when possible.
func (c *Client) FetchArtifact(ctx context.Context, id string) ([]byte, error) {
	if data := c.artifacts.Get(id); data != nil {
		return data, nil
	}
	url, err := tool.BuildArtifactURL(c.baseURL, c.endpoints.Output, id)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact request: %v", err)
	}
	resp, err := c.doRequest(req, "artifact request")
	if err != nil {
		return nil, err
	}
	defer c.closeBody(resp)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, replyErr := readReply(resp)
		return nil, replyErr
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %v", id, err)
	}
	c.artifacts.Set(id, data)
	return data, nil
}

// ForgetArtifacts drops cached bytes of ids, e.g. when results are replaced.
func (c *Client) ForgetArtifacts(ids ...string) {
	for _, id := range ids {
		c.artifacts.Delete(id)
	}
}
