package transfer

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/moyoez/gfpgan-client/tool"
	"github.com/moyoez/gfpgan-client/types"
)

// RemoveFile asks the server to drop an uploaded input.
func (c *Client) RemoveFile(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("invalid parameters: name must not be empty")
	}
	url, err := c.endpoint(c.endpoints.Remove)
	if err != nil {
		return fmt.Errorf("failed to build remove URL: %v", err)
	}
	payload, err := sonic.Marshal(&types.RemoveFileRequest{RemoveFile: name})
	if err != nil {
		return fmt.Errorf("failed to marshal remove request: %v", err)
	}
	req, err := tool.NewHTTPReqWithApplication(http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload)))
	if err != nil {
		return fmt.Errorf("failed to create remove request: %v", err)
	}
	return c.expectStatus(req, "remove request")
}

// Clear asks the server to delete every input and output.
func (c *Client) Clear(ctx context.Context) error {
	url, err := c.endpoint(c.endpoints.Clear)
	if err != nil {
		return fmt.Errorf("failed to build clear URL: %v", err)
	}
	req, err := tool.NewHTTPReqWithApplication(http.NewRequestWithContext(ctx, http.MethodPost, url, nil))
	if err != nil {
		return fmt.Errorf("failed to create clear request: %v", err)
	}
	return c.expectStatus(req, "clear request")
}

// expectStatus sends req and accepts any 2xx. A JSON {status:"error"} reply is a failure too.
func (c *Client) expectStatus(req *http.Request, what string) error {
	resp, err := c.doRequest(req, what)
	if err != nil {
		return err
	}
	defer c.closeBody(resp)

	body, err := readReply(resp)
	if err != nil {
		return err
	}
	if len(body) > 0 {
		var status types.StatusResponse
		if err := sonic.Unmarshal(body, &status); err == nil && status.Status == "error" {
			if status.Message != "" {
				return fmt.Errorf("%s failed: %s", what, status.Message)
			}
			return fmt.Errorf("%s failed", what)
		}
	}
	c.logger.Infof("%s sent successfully to %s", what, req.URL.Path)
	return nil
}

// FetchInfo reads the server version and GPU name.
func (c *Client) FetchInfo(ctx context.Context) (*types.InfoResponse, error) {
	url, err := c.endpoint(c.endpoints.Info)
	if err != nil {
		return nil, fmt.Errorf("failed to build info URL: %v", err)
	}
	req, err := tool.NewHTTPReqWithApplication(http.NewRequestWithContext(ctx, http.MethodGet, url, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create info request: %v", err)
	}
	resp, err := c.doRequest(req, "info request")
	if err != nil {
		return nil, err
	}
	defer c.closeBody(resp)

	body, err := readReply(resp)
	if err != nil {
		return nil, err
	}
	var info types.InfoResponse
	if err := sonic.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse info response: %v", err)
	}
	return &info, nil
}
