package transfer

import (
	"fmt"
	"io"
	"net/http"
	"time"

	ttlworker "github.com/FloatTech/ttl"
	"github.com/bytedance/sonic"
	"github.com/charmbracelet/log"

	"github.com/moyoez/gfpgan-client/tool"
	"github.com/moyoez/gfpgan-client/types"
)

// maxReplyBytes bounds JSON replies; archives and artifacts are streamed or cached separately.
const maxReplyBytes = 4 << 20

// StatusError is a non-2xx reply. Message is the server's detail, surfaced verbatim.
type StatusError struct {
	Code    int
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed: %s", e.Status)
}

// Client talks to the processing server.
type Client struct {
	baseURL   string
	endpoints types.Endpoints
	http      *http.Client
	submit    *http.Client // no client timeout; a submit ends when its ctx does
	artifacts *ttlworker.Cache[string, []byte]
	logger    *log.Logger
}

func NewClient(cfg types.AppConfig, httpClient *http.Client, logger *log.Logger) *Client {
	if httpClient == nil {
		httpClient = tool.GetHttpClient()
	}
	if logger == nil {
		logger = tool.DefaultLogger
	}
	ttl := cfg.ArtifactCacheTTL
	if ttl <= 0 {
		ttl = tool.DefaultArtifactCacheTTL
	}
	endpoints := cfg.Endpoints
	if endpoints == (types.Endpoints{}) {
		endpoints = tool.DefaultEndpoints()
	}
	return &Client{
		baseURL:   cfg.ServerURL,
		endpoints: endpoints,
		http:      httpClient,
		submit:    tool.NewStreamHTTPClient(),
		artifacts: ttlworker.NewCache[string, []byte](ttl),
		logger:    logger.WithPrefix("transfer"),
	}
}

func (c *Client) endpoint(path string) (string, error) {
	return tool.BuildEndpointURL(c.baseURL, path)
}

// StatusURL is the model status stream address.
func (c *Client) StatusURL() (string, error) {
	return c.endpoint(c.endpoints.Status)
}

func (c *Client) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		c.logger.Errorf("Failed to close response body: %v", err)
	}
}

// readReply reads a JSON reply body. Non-2xx replies become *StatusError.
func readReply(resp *http.Response) ([]byte, error) {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := &StatusError{Code: resp.StatusCode, Status: resp.Status}
		if readErr == nil && len(body) > 0 {
			var errorResponse types.ErrorResponse
			if err := sonic.Unmarshal(body, &errorResponse); err == nil {
				statusErr.Message = errorResponse.Message
			}
		}
		return nil, statusErr
	}
	if readErr != nil {
		return nil, fmt.Errorf("failed to read response body: %v", readErr)
	}
	return body, nil
}

// doRequest wraps transport errors, reporting cancellation distinctly.
func (c *Client) doRequest(req *http.Request, what string) (*http.Response, error) {
	return c.do(c.http, req, what)
}

func (c *Client) do(hc *http.Client, req *http.Request, what string) (*http.Response, error) {
	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s cancelled: %w", what, ctxErr)
		}
		return nil, fmt.Errorf("failed to send %s: %w", what, err)
	}
	c.logger.Debugf("%s %s -> %s in %s", req.Method, req.URL.Path, resp.Status, time.Since(start).Round(time.Millisecond))
	return resp, nil
}
