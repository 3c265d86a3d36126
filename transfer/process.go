package transfer

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/moyoez/gfpgan-client/fileset"
	"github.com/moyoez/gfpgan-client/types"
)

// Process submits entries, in order, as one streamed multipart request and
// returns the identifiers of the produced images.
func (c *Client) Process(ctx context.Context, entries []fileset.Entry, opts types.SubmitOptions) ([]string, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("invalid parameters: no files to process")
	}
	url, err := c.endpoint(c.endpoints.Process)
	if err != nil {
		return nil, fmt.Errorf("failed to build process URL: %v", err)
	}

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	go func() {
		err := fileset.WriteFiles(ctx, mw, entries)
		if err == nil && opts.BackgroundUpscale {
			err = mw.WriteField(types.BgUpscaleFieldName, types.BgUpscaleOn)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		return nil, fmt.Errorf("failed to create process request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(c.submit, req, "process request")
	if err != nil {
		return nil, err
	}
	defer c.closeBody(resp)

	body, err := readReply(resp)
	if err != nil {
		return nil, err
	}
	var response types.ProcessResponse
	if err := sonic.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse process response: %v", err)
	}
	if response.Status != types.ProcessStatusSuccess {
		if response.Message != "" {
			return nil, fmt.Errorf("%s", response.Message)
		}
		return nil, fmt.Errorf("unexpected process status %q", response.Status)
	}
	images := response.Images
	if images == nil {
		images = []string{}
	}
	c.logger.Infof("Processed %d file(s), server produced %d image(s)", len(entries), len(images))
	return images, nil
}
