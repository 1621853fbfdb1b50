// Package client holds the HTTP clients of the research, content and deck providers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/pipeline"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/pkg/requestid"
)

// maxErrorBody bounds how much of an error response ends up in the error message.
const maxErrorBody = 512

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

type requester struct {
	name       string
	httpClient *http.Client
	headers    map[string]string
}

// doJSON sends in as a JSON body (when not nil) and decodes the response into out.
// Failures are classified for the retry wrapper: transport errors and 408, 429
// and 5xx responses are transient, anything else is permanent.
func (r *requester) doJSON(ctx context.Context, method, url string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return pipeline.Permanent(fmt.Errorf("failed to marshal %s request: %w", r.name, err))
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return pipeline.Permanent(fmt.Errorf("failed to create %s request: %w", r.name, err))
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := requestid.FromContext(ctx); id != "" {
		req.Header.Set(requestid.Header, id)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", r.name, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return pipeline.Transient(fmt.Errorf("failed to read %s response: %w", r.name, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := data
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return pipeline.ClassifyStatus(resp.StatusCode,
			fmt.Errorf("%s returned status %d: %s", r.name, resp.StatusCode, string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return pipeline.Permanent(fmt.Errorf("failed to decode %s response: %w", r.name, err))
	}
	return nil
}
