package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tgfeed/internal/infra/metrics"
)

// call описывает один JSON-запрос к API провайдера.
type call struct {
	component string
	operation string
	model     string
	endpoint  string
	headers   map[string]string
	body      any
}

// apiErrorResponse — общий формат ошибки OpenAI и Anthropic.
type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func doJSON(ctx context.Context, client *http.Client, c call, out any) (time.Time, error) {
	start := time.Now()
	body, err := json.Marshal(c.body)
	if err != nil {
		return start, fmt.Errorf("%s: marshal request: %w", c.component, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return start, fmt.Errorf("%s: build request: %w", c.component, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		metrics.ObserveNetworkRequest(c.component, c.operation, c.model, start, err)
		return start, fmt.Errorf("%s: do request: %w", c.component, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveNetworkRequest(c.component, c.operation, c.model, start, err)
		return start, fmt.Errorf("%s: read response: %w", c.component, err)
	}
	if resp.StatusCode >= 400 {
		var apiErr apiErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			err = fmt.Errorf("%s: %s", c.component, apiErr.Error.Message)
		} else {
			err = fmt.Errorf("%s: unexpected status %d", c.component, resp.StatusCode)
		}
		metrics.ObserveNetworkRequest(c.component, c.operation, c.model, start, err)
		return start, err
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		metrics.ObserveNetworkRequest(c.component, c.operation, c.model, start, err)
		return start, fmt.Errorf("%s: decode response: %w", c.component, err)
	}
	metrics.ObserveNetworkRequest(c.component, c.operation, c.model, start, nil)
	return start, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout + 5*time.Second}
}
