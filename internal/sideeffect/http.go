package sideeffect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPInvoker calls functions by POSTing JSON to baseURL/<function>.
type HTTPInvoker struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPInvoker creates an invoker. A zero timeout means no client timeout;
// ctx deadlines still apply.
func NewHTTPInvoker(baseURL, apiKey string, timeout time.Duration) *HTTPInvoker {
	return &HTTPInvoker{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (i *HTTPInvoker) Invoke(ctx context.Context, function string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("invoke %s: encode payload: %w", function, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.baseURL+"/"+function, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("invoke %s: %w", function, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if i.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+i.apiKey)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("invoke %s: %w", function, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("invoke %s: status %d: %s", function, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invoke %s: decode response: %w", function, err)
	}
	return nil
}
