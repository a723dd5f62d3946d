package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/example/mailwatch/internal/models"
)

const (
	defaultBodyLimit   = 16 * 1024
	defaultHTTPTimeout = 30 * time.Second
	snippetLimit       = 200
)

// poster centralises the JSON POST plumbing shared by the webhook style
// channels: marshalling, transport error classification and bounded reads
// of the response body.
type poster struct {
	httpClient   HTTPClient
	maxBodyBytes int64
}

func newPoster(client HTTPClient) *poster {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &poster{httpClient: client, maxBodyBytes: defaultBodyLimit}
}

// postJSON sends the payload and returns the status code plus the bounded
// response body. A non-nil error means no classified status is available.
func (p *poster) postJSON(ctx context.Context, endpoint string, headers map[string]string, payload any) (int, string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, "", failSend(models.ReasonUnknown, fmt.Errorf("marshal payload: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, "", failSend(models.ReasonUnknown, fmt.Errorf("new request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, "", failSend(classifyTransportError(err), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBodyBytes))
	if err != nil {
		return resp.StatusCode, "", failSend(models.ReasonNetwork, fmt.Errorf("read response: %v", err))
	}
	return resp.StatusCode, string(respBody), nil
}

// classifyStatus maps an HTTP status to a failure reason code. Server side
// errors are treated as transient congestion.
func classifyStatus(code int) string {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return models.ReasonAuthRejected
	case code == http.StatusTooManyRequests:
		return models.ReasonRateLimited
	case code >= http.StatusInternalServerError:
		return models.ReasonRateLimited
	default:
		return models.ReasonRejected
	}
}

func classifyTransportError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.ReasonTimeout
	}
	return models.ReasonNetwork
}

// snippet trims a response body for error messages.
func snippet(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > snippetLimit {
		return body[:snippetLimit] + "..."
	}
	return body
}

func isSuccess(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}
