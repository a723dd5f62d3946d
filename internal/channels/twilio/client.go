// Package twilio implements the minimal REST surface the phone channels
// need: sending messages and placing calls on one shared account.
package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const (
	defaultBaseURL     = "https://api.twilio.com/2010-04-01"
	defaultBodyLimit   = 16 * 1024
	defaultHTTPTimeout = 30 * time.Second
	messagesResource   = "Messages.json"
	callsResource      = "Calls.json"
)

// Option customises the REST client.
type Option func(*Client)

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(client HTTPClient) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API base URL, typically for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithBodyLimit caps how many response bytes are read when parsing
// provider errors.
func WithBodyLimit(limit int64) Option {
	return func(c *Client) {
		if limit > 0 {
			c.maxBodyBytes = limit
		}
	}
}

// Client is a minimal Twilio REST client. One instance is shared by every
// phone channel on the same account.
type Client struct {
	logger       zerolog.Logger
	accountSID   string
	authToken    string
	httpClient   HTTPClient
	baseURL      string
	maxBodyBytes int64
}

// NewClient validates the account credentials and constructs a client.
func NewClient(accountSID, authToken string, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(accountSID) == "" {
		return nil, errors.New("twilio client: account sid must be provided")
	}
	if strings.TrimSpace(authToken) == "" {
		return nil, errors.New("twilio client: auth token must be provided")
	}

	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	client := &Client{
		logger:       logger.With().Str("component", "twilio").Logger(),
		accountSID:   strings.TrimSpace(accountSID),
		authToken:    strings.TrimSpace(authToken),
		httpClient:   &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:      defaultBaseURL,
		maxBodyBytes: defaultBodyLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Result captures the parsed provider response for one request.
type Result struct {
	SID        string
	Status     string
	ErrorCode  int
	Message    string
	HTTPStatus int
}

// SendMessage posts one outbound message (SMS or WhatsApp depending on the
// address form) and returns the provider result.
func (c *Client) SendMessage(ctx context.Context, from, to, body string) (*Result, error) {
	params := url.Values{}
	params.Set("From", from)
	params.Set("To", to)
	params.Set("Body", body)
	return c.post(ctx, messagesResource, params)
}

// PlaceCall starts one outbound voice call speaking the supplied TwiML.
func (c *Client) PlaceCall(ctx context.Context, from, to, twiml string) (*Result, error) {
	params := url.Values{}
	params.Set("From", from)
	params.Set("To", to)
	params.Set("Twiml", twiml)
	return c.post(ctx, callsResource, params)
}

func (c *Client) post(ctx context.Context, resource string, params url.Values) (*Result, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s/%s", c.baseURL, url.PathEscape(c.accountSID), resource)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("twilio client: new request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twilio client: http do: %w", err)
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("twilio client: read response: %w", err)
	}

	parsed := parseBody(body)
	result := &Result{
		SID:        parsed.sid,
		Status:     parsed.status,
		ErrorCode:  parsed.code,
		Message:    parsed.message,
		HTTPStatus: resp.StatusCode,
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		c.logger.Debug().
			Str("resource", resource).
			Str("sid", result.SID).
			Str("status", result.Status).
			Msg("twilio request accepted")
		return result, nil
	}

	message := result.Message
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	if result.ErrorCode > 0 {
		return result, fmt.Errorf("twilio client: error %d: %s", result.ErrorCode, message)
	}
	return result, fmt.Errorf("twilio client: http %d: %s", resp.StatusCode, message)
}

func (c *Client) readBody(r io.Reader) ([]byte, error) {
	limit := c.maxBodyBytes
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	return io.ReadAll(io.LimitReader(r, limit))
}

type parsedBody struct {
	sid     string
	status  string
	code    int
	message string
}

// parseBody tolerates both the typed success payload and the error payload;
// anything unparseable degrades to zero values.
func parseBody(body []byte) parsedBody {
	var typed struct {
		SID     string `json:"sid"`
		Status  string `json:"status"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &typed); err == nil {
		return parsedBody{sid: typed.SID, status: typed.Status, code: typed.Code, message: typed.Message}
	}

	var generic map[string]any
	if err := json.Unmarshal(body, &generic); err != nil {
		return parsedBody{}
	}
	out := parsedBody{}
	if v, ok := generic["sid"].(string); ok {
		out.sid = v
	}
	if v, ok := generic["status"].(string); ok {
		out.status = v
	}
	if v, ok := generic["message"].(string); ok {
		out.message = v
	}
	if v, ok := generic["code"].(float64); ok {
		out.code = int(v)
	}
	return out
}
