package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	domainErrors "github.com/polkiloo/vendbot/internal/domain/errors"
)

const defaultRetryAfter = 5 * time.Second

// TooManyRequestsError represents the Bot API flood-control signal.
type TooManyRequestsError struct {
	RetryAfter time.Duration
}

func (e TooManyRequestsError) Error() string {
	return fmt.Sprintf("too many requests, retry after %s", e.RetryAfter)
}

// APIError is a non-ok Bot API reply.
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api error %d: %s", e.Code, e.Description)
}

// permanentDescriptions mark recipients that will never accept messages again.
var permanentDescriptions = []string{
	"chat not found",
	"user is deactivated",
	"bot was blocked",
	"bot can't initiate conversation",
}

// HTTPClient talks to the Bot API over HTTPS.
type HTTPClient struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// envelope mirrors every Bot API reply.
type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters,omitempty"`
}

// NewHTTPClient creates a Bot API client. The HTTP timeout is pollTimeout
// plus a margin so long polls are not cut short.
func NewHTTPClient(baseURL, token string, pollTimeout time.Duration, logger *slog.Logger) (*HTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse telegram url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("telegram url must be absolute")
	}
	if token == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	return &HTTPClient{
		baseURL: parsed,
		token:   token,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: pollTimeout + 10*time.Second,
		},
	}, nil
}

func (c *HTTPClient) endpoint(method string) string {
	u := *c.baseURL
	u.Path = path.Join(u.Path, "bot"+c.token, method)
	return u.String()
}

// call posts payload as JSON and decodes the result into out.
func (c *HTTPClient) call(ctx context.Context, chatID int64, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(method), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, chatID, method, out)
}

func (c *HTTPClient) do(req *http.Request, chatID int64, method string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domainErrors.TransportError{ChatID: chatID, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domainErrors.TransportError{ChatID: chatID, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Error("telegram reply is not json",
			slog.String("method", method),
			slog.Int("status", resp.StatusCode),
		)
		return &domainErrors.TransportError{ChatID: chatID, Err: fmt.Errorf("decode %s reply: %w", method, err)}
	}
	if env.OK {
		if out == nil || len(env.Result) == 0 {
			return nil
		}
		return json.Unmarshal(env.Result, out)
	}

	return c.classify(resp, env, chatID, method)
}

func (c *HTTPClient) classify(resp *http.Response, env envelope, chatID int64, method string) error {
	code := env.ErrorCode
	if code == 0 {
		code = resp.StatusCode
	}

	if code == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		if env.Parameters != nil && env.Parameters.RetryAfter > 0 {
			retryAfter = time.Duration(env.Parameters.RetryAfter) * time.Second
		}
		return &domainErrors.TransportError{
			ChatID:     chatID,
			RetryAfter: retryAfter,
			Err:        TooManyRequestsError{RetryAfter: retryAfter},
		}
	}

	apiErr := &APIError{Code: code, Description: env.Description}
	permanent := code == http.StatusForbidden
	if code == http.StatusBadRequest {
		desc := strings.ToLower(env.Description)
		for _, marker := range permanentDescriptions {
			if strings.Contains(desc, marker) {
				permanent = true
				break
			}
		}
	}
	if !permanent {
		c.logger.Error("telegram request failed",
			slog.String("method", method),
			slog.Int("status", code),
			slog.String("description", env.Description),
		)
	}
	return &domainErrors.TransportError{ChatID: chatID, Permanent: permanent, Err: apiErr}
}

// RetryAfter extracts the flood-control delay from err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var tm TooManyRequestsError
	if errors.As(err, &tm) {
		return tm.RetryAfter, true
	}
	return 0, false
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return defaultRetryAfter
}
