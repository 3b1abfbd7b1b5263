// Package httprequest implements the generic HTTP request action.
package httprequest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/protocol"
)

const (
	defaultTimeoutSeconds = 30
	retryDelay            = time.Second
)

var (
	ErrURLRequired   = errors.New("http request action requires a url payload field")
	ErrMethodInvalid = errors.New("invalid HTTP method")
)

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
	http.MethodHead:   true,
}

type Action struct {
	url     string
	method  string
	body    string
	headers map[string]string
	timeout time.Duration
	retries int

	client *http.Client
	logger *slog.Logger
	sleep  func(time.Duration)
}

func NewAction(params protocol.ActionParams, logger *slog.Logger) (*Action, error) {
	rawURL, _ := params.Payload["url"].(string)
	if rawURL == "" {
		return nil, ErrURLRequired
	}

	method, _ := params.Payload["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	method = strings.ToUpper(method)
	if !allowedMethods[method] {
		return nil, fmt.Errorf("%w: %s", ErrMethodInvalid, method)
	}

	body, _ := params.Payload["body"].(string)

	headers := make(map[string]string)
	if headersConfig, ok := params.Payload["headers"].(map[string]any); ok {
		for key, value := range headersConfig {
			if str, ok := value.(string); ok {
				headers[key] = str
			}
		}
	}

	timeout := defaultTimeoutSeconds * time.Second
	if seconds, ok := params.Payload["timeout"].(float64); ok && seconds > 0 {
		timeout = time.Duration(seconds) * time.Second
	}

	retries := 0
	if count, ok := params.Payload["retries"].(float64); ok && count > 0 {
		retries = int(count)
	}

	return &Action{
		url:     rawURL,
		method:  method,
		body:    body,
		headers: headers,
		timeout: timeout,
		retries: retries,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With("action", "http_request"),
		sleep:   time.Sleep,
	}, nil
}

// Execute performs the request, retrying transport errors and 5xx responses.
// A response that arrives, whatever its status code, completes the step.
func (a *Action) Execute(ctx context.Context, _ models.Variables) (protocol.ExecuteResult, error) {
	var (
		resp    *http.Response
		lastErr error
	)

	attempts := a.retries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			a.logger.InfoContext(ctx, "Retrying request", "attempt", attempt, "of", attempts)
			a.sleep(retryDelay)
		}

		req, err := http.NewRequestWithContext(ctx, a.method, a.url, strings.NewReader(a.body))
		if err != nil {
			return protocol.ExecuteResult{}, fmt.Errorf("failed to build request: %w", err)
		}

		for key, value := range a.headers {
			req.Header.Set(key, value)
		}

		resp, err = a.client.Do(req)
		if err != nil {
			lastErr = err
			resp = nil

			continue
		}

		if resp.StatusCode >= http.StatusInternalServerError && attempt < attempts {
			err = resp.Body.Close()
			if err != nil {
				a.logger.ErrorContext(ctx, "failed to close response body", "error", err)
			}

			lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
			resp = nil

			continue
		}

		break
	}

	if resp == nil {
		a.logger.WarnContext(ctx, "Request failed after all attempts", "url", a.url, "error", lastErr)

		return protocol.ExecuteResult{Status: protocol.StatusFailure}, nil
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			a.logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to read response body", "error", err)

		return protocol.ExecuteResult{Status: protocol.StatusFailure}, nil
	}

	a.logger.InfoContext(ctx, "Request completed", "url", a.url, "status", resp.StatusCode)

	return protocol.ExecuteResult{
		Status: protocol.StatusSuccess,
		Variables: models.Variables{
			{Key: "StatusCode", Value: strconv.Itoa(resp.StatusCode)},
			{Key: "ResponseBody", Value: string(body)},
		},
	}, nil
}
