package platform

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

	"golang.org/x/time/rate"
)

// RequestsPerSecond caps API calls per platform client. Gate runs share one
// client across workers, so the cap holds for the whole run.
var RequestsPerSecond = 10.0

// apiClient is the JSON-over-HTTP plumbing shared by the hosted platforms.
type apiClient struct {
	platform string
	baseURL  string
	auth     func(*http.Request)
	client   *http.Client
	limiter  *rate.Limiter
}

func newAPIClient(platform, baseURL string, auth func(*http.Request)) *apiClient {
	return &apiClient{
		platform: platform,
		baseURL:  strings.TrimRight(baseURL, "/"),
		auth:     auth,
		client:   &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(RequestsPerSecond), int(RequestsPerSecond)),
	}
}

// do sends a request and decodes a JSON response into out when out is non-nil.
// Non-2xx responses become *APIError.
func (c *apiClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", c.platform, err)
		}
		body = bytes.NewReader(b)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s request: %w", c.platform, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.auth != nil {
		c.auth(req)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", c.platform, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", c.platform, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.apiError(resp.StatusCode, respBody)
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s response: %w", c.platform, err)
	}
	return nil
}

func (c *apiClient) apiError(status int, body []byte) *APIError {
	e := &APIError{Platform: c.platform, Status: status, Message: errorMessage(body)}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		e.Err = ErrUnauthorized
	case http.StatusNotFound:
		e.Err = ErrNotFound
	case http.StatusConflict:
		e.Err = ErrRepoExists
	}
	return e
}

// errorMessage pulls a readable message out of a platform error body.
func errorMessage(body []byte) string {
	var payload struct {
		Message any `json:"message"`
		Error   any `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, v := range []any{payload.Message, payload.Error} {
			switch m := v.(type) {
			case string:
				if m != "" {
					return m
				}
			case nil:
			default:
				b, _ := json.Marshal(m)
				return string(b)
			}
		}
	}
	return strings.TrimSpace(string(body))
}

// repoErr narrows a 404 from a repository endpoint to ErrRepoNotFound.
func repoErr(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Err == ErrNotFound {
		apiErr.Err = ErrRepoNotFound
	}
	return err
}

// exists turns a lookup error into a boolean, treating 404 as false.
func exists(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return false, nil
	}
	return false, err
}
