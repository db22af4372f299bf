package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/pagesmith/internal/version"
)

// apiClient holds the common HTTP plumbing for forge REST calls.
type apiClient struct {
	httpClient    *http.Client
	apiURL        string
	token         string
	customHeaders map[string]string
}

func newAPIClient(httpClient *http.Client, apiURL, token string) *apiClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &apiClient{
		httpClient:    httpClient,
		apiURL:        apiURL,
		token:         token,
		customHeaders: map[string]string{},
	}
}

// newRequest builds a request against an endpoint relative to the API URL.
// Query strings in endpoint are preserved.
func (c *apiClient) newRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	cleanEndpoint := strings.TrimPrefix(endpoint, "/")
	var rawQuery string
	if idx := strings.Index(cleanEndpoint, "?"); idx != -1 {
		rawQuery = cleanEndpoint[idx+1:]
		cleanEndpoint = cleanEndpoint[:idx]
	}

	u, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, errors.ForgeError("failed to parse API URL").
			WithCause(err).
			WithContext("api_url", c.apiURL).
			Permanent().
			Build()
	}
	u.Path = path.Join(strings.TrimSuffix(u.Path, "/"), "/", cleanEndpoint)
	u.RawQuery = rawQuery

	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.ForgeError("failed to marshal request body").WithCause(err).Permanent().Build()
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, errors.ForgeError("failed to create request").
			WithCause(err).
			WithContext("method", method).
			WithContext("url", u.String()).
			Permanent().
			Build()
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", version.UserAgent())
	for k, v := range c.customHeaders {
		req.Header.Set(k, v)
	}
	return req, nil
}

// call performs a request and decodes a successful JSON response into
// result. Error responses are classified by classifyResponse.
func (c *apiClient) call(ctx context.Context, method, endpoint string, body, result any) error {
	req, err := c.newRequest(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NetworkError("failed to execute forge request").
			WithCause(err).
			WithContext("method", req.Method).
			WithContext("url", req.URL.String()).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		limited, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return classifyResponse(req, resp, strings.ReplaceAll(string(limited), "\n", " "))
	}
	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return errors.ForgeError("failed to decode response").WithCause(err).Build()
		}
	}
	return nil
}

// classifyResponse maps an error response onto the failure taxonomy.
func classifyResponse(req *http.Request, resp *http.Response, body string) error {
	msg := fmt.Sprintf("forge API error: %s", resp.Status)
	var b *errors.ErrorBuilder
	switch {
	case isRateLimited(resp, body):
		b = errors.RepoRateLimited(msg).
			WithContext("reset", resp.Header.Get("X-RateLimit-Reset")).
			WithContext("retry_after", resp.Header.Get("Retry-After"))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		b = errors.RepoAuth(msg)
	case resp.StatusCode == http.StatusNotFound:
		b = errors.NewError(errors.CategoryNotFound, msg)
	case resp.StatusCode >= 500:
		b = errors.ForgeError(msg)
	default:
		b = errors.ForgeError(msg).Permanent()
	}
	return b.
		WithContext("code", resp.StatusCode).
		WithContext("method", req.Method).
		WithContext("url", req.URL.String()).
		WithContext("response", body).
		Build()
}

func isRateLimited(resp *http.Response, body string) bool {
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if resp.StatusCode != http.StatusForbidden {
		return false
	}
	if resp.Header.Get("X-RateLimit-Remaining") == "0" || resp.Header.Get("Retry-After") != "" {
		return true
	}
	lower := strings.ToLower(body)
	return strings.Contains(lower, "rate limit")
}

// statusOf returns the HTTP status recorded on a classified forge error, or 0.
func statusOf(err error) int {
	c, ok := errors.AsClassified(err)
	if !ok {
		return 0
	}
	v, ok := c.Context().Get("code")
	if !ok {
		return 0
	}
	code, _ := v.(int)
	return code
}
