package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/pagesmith/internal/version"
)

// postJSON sends body and decodes a 2xx response into out. Transport
// failures, 408, 429 and 5xx are retryable GenerationFailed; other 4xx are
// permanent.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.GenerationFailed("failed to marshal model request").WithCause(err).Build()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errors.GenerationFailed("failed to create model request").WithCause(err).Build()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return errors.GenerationFailed("model request failed").WithCause(err).Retryable().Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		limited, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		b := errors.GenerationFailed(fmt.Sprintf("model API error: %s", resp.Status)).
			WithContext("code", resp.StatusCode).
			WithContext("response", strings.ReplaceAll(string(limited), "\n", " "))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode >= 500 {
			b = b.Retryable()
		}
		return b.Build()
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.GenerationFailed("failed to decode model response").WithCause(err).Build()
	}
	return nil
}
