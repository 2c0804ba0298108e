package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

const maxResponseBytes = 32 << 20

// doJSON sends body as JSON and decodes a 2xx response into out. Non-2xx
// responses are turned into a ProviderError using errMessage to pull a
// readable message from the body.
func doJSON(ctx context.Context, client *http.Client, kind Kind, method, endpoint string, headers map[string]string, body, out any, errMessage func([]byte) string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return wrapErr(kind, "encode request", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return wrapErr(kind, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return wrapErr(kind, "http request", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return wrapErr(kind, "read response", err)
	}
	if resp.StatusCode >= 300 {
		if errMessage != nil {
			if msg := strings.TrimSpace(errMessage(raw)); msg != "" {
				return providerErr(kind, "%s (status %d)", msg, resp.StatusCode)
			}
		}
		return providerErr(kind, "status %d: %s", resp.StatusCode, truncate(strings.TrimSpace(string(raw)), 300))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return wrapErr(kind, "decode response", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
