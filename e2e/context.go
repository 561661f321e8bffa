// Package e2e drives a running correio server over its HTTP API with
// godog scenarios. Point CORREIO_BASE_URL at the server and
// CORREIO_SERVICE_TOKEN at a valid service JWT before running.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// TestContext carries shared state across the steps of one scenario: the
// HTTP client, the last response, and ids captured along the way.
type TestContext struct {
	baseURL string
	token   string
	client  *http.Client

	lastStatus int
	lastBody   map[string]any

	messageID string
	pixID     string
}

// NewTestContext builds a context from the environment.
func NewTestContext() (*TestContext, error) {
	baseURL := os.Getenv("CORREIO_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	token := os.Getenv("CORREIO_SERVICE_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("CORREIO_SERVICE_TOKEN is required")
	}
	return &TestContext{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.messageID = ""
	tc.pixID = ""
}

// POST sends a JSON body to the given path with the service token.
func (tc *TestContext) POST(path string, body any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(http.MethodPost, tc.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tc.token)
	return tc.do(req)
}

// GET fetches the given path with the service token plus any extra headers.
func (tc *TestContext) GET(path string, headers map[string]string) error {
	req, err := http.NewRequest(http.MethodGet, tc.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tc.token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return tc.do(req)
}

func (tc *TestContext) do(req *http.Request) error {
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody = nil

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &tc.lastBody); err != nil {
			return fmt.Errorf("decode response body: %w", err)
		}
	}
	return nil
}

// LastStatus returns the status code of the most recent response.
func (tc *TestContext) LastStatus() int {
	return tc.lastStatus
}

// GetResponseField looks a field up in the last response body. Dots descend
// into nested objects: "payment.pix_id".
func (tc *TestContext) GetResponseField(field string) (any, error) {
	if tc.lastBody == nil {
		return nil, fmt.Errorf("no response body captured")
	}
	var current any = tc.lastBody
	for _, part := range splitPath(field) {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", field, part)
		}
		current, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("field %q not present in response", field)
		}
	}
	return current, nil
}

// ResponseContains reports whether the last response body has the field.
func (tc *TestContext) ResponseContains(field string) bool {
	_, err := tc.GetResponseField(field)
	return err == nil
}

func (tc *TestContext) GetMessageID() string   { return tc.messageID }
func (tc *TestContext) SetMessageID(id string) { tc.messageID = id }
func (tc *TestContext) GetPixID() string       { return tc.pixID }
func (tc *TestContext) SetPixID(id string)     { tc.pixID = id }

func splitPath(field string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(field); i++ {
		if field[i] == '.' {
			parts = append(parts, field[start:i])
			start = i + 1
		}
	}
	return append(parts, field[start:])
}
