package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/bondoracle/internal/crypto"
)

// client sends signed requests to an oracle server.
type client struct {
	baseURL string
	apiKey  string
	signer  *crypto.Signer
	http    *http.Client
	now     func() time.Time
}

func newClient(baseURL, apiKey string, signer *crypto.Signer) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		signer:  signer,
		http:    &http.Client{Timeout: 30 * time.Second},
		now:     time.Now,
	}
}

// do signs and sends one request and returns the response body. Non-2xx
// responses are returned as errors carrying the body.
func (c *client) do(method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	headers, err := c.signer.RequestHeadersAt(method, req.URL.Path, body, c.now().Unix())
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(respBody))
	}
	return respBody, nil
}
