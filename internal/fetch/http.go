// Package fetch provides fetcher implementations that load data for warming.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prewarm/prewarm/internal/models"
)

const defaultMaxResponseSize = 10 * 1024 * 1024 // 10 MB

// AuthConfig describes how an HTTP fetch authenticates.
type AuthConfig struct {
	Type     string `yaml:"type" json:"type"` // none, basic, bearer, api_key
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
	Token    string `yaml:"token,omitempty" json:"token,omitempty"`
	APIKey   string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Header   string `yaml:"header,omitempty" json:"header,omitempty"` // api_key header, default X-API-Key
}

// Config describes an HTTP endpoint that returns a JSON object of warmable
// key/value pairs.
type Config struct {
	URL             string            `yaml:"url" json:"url"`
	Method          string            `yaml:"method,omitempty" json:"method,omitempty"`
	Headers         map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Body            string            `yaml:"body,omitempty" json:"body,omitempty"`
	Auth            *AuthConfig       `yaml:"auth,omitempty" json:"auth,omitempty"`
	SuccessCodes    []int             `yaml:"success_codes,omitempty" json:"success_codes,omitempty"`
	MaxResponseSize int64             `yaml:"max_response_size,omitempty" json:"max_response_size,omitempty"`
}

// HTTPFetcher fetches warm data from an HTTP endpoint. The response must be a
// JSON object; each top-level field becomes one cache entry.
type HTTPFetcher struct {
	config Config
	client *http.Client
}

var _ models.Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher builds a fetcher for the given endpoint. A nil client uses a
// default with a 30 second timeout.
func NewHTTPFetcher(cfg Config, client *http.Client) (*HTTPFetcher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("fetch: url is required")
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	if cfg.MaxResponseSize <= 0 {
		cfg.MaxResponseSize = defaultMaxResponseSize
	}
	if cfg.Auth != nil {
		switch cfg.Auth.Type {
		case "", "none", "basic", "bearer", "api_key":
		default:
			return nil, fmt.Errorf("fetch: unknown auth type %q", cfg.Auth.Type)
		}
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPFetcher{config: cfg, client: client}, nil
}

// Fetch performs the request and decodes the JSON object response.
func (f *HTTPFetcher) Fetch(ctx context.Context) (map[string]any, error) {
	var body io.Reader
	if f.config.Body != "" {
		body = bytes.NewReader([]byte(f.config.Body))
	}

	req, err := http.NewRequestWithContext(ctx, f.config.Method, f.config.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if f.config.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range f.config.Headers {
		req.Header.Set(k, v)
	}
	f.applyAuth(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", f.config.URL, err)
	}
	defer resp.Body.Close()

	if !f.isSuccess(resp.StatusCode) {
		// Drain a bounded amount so the connection can be reused.
		io.CopyN(io.Discard, resp.Body, 4096)
		return nil, fmt.Errorf("fetch %s: unexpected status %d", f.config.URL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(data)) > f.config.MaxResponseSize {
		return nil, fmt.Errorf("fetch %s: response exceeds %d bytes", f.config.URL, f.config.MaxResponseSize)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode response from %s: %w", f.config.URL, err)
	}
	return result, nil
}

func (f *HTTPFetcher) applyAuth(req *http.Request) {
	if f.config.Auth == nil {
		return
	}
	switch f.config.Auth.Type {
	case "basic":
		req.SetBasicAuth(f.config.Auth.Username, f.config.Auth.Password)
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+f.config.Auth.Token)
	case "api_key":
		header := f.config.Auth.Header
		if header == "" {
			header = "X-API-Key"
		}
		req.Header.Set(header, f.config.Auth.APIKey)
	}
}

func (f *HTTPFetcher) isSuccess(code int) bool {
	if len(f.config.SuccessCodes) == 0 {
		return code >= 200 && code < 300
	}
	for _, c := range f.config.SuccessCodes {
		if c == code {
			return true
		}
	}
	return false
}
