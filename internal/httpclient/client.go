package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hexbench/hexbench/internal/config"
)

// RequestBuilder produces identical requests for every virtual-user
// iteration of one execution.
type RequestBuilder struct {
	method  string
	target  string
	headers http.Header
	body    string
}

// NewRequestBuilder validates the request shape once up front. An
// unsupported method is a configuration error here, not a per-request
// failure later.
func NewRequestBuilder(cfg *config.Config) (*RequestBuilder, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	target := strings.TrimSpace(cfg.TargetURL)
	if target == "" {
		return nil, errors.New("target URL is required")
	}

	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = http.MethodGet
	}
	if !config.SupportedMethod(method) {
		return nil, fmt.Errorf("unsupported HTTP method: %s", cfg.Method)
	}

	headers := http.Header{}
	for key, value := range cfg.Headers {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" || strings.ContainsAny(trimmedKey, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", trimmedKey)
		}
		headers.Set(http.CanonicalHeaderKey(trimmedKey), value)
	}

	if token := strings.TrimSpace(cfg.AuthToken); token != "" {
		headers.Set("Authorization", "Bearer "+token)
	}

	return &RequestBuilder{
		method:  method,
		target:  target,
		headers: headers,
		body:    cfg.Body,
	}, nil
}

// Build creates a fresh request bound to ctx.
func (b *RequestBuilder) Build(ctx context.Context) (*http.Request, error) {
	if b == nil {
		return nil, errors.New("builder cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var body io.Reader
	if b.body != "" {
		body = strings.NewReader(b.body)
	}

	req, err := http.NewRequestWithContext(ctx, b.method, b.target, body)
	if err != nil {
		return nil, err
	}

	for key, values := range b.headers {
		for _, val := range values {
			req.Header.Add(key, val)
		}
	}

	if b.body != "" {
		req.ContentLength = int64(len(b.body))
		payload := b.body
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(payload)), nil
		}
	}

	return req, nil
}

// NewClient returns an http.Client tuned for many concurrent keep-alive
// connections against a single host.
func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
