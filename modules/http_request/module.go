// Package http_request provides the `http_request` step handler.
package http_request

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/specialistvlad/stepgrid/internal/ctxlog"
	"github.com/specialistvlad/stepgrid/internal/registry"
	"github.com/specialistvlad/stepgrid/internal/step"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Client performs the requests. Nil means http.DefaultClient.
	Client *http.Client
}

// Input holds the handler's arguments.
type Input struct {
	URL     string            `cty:"url"`
	Method  *string           `cty:"method"`
	Body    *string           `cty:"body"`
	Headers map[string]string `cty:"headers"`
}

// Request performs one HTTP request. Arguments: url (required), method
// (default GET), body and headers. Server errors are returned as errors so
// the step's retry policy applies; client errors are permanent.
func (m *Module) Request(ctx context.Context, args step.Args) (any, error) {
	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}

	var in Input
	if err := args.Decode(&in); err != nil {
		return nil, step.Permanent(err)
	}
	url := in.URL
	method := http.MethodGet
	if in.Method != nil {
		method = *in.Method
	}
	var body io.Reader
	if in.Body != nil {
		body = strings.NewReader(*in.Body)
	}

	logger := ctxlog.FromContext(ctx)
	logger.Info("Making HTTP request", "method", method, "url", url)

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, body)
	if err != nil {
		return nil, step.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	for k, v := range in.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	logger.Info("Received HTTP response", "status", resp.Status)

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("server responded with %s", resp.Status)
	case resp.StatusCode >= 400:
		return nil, step.Permanent(fmt.Errorf("request rejected with %s", resp.Status))
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"body":        string(bodyBytes),
	}, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register("http_request", m.Request)
}
