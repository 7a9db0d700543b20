// Package http_request registers the HttpRequest node type, which performs a
// single HTTP call and records the response.
package http_request

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"resty.dev/v3"

	"github.com/vk/assetgraph/internal/ctxlog"
	"github.com/vk/assetgraph/internal/httpclient"
	"github.com/vk/assetgraph/internal/node"
	"github.com/vk/assetgraph/internal/registry"
)

// TypeHttpRequest is the registered type name.
const TypeHttpRequest = "HttpRequest"

// Module implements the registry.Module interface for this package.
type Module struct {
	// Client is shared by every HttpRequest node. A pooled client is created
	// on registration when it is nil.
	Client *http.Client

	rc *resty.Client
}

// Input holds the decoded params of one node.
type Input struct {
	URL          string
	Method       string
	Headers      map[string]string
	Body         string
	ExpectStatus int
}

// Register registers the HttpRequest node type.
func (m *Module) Register(r *registry.Registry) error {
	if m.Client == nil {
		m.Client = httpclient.New(0)
	}
	m.rc = resty.NewWithClient(m.Client)
	return r.Register(TypeHttpRequest, m.newRequest)
}

// Close releases idle connections of the shared client.
func (m *Module) Close() error {
	if m.rc == nil {
		return nil
	}
	return m.rc.Close()
}

func decodeInput(params node.Params) (*Input, error) {
	in := &Input{}
	var err error
	if in.URL, err = params.String("url", ""); err != nil {
		return nil, err
	}
	if in.URL == "" {
		return nil, errors.New("param 'url' is required")
	}
	if in.Method, err = params.String("method", http.MethodGet); err != nil {
		return nil, err
	}
	in.Method = strings.ToUpper(in.Method)
	if in.Body, err = params.String("body", ""); err != nil {
		return nil, err
	}
	if in.ExpectStatus, err = params.Int("expect_status", 0); err != nil {
		return nil, err
	}

	if raw, ok := params["headers"]; ok && raw != nil {
		headers, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("param \"headers\" must be an object, got %T", raw)
		}
		in.Headers = make(map[string]string, len(headers))
		for k, v := range headers {
			in.Headers[k] = fmt.Sprint(v)
		}
	}
	return in, nil
}

func (m *Module) newRequest(params node.Params) (node.Node, error) {
	in, err := decodeInput(params)
	if err != nil {
		return nil, err
	}

	return node.Func(func(ctx context.Context, nc *node.Context) (*node.Output, error) {
		logger := ctxlog.FromContext(ctx)
		logger.Info("Making HTTP request", "method", in.Method, "url", in.URL)

		req := m.rc.R().SetContext(ctx).SetHeaders(in.Headers)
		if in.Body != "" {
			req.SetBody(in.Body)
		}
		res, err := req.Execute(in.Method, in.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}

		logger.Info("Received HTTP response", "status", res.Status())
		if in.ExpectStatus != 0 && res.StatusCode() != in.ExpectStatus {
			return nil, fmt.Errorf("unexpected status %d, want %d", res.StatusCode(), in.ExpectStatus)
		}

		return &node.Output{Value: map[string]any{
			"status_code": res.StatusCode(),
			"body":        res.String(),
		}}, nil
	}), nil
}
