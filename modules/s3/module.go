// Package s3 registers the UploadReport node type, which publishes a report
// or a local file to a pre-signed object storage URL.
package s3

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"resty.dev/v3"

	"github.com/vk/assetgraph/internal/ctxlog"
	"github.com/vk/assetgraph/internal/httpclient"
	"github.com/vk/assetgraph/internal/node"
	"github.com/vk/assetgraph/internal/registry"
)

// TypeUploadReport is the registered type name.
const TypeUploadReport = "UploadReport"

const defaultField = "markdown_report"

// Module implements the registry.Module interface for this package.
type Module struct {
	// Client is used for uploads. A pooled client is created on registration
	// when it is nil.
	Client *http.Client

	rc *resty.Client
}

// Input defines the params of an UploadReport node. Exactly one source is
// used: SourcePath when set, otherwise the state field Field.
type Input struct {
	UploadURL   string
	SourcePath  string
	Field       string
	ContentType string
}

// Register registers the UploadReport node type.
func (m *Module) Register(r *registry.Registry) error {
	if m.Client == nil {
		m.Client = httpclient.New(0)
	}
	m.rc = resty.NewWithClient(m.Client)
	return r.Register(TypeUploadReport, m.newUpload)
}

// Close releases idle connections.
func (m *Module) Close() error {
	if m.rc == nil {
		return nil
	}
	return m.rc.Close()
}

func decodeInput(params node.Params) (*Input, error) {
	in := &Input{}
	var err error
	if in.UploadURL, err = params.String("upload_url", ""); err != nil {
		return nil, err
	}
	if in.UploadURL == "" {
		return nil, errors.New("param 'upload_url' is required")
	}
	if in.SourcePath, err = params.String("source_path", ""); err != nil {
		return nil, err
	}
	if in.Field, err = params.String("field", defaultField); err != nil {
		return nil, err
	}
	if in.ContentType, err = params.String("content_type", ""); err != nil {
		return nil, err
	}
	return in, nil
}

func (m *Module) newUpload(params node.Params) (node.Node, error) {
	in, err := decodeInput(params)
	if err != nil {
		return nil, err
	}

	return node.Func(func(ctx context.Context, nc *node.Context) (*node.Output, error) {
		logger := ctxlog.FromContext(ctx).With("action", "upload")

		body, contentType, err := in.payload(nc)
		if err != nil {
			return nil, err
		}

		logger.Info("Uploading report", "size", len(body), "contentType", contentType)
		res, err := m.rc.R().
			SetContext(ctx).
			SetHeader("Content-Type", contentType).
			SetBody(body).
			Put(in.UploadURL)
		if err != nil {
			return nil, fmt.Errorf("failed to execute upload request: %w", err)
		}
		if res.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("upload failed with status: %s", res.Status())
		}

		logger.Info("Successfully uploaded report", "status", res.Status())
		return &node.Output{Value: map[string]any{
			"success": true,
			"status":  res.Status(),
			"size":    len(body),
		}}, nil
	}), nil
}

// payload returns the bytes to upload and their content type.
func (in *Input) payload(nc *node.Context) ([]byte, string, error) {
	if in.SourcePath != "" {
		data, err := os.ReadFile(in.SourcePath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read source file '%s': %w", in.SourcePath, err)
		}
		contentType := in.ContentType
		if contentType == "" {
			contentType = mime.TypeByExtension(filepath.Ext(in.SourcePath))
		}
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		return data, contentType, nil
	}

	text := nc.State.String(in.Field)
	if text == "" {
		return nil, "", fmt.Errorf("missing required state keys: %s", in.Field)
	}
	contentType := in.ContentType
	if contentType == "" {
		contentType = "text/markdown; charset=utf-8"
		if in.Field == "report_html" {
			contentType = "text/html; charset=utf-8"
		}
	}
	return []byte(text), contentType, nil
}
