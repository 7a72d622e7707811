// Package s3 provides the `s3_upload` step handler, which uploads a local
// file to a pre-signed URL.
package s3

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/specialistvlad/stepgrid/internal/ctxlog"
	"github.com/specialistvlad/stepgrid/internal/registry"
	"github.com/specialistvlad/stepgrid/internal/step"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Client performs the uploads. Nil means http.DefaultClient.
	Client *http.Client
}

// Input holds the handler's arguments.
type Input struct {
	SourcePath string `cty:"source_path"`
	UploadURL  string `cty:"upload_url"`
}

// Upload PUTs the file at source_path to upload_url.
func (m *Module) Upload(ctx context.Context, args step.Args) (any, error) {
	logger := ctxlog.FromContext(ctx).With("action", "upload")
	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}

	var in Input
	if err := args.Decode(&in); err != nil {
		return nil, step.Permanent(err)
	}
	sourcePath, uploadURL := in.SourcePath, in.UploadURL

	file, err := os.Open(sourcePath)
	if err != nil {
		return nil, step.Permanent(fmt.Errorf("failed to open source file '%s': %w", sourcePath, err))
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file stats for '%s': %w", sourcePath, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, file)
	if err != nil {
		return nil, step.Permanent(fmt.Errorf("failed to create S3 upload request: %w", err))
	}

	contentType := mime.TypeByExtension(filepath.Ext(sourcePath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = stat.Size()

	logger.Info("Uploading file to S3", "source", sourcePath, "size", stat.Size(), "contentType", contentType)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute S3 upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("S3 upload failed with status: %s", resp.Status)
	}

	logger.Info("Successfully uploaded file", "status", resp.Status)
	return map[string]any{"success": true, "status": resp.Status, "size": stat.Size()}, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register("s3_upload", m.Upload)
}
