package gcsuploader

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/dvloznov/swg-merchant/internal/logger"
	"github.com/dvloznov/swg-merchant/internal/report"
)

// Uploader stores one object and returns its URI.
type Uploader interface {
	Upload(ctx context.Context, bucketName, objectName, contentType string, data []byte) (string, error)
}

// GCSUploader is the Cloud Storage implementation of Uploader.
type GCSUploader struct{}

// NewGCSUploader creates a GCSUploader.
func NewGCSUploader() *GCSUploader {
	return &GCSUploader{}
}

// Upload delegates to UploadBytes.
func (u *GCSUploader) Upload(ctx context.Context, bucketName, objectName, contentType string, data []byte) (string, error) {
	return UploadBytes(ctx, bucketName, objectName, contentType, data)
}

// ReportFile is the Markdown file name inside a report folder.
const ReportFile = "report.md"

// PublishReport uploads the Markdown report and its CSV extracts under one
// folder named by ReportPrefix, returning the URIs written.
func PublishReport(ctx context.Context, up Uploader, bucketName, label string, generated time.Time,
	markdown string, extracts []report.Extract) ([]string, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("PublishReport: bucket is required")
	}
	prefix := ReportPrefix(label, generated)
	log := logger.FromContext(ctx)

	var uris []string
	uri, err := up.Upload(ctx, bucketName, path.Join(prefix, ReportFile), "text/markdown; charset=utf-8", []byte(markdown))
	if err != nil {
		return nil, fmt.Errorf("PublishReport: %w", err)
	}
	uris = append(uris, uri)

	for _, e := range extracts {
		uri, err := up.Upload(ctx, bucketName, path.Join(prefix, e.Name), "text/csv", e.Data)
		if err != nil {
			return uris, fmt.Errorf("PublishReport: %w", err)
		}
		uris = append(uris, uri)
	}
	log.Info().Str("bucket", bucketName).Str("prefix", prefix).Int("objects", len(uris)).Msg("report published")
	return uris, nil
}
