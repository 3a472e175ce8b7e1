package outputs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/imamik/rayform/internal/config"
	"github.com/imamik/rayform/internal/platform/s3"
)

// Publisher stores the outputs document remotely.
type Publisher interface {
	EnsureBucket(ctx context.Context, bucket string) error
	PutObject(ctx context.Context, bucket, key, contentType string, data []byte) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	DeleteObject(ctx context.Context, bucket, key string) error
}

var _ Publisher = (*s3.Client)(nil)

const contentType = "application/yaml"

// ObjectKey returns the S3 key the document is published under.
func ObjectKey(cfg *config.Config) string {
	return path.Join(cfg.Outputs.S3Prefix, filepath.Base(cfg.Outputs.File))
}

// NewPublisher returns an S3 publisher for cfg, or nil when no bucket is
// configured.
func NewPublisher(ctx context.Context, cfg *config.Config) (Publisher, error) {
	if cfg.Outputs.S3Bucket == "" {
		return nil, nil
	}
	client, err := s3.NewClient(ctx, s3.Options{Region: cfg.Region, Endpoint: cfg.Outputs.S3Endpoint})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	return client, nil
}

// WriteFile writes doc as YAML to path, creating parent directories.
func WriteFile(doc *Document, path string) error {
	data, err := Encode(doc, FormatYAML)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create outputs directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write outputs file: %w", err)
	}
	return nil
}

// Load reads a document from the outputs file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read outputs file: %w", err)
	}
	return Decode(data)
}

// Publish uploads doc to the configured bucket.
func Publish(ctx context.Context, pub Publisher, cfg *config.Config, doc *Document) error {
	data, err := Encode(doc, FormatYAML)
	if err != nil {
		return err
	}
	if err := pub.EnsureBucket(ctx, cfg.Outputs.S3Bucket); err != nil {
		return fmt.Errorf("failed to ensure bucket %s: %w", cfg.Outputs.S3Bucket, err)
	}
	if err := pub.PutObject(ctx, cfg.Outputs.S3Bucket, ObjectKey(cfg), contentType, data); err != nil {
		return fmt.Errorf("failed to publish outputs: %w", err)
	}
	return nil
}

// Fetch downloads the published document.
func Fetch(ctx context.Context, pub Publisher, cfg *config.Config) (*Document, error) {
	data, err := pub.GetObject(ctx, cfg.Outputs.S3Bucket, ObjectKey(cfg))
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Read prefers the local outputs file and falls back to the published copy.
func Read(ctx context.Context, pub Publisher, cfg *config.Config) (*Document, error) {
	doc, err := Load(cfg.Outputs.File)
	if err == nil || pub == nil || !errors.Is(err, fs.ErrNotExist) {
		return doc, err
	}
	return Fetch(ctx, pub, cfg)
}

// Remove deletes the local file and the published object. Missing copies
// are not an error.
func Remove(ctx context.Context, pub Publisher, cfg *config.Config) error {
	var errs []error
	if err := os.Remove(cfg.Outputs.File); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, fmt.Errorf("failed to remove outputs file: %w", err))
	}
	if pub != nil && cfg.Outputs.S3Bucket != "" {
		if err := pub.DeleteObject(ctx, cfg.Outputs.S3Bucket, ObjectKey(cfg)); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete published outputs: %w", err))
		}
	}
	return errors.Join(errs...)
}
