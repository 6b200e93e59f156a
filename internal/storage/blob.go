// Package storage keeps workbook files: uploaded sources fetched by key and
// archived copies of every ingested workbook.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/mind-engage/emoscreen/internal/config"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidKey = errors.New("invalid blob key")
)

type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (string, error) // returns canonical key
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	SignedURL(ctx context.Context, key string) (string, error) // fs returns "file://..." for dev
}

// Open builds the store selected by BLOB_DRIVER.
func Open(ctx context.Context, cfg config.Config) (BlobStore, error) {
	switch strings.ToLower(cfg.BlobDriver) {
	case "", "fs":
		return NewFSStore(cfg.BlobBasePath)
	case "s3":
		return NewS3Store(ctx, S3Config{
			Bucket:    cfg.BlobS3Bucket,
			Region:    cfg.BlobS3Region,
			Endpoint:  cfg.BlobS3Endpoint,
			PathStyle: cfg.BlobS3PathStyle,
		})
	}
	return nil, fmt.Errorf("unknown blob driver %q", cfg.BlobDriver)
}

// CleanKey normalizes a key to a relative slash path and rejects keys that
// would escape the store root.
func CleanKey(key string) (string, error) {
	k := strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if k == "" {
		return "", ErrInvalidKey
	}
	for _, seg := range strings.Split(k, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	k = strings.TrimPrefix(path.Clean("/"+k), "/")
	if k == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return k, nil
}
