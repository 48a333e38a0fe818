// Package storage turns stored diagram preview references into URLs that
// workers can download.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/target/console-api/config"
	"github.com/target/console-api/internal/core"
)

type presignClient interface {
	PresignedGetObject(ctx context.Context, bucket, object string, expiry time.Duration, params url.Values) (*url.URL, error)
}

// MinioPresigner presigns object keys against an S3-compatible store.
// References that are already absolute http(s) URLs pass through unchanged.
type MinioPresigner struct {
	client presignClient
	bucket string
	expiry time.Duration
}

var _ core.PreviewSigner = (*MinioPresigner)(nil)

// NewMinioPresigner builds a presigner from storage configuration.
func NewMinioPresigner(cfg config.StorageConfig) (*MinioPresigner, error) {
	if !cfg.IsEnabled() {
		return nil, errors.New("storage endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	return &MinioPresigner{client: client, bucket: cfg.Bucket, expiry: cfg.URLExpiry}, nil
}

// PreviewURL returns a time-limited GET URL for ref.
func (p *MinioPresigner) PreviewURL(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("empty preview reference")
	}
	if isAbsoluteURL(ref) {
		return ref, nil
	}
	u, err := p.client.PresignedGetObject(ctx, p.bucket, strings.TrimPrefix(ref, "/"), p.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", ref, err)
	}
	return u.String(), nil
}

// PassthroughSigner returns references unchanged. It is used when no object
// store is configured and previews are stored as URLs.
type PassthroughSigner struct{}

// PreviewURL returns ref as is.
func (PassthroughSigner) PreviewURL(_ context.Context, ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", errors.New("empty preview reference")
	}
	return ref, nil
}

func isAbsoluteURL(ref string) bool {
	u, err := url.Parse(ref)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
