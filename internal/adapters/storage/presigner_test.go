package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/console-api/config"
)

type fakePresign struct {
	bucket, object string
	expiry         time.Duration
	err            error
}

func (f *fakePresign) PresignedGetObject(_ context.Context, bucket, object string, expiry time.Duration, _ url.Values) (*url.URL, error) {
	f.bucket, f.object, f.expiry = bucket, object, expiry
	if f.err != nil {
		return nil, f.err
	}
	return url.Parse("https://store.example.com/" + bucket + "/" + object + "?X-Amz-Signature=abc")
}

func TestMinioPresigner_PreviewURL(t *testing.T) {
	fake := &fakePresign{}
	p := &MinioPresigner{client: fake, bucket: "previews", expiry: time.Hour}

	got, err := p.PreviewURL(context.Background(), "/proj/diag.png")
	require.NoError(t, err)
	assert.Equal(t, "https://store.example.com/previews/proj/diag.png?X-Amz-Signature=abc", got)
	assert.Equal(t, "proj/diag.png", fake.object)
	assert.Equal(t, time.Hour, fake.expiry)
}

func TestMinioPresigner_AbsoluteURLPassesThrough(t *testing.T) {
	fake := &fakePresign{}
	p := &MinioPresigner{client: fake, bucket: "previews", expiry: time.Hour}

	got, err := p.PreviewURL(context.Background(), "https://cdn.example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.png", got)
	assert.Empty(t, fake.object)
}

func TestMinioPresigner_Errors(t *testing.T) {
	p := &MinioPresigner{client: &fakePresign{err: errors.New("denied")}, bucket: "b"}

	_, err := p.PreviewURL(context.Background(), "key.png")
	require.ErrorContains(t, err, "denied")
	_, err = p.PreviewURL(context.Background(), "  ")
	require.Error(t, err)
}

func TestNewMinioPresigner(t *testing.T) {
	_, err := NewMinioPresigner(config.StorageConfig{})
	require.Error(t, err)

	p, err := NewMinioPresigner(config.StorageConfig{
		Endpoint: "localhost:9000", AccessKey: "ak", SecretKey: "sk",
		Bucket: "previews", URLExpiry: 15 * time.Minute,
	})
	require.NoError(t, err)

	got, err := p.PreviewURL(context.Background(), "https://x.example.com/p.png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "https://x.example.com"))
}

func TestPassthroughSigner(t *testing.T) {
	got, err := PassthroughSigner{}.PreviewURL(context.Background(), "s3://bucket/key")
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/key", got)

	_, err = PassthroughSigner{}.PreviewURL(context.Background(), "")
	require.Error(t, err)
}
