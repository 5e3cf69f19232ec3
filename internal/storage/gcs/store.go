// Package gcs stores artifacts in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/tjfontaine/genai-gateway/internal/domain"
	artifacts "github.com/tjfontaine/genai-gateway/internal/storage"
)

// MaxSignedURLTTL is the longest expiry V4 signing accepts.
const MaxSignedURLTTL = 7 * 24 * time.Hour

// Config selects the bucket and, optionally, explicit signing credentials.
// Without them the client library derives a signer from the ambient
// service account.
type Config struct {
	Bucket          string
	CredentialsFile string
	SignerEmail     string
	SignerKey       []byte
}

// Store is a GCS-backed ArtifactStore. Storage paths are gs://bucket/key.
type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
	cfg    Config
	now    func() time.Time
}

var (
	_ artifacts.ArtifactStore  = (*Store)(nil)
	_ artifacts.ArtifactLister = (*Store)(nil)
)

// New creates a store for cfg.Bucket. Extra client options are appended
// after the credentials option.
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, domain.ErrConfiguration("gcs bucket is required")
	}
	if cfg.CredentialsFile != "" {
		opts = append([]option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}, opts...)
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, domain.ErrConfiguration("failed to create gcs client: %v", err).WithCause(err)
	}
	return &Store{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

func (s *Store) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", domain.ErrStorage("upload", err)
	}
	if err := w.Close(); err != nil {
		return "", domain.ErrStorage("upload", err)
	}
	return s.pathOf(key), nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	key, err := s.keyOf(path)
	if err != nil {
		return err
	}
	err = s.bucket.Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return domain.ErrStorage("delete", err)
	}
	return nil
}

func (s *Store) SignURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	key, err := s.keyOf(path)
	if err != nil {
		return "", err
	}
	if ttl > MaxSignedURLTTL {
		ttl = MaxSignedURLTTL
	}

	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: s.now().Add(ttl),
	}
	if s.cfg.SignerEmail != "" && len(s.cfg.SignerKey) > 0 {
		opts.GoogleAccessID = s.cfg.SignerEmail
		opts.PrivateKey = s.cfg.SignerKey
	}

	signed, err := s.bucket.SignedURL(key, opts)
	if err != nil {
		return "", domain.ErrStorage("sign", err)
	}
	return signed, nil
}

// List returns objects whose key starts with prefix, as storage paths.
func (s *Store) List(ctx context.Context, prefix string) ([]artifacts.ObjectInfo, error) {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	var out []artifacts.ObjectInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, domain.ErrStorage("list", err)
		}
		out = append(out, artifacts.ObjectInfo{
			Path:    s.pathOf(attrs.Name),
			Size:    attrs.Size,
			Created: attrs.Created,
		})
	}
	return out, nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) pathOf(key string) string {
	return fmt.Sprintf("gs://%s/%s", s.cfg.Bucket, key)
}

// keyOf accepts either gs://bucket/key or a bare key.
func (s *Store) keyOf(path string) (string, error) {
	rest, ok := strings.CutPrefix(path, "gs://")
	if !ok {
		if path == "" {
			return "", domain.ErrValidation("storage path is empty")
		}
		return path, nil
	}
	bucket, key, found := strings.Cut(rest, "/")
	if !found || key == "" {
		return "", domain.ErrValidation("malformed storage path %q", path)
	}
	if bucket != s.cfg.Bucket {
		return "", domain.ErrValidation("storage path %q is not in bucket %s", path, s.cfg.Bucket)
	}
	return key, nil
}
