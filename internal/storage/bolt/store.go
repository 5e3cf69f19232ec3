// Package bolt is a single-file artifact store for deployments without a
// cloud bucket. Retrieval URLs point back at the gateway's /artifacts route
// and carry a signed token.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/tjfontaine/genai-gateway/internal/auth"
	"github.com/tjfontaine/genai-gateway/internal/domain"
	"github.com/tjfontaine/genai-gateway/internal/storage"
)

var (
	metaBucket = []byte("artifact_meta")
	dataBucket = []byte("artifact_data")
)

// RoutePrefix is the HTTP path under which artifacts are served.
const RoutePrefix = "/artifacts/"

type meta struct {
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Created     time.Time `json:"created"`
}

// Object is an artifact read back from the store.
type Object struct {
	Data        []byte
	ContentType string
	Created     time.Time
}

// Store is a bbolt-backed ArtifactStore.
type Store struct {
	db      *bolt.DB
	baseURL string
	signer  *auth.Authenticator
	now     func() time.Time
}

var (
	_ storage.ArtifactStore  = (*Store)(nil)
	_ storage.ArtifactLister = (*Store)(nil)
)

// Open opens (creating if needed) the store at path. baseURL is the public
// origin of the gateway, used to build retrieval URLs.
func Open(path, baseURL string, signer *auth.Authenticator) (*Store, error) {
	if signer == nil {
		return nil, domain.ErrConfiguration("artifact signer is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{metaBucket, dataBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &Store{
		db:      db,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		signer:  signer,
		now:     time.Now,
	}, nil
}

func (s *Store) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.ErrStorage("upload", err)
	}
	enc, err := json.Marshal(meta{ContentType: contentType, Size: int64(len(data)), Created: s.now().UTC()})
	if err != nil {
		return "", domain.ErrStorage("upload", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(metaBucket).Put([]byte(key), enc); err != nil {
			return err
		}
		return tx.Bucket(dataBucket).Put([]byte(key), data)
	})
	if err != nil {
		return "", domain.ErrStorage("upload", err)
	}
	return key, nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		// bbolt Delete on a missing key is a no-op.
		if err := tx.Bucket(metaBucket).Delete([]byte(path)); err != nil {
			return err
		}
		return tx.Bucket(dataBucket).Delete([]byte(path))
	})
	if err != nil {
		return domain.ErrStorage("delete", err)
	}
	return nil
}

// SignURL returns {baseURL}/artifacts/{key}?token=... valid for ttl.
func (s *Store) SignURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	exists := false
	err := s.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(metaBucket).Get([]byte(path)) != nil
		return nil
	})
	if err != nil {
		return "", domain.ErrStorage("sign", err)
	}
	if !exists {
		return "", domain.ErrNotFound("artifact %s not found", path)
	}

	token, err := s.signer.Issue(path, auth.AudienceArtifact, ttl)
	if err != nil {
		return "", domain.ErrStorage("sign", err)
	}
	return s.baseURL + RoutePrefix + EscapeKey(path) + "?token=" + url.QueryEscape(token), nil
}

// Open verifies token against key and returns the artifact.
func (s *Store) Open(ctx context.Context, key, token string) (*Object, error) {
	subject, err := s.signer.Verify(token, auth.AudienceArtifact)
	if err != nil {
		return nil, domain.ErrForbidden("artifact link rejected: %v", err)
	}
	if subject != key {
		return nil, domain.ErrForbidden("artifact link does not match %s", key)
	}

	var obj *Object
	err = s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(metaBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		var m meta
		if err := json.Unmarshal(raw, &m); err != nil {
			return err
		}
		// Values are only valid for the life of the transaction.
		data := append([]byte(nil), tx.Bucket(dataBucket).Get([]byte(key))...)
		obj = &Object{Data: data, ContentType: m.ContentType, Created: m.Created}
		return nil
	})
	if err != nil {
		return nil, domain.ErrStorage("read", err)
	}
	if obj == nil {
		return nil, domain.ErrNotFound("artifact %s not found", key)
	}
	return obj, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	var out []storage.ObjectInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(metaBucket).Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
			var m meta
			if err := json.Unmarshal(v, &m); err != nil {
				// Skip malformed entries instead of failing the whole listing
				continue
			}
			out = append(out, storage.ObjectInfo{Path: string(k), Size: m.Size, Created: m.Created})
		}
		return nil
	})
	if err != nil {
		return nil, domain.ErrStorage("list", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// EscapeKey escapes each key segment for use in a URL path.
func EscapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// KeyFromPath reverses EscapeKey on an escaped request path below
// RoutePrefix.
func KeyFromPath(escaped string) (string, error) {
	parts := strings.Split(strings.TrimPrefix(escaped, RoutePrefix), "/")
	for i, p := range parts {
		seg, err := url.PathUnescape(p)
		if err != nil {
			return "", domain.ErrValidation("malformed artifact path: %v", err)
		}
		parts[i] = seg
	}
	key := strings.Join(parts, "/")
	if key == "" {
		return "", domain.ErrValidation("artifact key is required")
	}
	return key, nil
}
