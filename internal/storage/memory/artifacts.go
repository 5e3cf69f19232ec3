package memory

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tjfontaine/genai-gateway/internal/domain"
	"github.com/tjfontaine/genai-gateway/internal/storage"
)

// Object is a stored artifact.
type Object struct {
	Data        []byte
	ContentType string
	Created     time.Time
}

// Artifacts is an in-memory ArtifactStore. Paths are the keys themselves.
type Artifacts struct {
	mu      sync.RWMutex
	objects map[string]Object
	now     func() time.Time

	uploadErr error
	deleteErr error
	signErr   error
}

var (
	_ storage.ArtifactStore  = (*Artifacts)(nil)
	_ storage.ArtifactLister = (*Artifacts)(nil)
)

// NewArtifacts creates an empty artifact store.
func NewArtifacts() *Artifacts {
	return &Artifacts{objects: make(map[string]Object), now: time.Now}
}

// FailUploads, FailDeletes and FailSigning inject errors for the matching
// operation until called again with nil.
func (a *Artifacts) FailUploads(err error) { a.set(&a.uploadErr, err) }
func (a *Artifacts) FailDeletes(err error) { a.set(&a.deleteErr, err) }
func (a *Artifacts) FailSigning(err error) { a.set(&a.signErr, err) }

func (a *Artifacts) set(field *error, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	*field = err
}

func (a *Artifacts) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.uploadErr != nil {
		return "", domain.ErrStorage("upload", a.uploadErr)
	}
	if err := ctx.Err(); err != nil {
		return "", domain.ErrStorage("upload", err)
	}

	a.objects[key] = Object{
		Data:        append([]byte(nil), data...),
		ContentType: contentType,
		Created:     a.now(),
	}
	return key, nil
}

func (a *Artifacts) Delete(ctx context.Context, path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.deleteErr != nil {
		return domain.ErrStorage("delete", a.deleteErr)
	}
	delete(a.objects, path)
	return nil
}

func (a *Artifacts) SignURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.signErr != nil {
		return "", domain.ErrStorage("sign", a.signErr)
	}
	if _, ok := a.objects[path]; !ok {
		return "", domain.ErrNotFound("artifact %s not found", path)
	}
	expires := a.now().Add(ttl).Unix()
	return fmt.Sprintf("memory:///%s?expires=%d", url.PathEscape(path), expires), nil
}

func (a *Artifacts) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []storage.ObjectInfo
	for path, obj := range a.objects {
		if strings.HasPrefix(path, prefix) {
			out = append(out, storage.ObjectInfo{Path: path, Size: int64(len(obj.Data)), Created: obj.Created})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Get returns a copy of the object at path.
func (a *Artifacts) Get(path string) (Object, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	obj, ok := a.objects[path]
	if !ok {
		return Object{}, false
	}
	obj.Data = append([]byte(nil), obj.Data...)
	return obj, true
}

// Len reports how many objects are stored.
func (a *Artifacts) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.objects)
}

// SetClock replaces the time source used for creation times and expiry.
func (a *Artifacts) SetClock(now func() time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.now = now
}
