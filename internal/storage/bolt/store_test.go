package bolt

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tjfontaine/genai-gateway/internal/auth"
	"github.com/tjfontaine/genai-gateway/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	signer, err := auth.NewAuthenticator([]byte("artifact-secret"))
	if err != nil {
		t.Fatalf("NewAuthenticator() error = %v", err)
	}
	s, err := Open(filepath.Join(t.TempDir(), "artifacts.db"), "http://gw.local/", signer)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func tokenOf(t *testing.T, signed string) (string, string) {
	t.Helper()
	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("url.Parse(%q) error = %v", signed, err)
	}
	key, err := KeyFromPath(u.EscapedPath())
	if err != nil {
		t.Fatalf("KeyFromPath() error = %v", err)
	}
	return key, u.Query().Get("token")
}

func TestStore_UploadSignOpen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key := "chatbot/ana%40example.com/a%2Fb/1700000000000.txt"
	path, err := s.Upload(ctx, key, "text/plain", []byte("hello"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if path != key {
		t.Errorf("Upload() path = %q, want %q", path, key)
	}

	signed, err := s.SignURL(ctx, path, time.Hour)
	if err != nil {
		t.Fatalf("SignURL() error = %v", err)
	}
	if !strings.HasPrefix(signed, "http://gw.local/artifacts/") {
		t.Errorf("SignURL() = %q", signed)
	}

	gotKey, token := tokenOf(t, signed)
	if gotKey != key {
		t.Errorf("key from URL = %q, want %q", gotKey, key)
	}

	obj, err := s.Open(ctx, gotKey, token)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if string(obj.Data) != "hello" || obj.ContentType != "text/plain" {
		t.Errorf("Open() = %+v", obj)
	}
}

func TestStore_OpenRejectsMismatchedToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Upload(ctx, "images/u1/1.jpg", "image/jpeg", []byte("a"))
	s.Upload(ctx, "images/u2/2.jpg", "image/jpeg", []byte("b"))

	signed, _ := s.SignURL(ctx, "images/u1/1.jpg", time.Hour)
	_, token := tokenOf(t, signed)

	if _, err := s.Open(ctx, "images/u2/2.jpg", token); !domain.IsType(err, domain.ErrorTypeForbidden) {
		t.Errorf("Open(other key) error = %v, want forbidden", err)
	}
	if _, err := s.Open(ctx, "images/u1/1.jpg", "junk"); !domain.IsType(err, domain.ErrorTypeForbidden) {
		t.Errorf("Open(junk token) error = %v, want forbidden", err)
	}
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Upload(ctx, "tts/u1/1.mp3", "audio/mpeg", []byte("mp3"))
	signed, _ := s.SignURL(ctx, "tts/u1/1.mp3", time.Hour)
	_, token := tokenOf(t, signed)

	if err := s.Delete(ctx, "tts/u1/1.mp3"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, "tts/u1/1.mp3"); err != nil {
		t.Errorf("Delete() absent error = %v", err)
	}
	if _, err := s.Open(ctx, "tts/u1/1.mp3", token); !domain.IsType(err, domain.ErrorTypeNotFound) {
		t.Errorf("Open() after delete error = %v, want not found", err)
	}
	if _, err := s.SignURL(ctx, "tts/u1/1.mp3", time.Hour); !domain.IsType(err, domain.ErrorTypeNotFound) {
		t.Errorf("SignURL() after delete error = %v, want not found", err)
	}
}

func TestStore_List(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Upload(ctx, "sounds/u1/2.mp3", "audio/mpeg", []byte("22"))
	s.Upload(ctx, "sounds/u1/1.mp3", "audio/mpeg", []byte("1"))
	s.Upload(ctx, "tts/u1/1.mp3", "audio/mpeg", []byte("x"))

	got, err := s.List(ctx, "sounds/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got[0].Path != "sounds/u1/1.mp3" || got[1].Size != 2 {
		t.Errorf("List() = %+v", got)
	}

	all, _ := s.List(ctx, "")
	if len(all) != 3 {
		t.Errorf("List(\"\") len = %d, want 3", len(all))
	}
}

func TestKeyFromPath(t *testing.T) {
	if _, err := KeyFromPath(RoutePrefix); !domain.IsType(err, domain.ErrorTypeValidation) {
		t.Errorf("KeyFromPath(empty) error = %v, want validation", err)
	}
	key := "images/a%2Fb/1.jpg"
	got, err := KeyFromPath(RoutePrefix + EscapeKey(key))
	if err != nil || got != key {
		t.Errorf("KeyFromPath() = %q, %v, want %q", got, err, key)
	}
}

func TestStore_SignURLReadFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Upload(ctx, "images/u1/1.png", "image/png", []byte("png")); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	_, err := s.SignURL(ctx, "images/u1/1.png", time.Hour)
	if !domain.IsType(err, domain.ErrorTypeStorage) {
		t.Errorf("SignURL() on closed store error = %v, want storage error", err)
	}
}
