package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tjfontaine/genai-gateway/internal/domain"
)

func TestMemoryStore_ChatAscending(t *testing.T) {
	store := New()
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, in := range []string{"a", "b", "c"} {
		if _, err := store.AppendChat(ctx, &domain.ChatRecord{
			RecordMeta:     domain.RecordMeta{Owner: "u1", CreatedAt: at},
			ConversationID: "c1",
			Input:          in,
		}); err != nil {
			t.Fatalf("AppendChat() error = %v", err)
		}
	}

	got, err := store.ListChat(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("ListChat() error = %v", err)
	}
	if len(got) != 3 || got[0].Input != "a" || got[2].Input != "c" {
		t.Errorf("ListChat() = %+v", got)
	}
}

func TestMemoryStore_ImagesDescending(t *testing.T) {
	store := New()
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	store.AppendImage(ctx, &domain.ImageRecord{RecordMeta: domain.RecordMeta{Owner: "u1", CreatedAt: at}, Prompt: "old"})
	store.AppendImage(ctx, &domain.ImageRecord{RecordMeta: domain.RecordMeta{Owner: "u1", CreatedAt: at.Add(time.Second)}, Prompt: "new"})
	store.AppendImage(ctx, &domain.ImageRecord{RecordMeta: domain.RecordMeta{Owner: "u2", CreatedAt: at}, Prompt: "theirs"})

	got, err := store.ListImages(ctx, "u1")
	if err != nil {
		t.Fatalf("ListImages() error = %v", err)
	}
	if len(got) != 2 || got[0].Prompt != "new" || got[1].Prompt != "old" {
		t.Errorf("ListImages() = %+v", got)
	}
}

func TestMemoryStore_RemoveAndLookup(t *testing.T) {
	store := New()
	ctx := context.Background()

	id, _ := store.AppendMusic(ctx, &domain.MusicRecord{RecordMeta: domain.RecordMeta{Owner: "u1", StoragePath: "sounds/u1/1.mp3"}})

	ref, err := store.Lookup(ctx, domain.ModalityMusic, id)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if ref.StoragePath != "sounds/u1/1.mp3" {
		t.Errorf("StoragePath = %q", ref.StoragePath)
	}

	if err := store.Remove(ctx, domain.ModalityMusic, id); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := store.Remove(ctx, domain.ModalityMusic, id); !domain.IsType(err, domain.ErrorTypeNotFound) {
		t.Errorf("Remove() again error = %v, want not found", err)
	}
	paths, _ := store.StoragePaths(ctx)
	if len(paths) != 0 {
		t.Errorf("StoragePaths() = %v, want empty", paths)
	}
}

func TestMemoryStore_FailAppends(t *testing.T) {
	store := New()
	boom := errors.New("disk full")
	store.FailAppends(boom)

	if _, err := store.AppendSpeech(context.Background(), &domain.SpeechRecord{}); !errors.Is(err, boom) {
		t.Errorf("AppendSpeech() error = %v, want %v", err, boom)
	}

	store.FailAppends(nil)
	if _, err := store.AppendSpeech(context.Background(), &domain.SpeechRecord{}); err != nil {
		t.Errorf("AppendSpeech() error = %v", err)
	}
}

func TestArtifacts_Lifecycle(t *testing.T) {
	a := NewArtifacts()
	ctx := context.Background()

	path, err := a.Upload(ctx, "images/u1/1.jpg", "image/jpeg", []byte("jpeg"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if path != "images/u1/1.jpg" {
		t.Errorf("Upload() path = %q", path)
	}

	obj, ok := a.Get(path)
	if !ok || string(obj.Data) != "jpeg" || obj.ContentType != "image/jpeg" {
		t.Fatalf("Get() = %+v, %v", obj, ok)
	}

	url, err := a.SignURL(ctx, path, time.Hour)
	if err != nil {
		t.Fatalf("SignURL() error = %v", err)
	}
	if !strings.Contains(url, "expires=") {
		t.Errorf("SignURL() = %q", url)
	}

	listed, _ := a.List(ctx, "images/")
	if len(listed) != 1 || listed[0].Size != 4 {
		t.Errorf("List() = %+v", listed)
	}

	if err := a.Delete(ctx, path); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := a.Delete(ctx, path); err != nil {
		t.Errorf("Delete() of absent object error = %v", err)
	}
	if a.Len() != 0 {
		t.Errorf("Len() = %d, want 0", a.Len())
	}
}

func TestArtifacts_InjectedFailures(t *testing.T) {
	a := NewArtifacts()
	ctx := context.Background()

	a.FailUploads(errors.New("bucket gone"))
	if _, err := a.Upload(ctx, "k", "text/plain", nil); !domain.IsType(err, domain.ErrorTypeStorage) {
		t.Errorf("Upload() error = %v, want storage error", err)
	}
	a.FailUploads(nil)
	a.Upload(ctx, "k", "text/plain", nil)

	a.FailSigning(errors.New("no signer"))
	if _, err := a.SignURL(ctx, "k", time.Minute); !domain.IsType(err, domain.ErrorTypeStorage) {
		t.Errorf("SignURL() error = %v, want storage error", err)
	}

	a.FailDeletes(errors.New("denied"))
	if err := a.Delete(ctx, "k"); !domain.IsType(err, domain.ErrorTypeStorage) {
		t.Errorf("Delete() error = %v, want storage error", err)
	}
}
