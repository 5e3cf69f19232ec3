package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tjfontaine/genai-gateway/internal/domain"
)

func newTestStore(t *testing.T, name string) *Store {
	t.Helper()
	store, err := New("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_ChatOrdering(t *testing.T) {
	store := newTestStore(t, "chatdb")
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	inputs := []struct {
		conv  string
		input string
		at    time.Time
	}{
		{"c1", "second", base.Add(time.Minute)},
		{"c1", "first", base},
		{"c2", "other", base.Add(2 * time.Minute)},
		{"c1", "third", base.Add(time.Minute)},
	}
	for _, in := range inputs {
		rec := &domain.ChatRecord{
			RecordMeta:     domain.RecordMeta{Owner: "u1", CreatedAt: in.at, StoragePath: "chatbot/u1/" + in.conv + "/x.txt"},
			ConversationID: in.conv,
			Input:          in.input,
			Response:       "ok",
		}
		if _, err := store.AppendChat(ctx, rec); err != nil {
			t.Fatalf("AppendChat() error = %v", err)
		}
		if rec.ID == 0 {
			t.Fatal("AppendChat() did not set ID")
		}
	}

	got, err := store.ListChat(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("ListChat() error = %v", err)
	}
	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("ListChat() len = %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Input != w {
			t.Errorf("ListChat()[%d].Input = %q, want %q", i, got[i].Input, w)
		}
	}

	all, err := store.ListChat(ctx, "u1", "")
	if err != nil {
		t.Fatalf("ListChat(all) error = %v", err)
	}
	if len(all) != 4 {
		t.Errorf("ListChat(all) len = %d, want 4", len(all))
	}

	none, err := store.ListChat(ctx, "someone-else", "")
	if err != nil {
		t.Fatalf("ListChat(other) error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("ListChat(other) len = %d, want 0", len(none))
	}
}

func TestStore_ImagesNewestFirst(t *testing.T) {
	store := newTestStore(t, "imagedb")
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, prompt := range []string{"old", "new"} {
		_, err := store.AppendImage(ctx, &domain.ImageRecord{
			RecordMeta: domain.RecordMeta{Owner: "u1", StoragePath: "images/u1/" + prompt + ".jpg", CreatedAt: base.Add(time.Duration(i) * time.Hour)},
			Prompt:     prompt,
			ModelUsed:  "model1",
		})
		if err != nil {
			t.Fatalf("AppendImage() error = %v", err)
		}
	}

	got, err := store.ListImages(ctx, "u1")
	if err != nil {
		t.Fatalf("ListImages() error = %v", err)
	}
	if len(got) != 2 || got[0].Prompt != "new" || got[1].Prompt != "old" {
		t.Fatalf("ListImages() = %+v", got)
	}
	if got[0].ModelUsed != "model1" || got[0].Owner != "u1" {
		t.Errorf("ListImages()[0] = %+v", got[0])
	}
	if !got[0].CreatedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("CreatedAt = %v, want %v", got[0].CreatedAt, base.Add(time.Hour))
	}
}

func TestStore_SpeechAndMusic(t *testing.T) {
	store := newTestStore(t, "audiodb")
	ctx := context.Background()

	speech := &domain.SpeechRecord{
		RecordMeta: domain.RecordMeta{Owner: "u1", StoragePath: "tts/u1/1.mp3"},
		Input:      "hello",
		Voice:      "Rachel",
		Speed:      1.1,
		Stability:  0.5,
		Similarity: 0.75,
	}
	if _, err := store.AppendSpeech(ctx, speech); err != nil {
		t.Fatalf("AppendSpeech() error = %v", err)
	}
	if speech.CreatedAt.IsZero() {
		t.Error("AppendSpeech() did not stamp CreatedAt")
	}

	music := &domain.MusicRecord{
		RecordMeta:      domain.RecordMeta{Owner: "u1", StoragePath: "sounds/u1/1.mp3"},
		Prompt:          "rain",
		DurationSeconds: 5,
		PromptInfluence: 0.3,
	}
	if _, err := store.AppendMusic(ctx, music); err != nil {
		t.Fatalf("AppendMusic() error = %v", err)
	}

	gotSpeech, err := store.ListSpeech(ctx, "u1")
	if err != nil {
		t.Fatalf("ListSpeech() error = %v", err)
	}
	if len(gotSpeech) != 1 || gotSpeech[0].Voice != "Rachel" || gotSpeech[0].Speed != 1.1 {
		t.Errorf("ListSpeech() = %+v", gotSpeech)
	}

	gotMusic, err := store.ListMusic(ctx, "u1")
	if err != nil {
		t.Fatalf("ListMusic() error = %v", err)
	}
	if len(gotMusic) != 1 || gotMusic[0].DurationSeconds != 5 || gotMusic[0].PromptInfluence != 0.3 {
		t.Errorf("ListMusic() = %+v", gotMusic)
	}
}

func TestStore_LookupAndRemove(t *testing.T) {
	store := newTestStore(t, "removedb")
	ctx := context.Background()

	id, err := store.AppendImage(ctx, &domain.ImageRecord{
		RecordMeta: domain.RecordMeta{Owner: "u1", StoragePath: "images/u1/1.jpg"},
		Prompt:     "fox",
		ModelUsed:  "model2",
	})
	if err != nil {
		t.Fatalf("AppendImage() error = %v", err)
	}

	ref, err := store.Lookup(ctx, domain.ModalityImage, id)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if ref.Owner != "u1" || ref.StoragePath != "images/u1/1.jpg" || ref.Modality != domain.ModalityImage {
		t.Errorf("Lookup() = %+v", ref)
	}

	// Same id in a different table does not exist.
	if _, err := store.Lookup(ctx, domain.ModalitySpeech, id); !domain.IsType(err, domain.ErrorTypeNotFound) {
		t.Errorf("Lookup(speech) error = %v, want not found", err)
	}

	if err := store.Remove(ctx, domain.ModalityImage, id); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := store.Remove(ctx, domain.ModalityImage, id); !domain.IsType(err, domain.ErrorTypeNotFound) {
		t.Errorf("second Remove() error = %v, want not found", err)
	}
	if _, err := store.Lookup(ctx, domain.ModalityImage, id); !domain.IsType(err, domain.ErrorTypeNotFound) {
		t.Errorf("Lookup() after remove error = %v, want not found", err)
	}

	if _, err := store.Lookup(ctx, domain.ModalityOCR, 1); !domain.IsType(err, domain.ErrorTypeValidation) {
		t.Errorf("Lookup(ocr) error = %v, want validation", err)
	}
}

func TestStore_StoragePaths(t *testing.T) {
	store := newTestStore(t, "pathsdb")
	ctx := context.Background()

	store.AppendImage(ctx, &domain.ImageRecord{RecordMeta: domain.RecordMeta{Owner: "u1", StoragePath: "images/u1/1.jpg"}, Prompt: "p", ModelUsed: "model1"})
	store.AppendMusic(ctx, &domain.MusicRecord{RecordMeta: domain.RecordMeta{Owner: "u1", StoragePath: "sounds/u1/2.mp3"}, Prompt: "p"})
	store.AppendChat(ctx, &domain.ChatRecord{RecordMeta: domain.RecordMeta{Owner: "u1", StoragePath: "chatbot/u1/c/3.txt"}, ConversationID: "c", Input: "i", Response: "r"})

	paths, err := store.StoragePaths(ctx)
	if err != nil {
		t.Fatalf("StoragePaths() error = %v", err)
	}
	for _, p := range []string{"images/u1/1.jpg", "sounds/u1/2.mp3", "chatbot/u1/c/3.txt"} {
		if _, ok := paths[p]; !ok {
			t.Errorf("StoragePaths() missing %q", p)
		}
	}
	if len(paths) != 3 {
		t.Errorf("StoragePaths() len = %d, want 3", len(paths))
	}
}

func TestNew_FilePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	store, err := New(path)
	if err != nil {
		t.Fatalf("New(%q) error = %v", path, err)
	}
	defer store.Close()

	if _, err := store.AppendImage(context.Background(), &domain.ImageRecord{
		RecordMeta: domain.RecordMeta{Owner: "u1", StoragePath: "images/u1/1.jpg"},
		Prompt:     "p",
		ModelUsed:  "model1",
	}); err != nil {
		t.Errorf("AppendImage() error = %v", err)
	}
}
