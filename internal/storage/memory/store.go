package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tjfontaine/genai-gateway/internal/domain"
	"github.com/tjfontaine/genai-gateway/internal/storage"
)

// Store is an in-memory implementation of HistoryLedger
type Store struct {
	mu     sync.RWMutex
	nextID map[domain.Modality]int64
	chat   []domain.ChatRecord
	images []domain.ImageRecord
	speech []domain.SpeechRecord
	music  []domain.MusicRecord

	appendErr error
}

var _ storage.HistoryLedger = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{nextID: make(map[domain.Modality]int64)}
}

// FailAppends makes every subsequent Append return err. A nil err restores
// normal behavior.
func (s *Store) FailAppends(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendErr = err
}

func (s *Store) begin(m domain.Modality, meta *domain.RecordMeta) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.nextID[m]++
	meta.ID = s.nextID[m]
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (s *Store) AppendChat(ctx context.Context, rec *domain.ChatRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(domain.ModalityChat, &rec.RecordMeta); err != nil {
		return 0, err
	}
	s.chat = append(s.chat, *rec)
	return rec.ID, nil
}

func (s *Store) AppendImage(ctx context.Context, rec *domain.ImageRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(domain.ModalityImage, &rec.RecordMeta); err != nil {
		return 0, err
	}
	s.images = append(s.images, *rec)
	return rec.ID, nil
}

func (s *Store) AppendSpeech(ctx context.Context, rec *domain.SpeechRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(domain.ModalitySpeech, &rec.RecordMeta); err != nil {
		return 0, err
	}
	s.speech = append(s.speech, *rec)
	return rec.ID, nil
}

func (s *Store) AppendMusic(ctx context.Context, rec *domain.MusicRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(domain.ModalityMusic, &rec.RecordMeta); err != nil {
		return 0, err
	}
	s.music = append(s.music, *rec)
	return rec.ID, nil
}

// ascending reports whether a sorts before b by (created_at, id).
func ascending(a, b domain.RecordMeta) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (s *Store) ListChat(ctx context.Context, owner domain.Identity, conversationID string) ([]domain.ChatRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []domain.ChatRecord{}
	for _, rec := range s.chat {
		if rec.Owner != owner {
			continue
		}
		if conversationID != "" && rec.ConversationID != conversationID {
			continue
		}
		result = append(result, rec)
	}
	sort.SliceStable(result, func(i, j int) bool { return ascending(result[i].RecordMeta, result[j].RecordMeta) })
	return result, nil
}

func (s *Store) ListImages(ctx context.Context, owner domain.Identity) ([]domain.ImageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []domain.ImageRecord{}
	for _, rec := range s.images {
		if rec.Owner == owner {
			result = append(result, rec)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return ascending(result[j].RecordMeta, result[i].RecordMeta) })
	return result, nil
}

func (s *Store) ListSpeech(ctx context.Context, owner domain.Identity) ([]domain.SpeechRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []domain.SpeechRecord{}
	for _, rec := range s.speech {
		if rec.Owner == owner {
			result = append(result, rec)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return ascending(result[j].RecordMeta, result[i].RecordMeta) })
	return result, nil
}

func (s *Store) ListMusic(ctx context.Context, owner domain.Identity) ([]domain.MusicRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []domain.MusicRecord{}
	for _, rec := range s.music {
		if rec.Owner == owner {
			result = append(result, rec)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return ascending(result[j].RecordMeta, result[i].RecordMeta) })
	return result, nil
}

// metas returns pointers to every record's metadata for modality m.
func (s *Store) metas(m domain.Modality) []*domain.RecordMeta {
	var out []*domain.RecordMeta
	switch m {
	case domain.ModalityChat:
		for i := range s.chat {
			out = append(out, &s.chat[i].RecordMeta)
		}
	case domain.ModalityImage:
		for i := range s.images {
			out = append(out, &s.images[i].RecordMeta)
		}
	case domain.ModalitySpeech:
		for i := range s.speech {
			out = append(out, &s.speech[i].RecordMeta)
		}
	case domain.ModalityMusic:
		for i := range s.music {
			out = append(out, &s.music[i].RecordMeta)
		}
	}
	return out
}

func (s *Store) Lookup(ctx context.Context, modality domain.Modality, id int64) (*domain.RecordRef, error) {
	if !modality.Recorded() {
		return nil, domain.ErrValidation("modality %q has no history", modality)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, meta := range s.metas(modality) {
		if meta.ID == id {
			return &domain.RecordRef{Modality: modality, ID: id, Owner: meta.Owner, StoragePath: meta.StoragePath}, nil
		}
	}
	return nil, domain.ErrNotFound("%s record %d not found", modality, id)
}

func (s *Store) Remove(ctx context.Context, modality domain.Modality, id int64) error {
	if !modality.Recorded() {
		return domain.ErrValidation("modality %q has no history", modality)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	switch modality {
	case domain.ModalityChat:
		s.chat, removed = without(s.chat, id, func(r domain.ChatRecord) int64 { return r.ID })
	case domain.ModalityImage:
		s.images, removed = without(s.images, id, func(r domain.ImageRecord) int64 { return r.ID })
	case domain.ModalitySpeech:
		s.speech, removed = without(s.speech, id, func(r domain.SpeechRecord) int64 { return r.ID })
	case domain.ModalityMusic:
		s.music, removed = without(s.music, id, func(r domain.MusicRecord) int64 { return r.ID })
	}
	if !removed {
		return domain.ErrNotFound("%s record %d not found", modality, id)
	}
	return nil
}

func without[T any](records []T, id int64, idOf func(T) int64) ([]T, bool) {
	for i, rec := range records {
		if idOf(rec) == id {
			return append(records[:i:i], records[i+1:]...), true
		}
	}
	return records, false
}

func (s *Store) StoragePaths(ctx context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]struct{})
	for _, m := range []domain.Modality{domain.ModalityChat, domain.ModalityImage, domain.ModalitySpeech, domain.ModalityMusic} {
		for _, meta := range s.metas(m) {
			if meta.StoragePath != "" {
				out[meta.StoragePath] = struct{}{}
			}
		}
	}
	return out, nil
}

func (s *Store) Close() error {
	return nil
}
