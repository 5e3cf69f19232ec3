// Package storage defines the artifact store and history ledger contracts.
package storage

import (
	"context"
	"time"

	"github.com/tjfontaine/genai-gateway/internal/domain"
)

// ArtifactStore keeps generated binaries outside the ledger.
type ArtifactStore interface {
	// Upload writes data under key, overwriting any existing object, and
	// returns the storage path to record.
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)

	// Delete removes the object at path. An absent object is not an error.
	Delete(ctx context.Context, path string) error

	// SignURL returns a time-limited retrieval URL for path.
	SignURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// ObjectInfo describes a stored artifact.
type ObjectInfo struct {
	Path    string
	Size    int64
	Created time.Time
}

// ArtifactLister is implemented by stores that can enumerate their objects.
type ArtifactLister interface {
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// HistoryLedger records successful generations per modality.
type HistoryLedger interface {
	AppendChat(ctx context.Context, rec *domain.ChatRecord) (int64, error)
	AppendImage(ctx context.Context, rec *domain.ImageRecord) (int64, error)
	AppendSpeech(ctx context.Context, rec *domain.SpeechRecord) (int64, error)
	AppendMusic(ctx context.Context, rec *domain.MusicRecord) (int64, error)

	// ListChat returns the owner's chat records oldest first. A non-empty
	// conversationID restricts the result to that conversation.
	ListChat(ctx context.Context, owner domain.Identity, conversationID string) ([]domain.ChatRecord, error)
	// ListImages, ListSpeech and ListMusic return records newest first.
	ListImages(ctx context.Context, owner domain.Identity) ([]domain.ImageRecord, error)
	ListSpeech(ctx context.Context, owner domain.Identity) ([]domain.SpeechRecord, error)
	ListMusic(ctx context.Context, owner domain.Identity) ([]domain.MusicRecord, error)

	// Lookup returns the owner and storage path of a record, or a NotFoundError.
	Lookup(ctx context.Context, modality domain.Modality, id int64) (*domain.RecordRef, error)
	// Remove deletes a record row, or returns a NotFoundError.
	Remove(ctx context.Context, modality domain.Modality, id int64) error

	// StoragePaths returns every storage path referenced by any record.
	StoragePaths(ctx context.Context) (map[string]struct{}, error)

	Close() error
}
