package storage

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tjfontaine/genai-gateway/internal/domain"
)

// Artifact kinds, used as the first key segment.
const (
	KindChat   = "chatbot"
	KindImage  = "images"
	KindSpeech = "tts"
	KindMusic  = "sounds"
)

// Kind returns the key prefix for a modality.
func Kind(m domain.Modality) string {
	switch m {
	case domain.ModalityChat:
		return KindChat
	case domain.ModalityImage:
		return KindImage
	case domain.ModalitySpeech:
		return KindSpeech
	case domain.ModalityMusic:
		return KindMusic
	}
	return ""
}

// ArtifactKey builds {kind}/{owner}/{conversation?}/{timestamp}.{ext}.
// Owner and conversation are path-escaped so they occupy one segment each.
func ArtifactKey(kind string, owner domain.Identity, conversationID string, ts int64, ext string) string {
	parts := []string{kind, url.PathEscape(string(owner))}
	if conversationID != "" {
		parts = append(parts, url.PathEscape(conversationID))
	}
	parts = append(parts, fmt.Sprintf("%d.%s", ts, strings.TrimPrefix(ext, ".")))
	return strings.Join(parts, "/")
}

// KeyClock hands out millisecond timestamps that never repeat within the
// process, so two generations in the same millisecond get distinct keys.
type KeyClock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewKeyClock creates a clock reading now; nil uses time.Now.
func NewKeyClock(now func() time.Time) *KeyClock {
	if now == nil {
		now = time.Now
	}
	return &KeyClock{now: now}
}

// Next returns a strictly increasing Unix millisecond timestamp.
func (c *KeyClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.now().UnixMilli()
	if ts <= c.last {
		ts = c.last + 1
	}
	c.last = ts
	return ts
}
