package domain

import (
	"strings"
	"time"
)

// Identity is the stable identifier of a caller, typically an email address.
// It is resolved by the HTTP layer and passed explicitly into every gateway call.
type Identity string

// Modality selects the provider and payload shape of a generation.
type Modality string

const (
	ModalityChat   Modality = "chat"
	ModalityImage  Modality = "image"
	ModalitySpeech Modality = "speech"
	ModalityMusic  Modality = "music"
	ModalityOCR    Modality = "ocr"
)

// Modalities lists every supported modality.
var Modalities = []Modality{ModalityChat, ModalityImage, ModalitySpeech, ModalityMusic, ModalityOCR}

// ParseModality resolves a modality name. "sound" and "tts" are accepted as aliases.
func ParseModality(s string) (Modality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "chat", "chatbot":
		return ModalityChat, nil
	case "image", "images":
		return ModalityImage, nil
	case "speech", "tts":
		return ModalitySpeech, nil
	case "music", "sound", "sounds":
		return ModalityMusic, nil
	case "ocr":
		return ModalityOCR, nil
	}
	return "", ErrValidation("unknown modality %q", s)
}

// Recorded reports whether generations of this modality are persisted to the ledger.
func (m Modality) Recorded() bool {
	return m != ModalityOCR
}

// Payload is the modality-specific part of a GenerationRequest.
type Payload interface {
	Modality() Modality
	Validate() error
}

// GenerationRequest is a validated unit of work for the gateway.
type GenerationRequest struct {
	Owner   Identity
	Payload Payload
}

// Modality returns the request's modality.
func (r GenerationRequest) Modality() Modality {
	if r.Payload == nil {
		return ""
	}
	return r.Payload.Modality()
}

// Validate checks the owner and the payload.
func (r GenerationRequest) Validate() error {
	if strings.TrimSpace(string(r.Owner)) == "" {
		return ErrUnauthenticated("caller identity is required")
	}
	if r.Payload == nil {
		return ErrValidation("payload is required")
	}
	return r.Payload.Validate()
}

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// ChatRequest asks the chat provider to continue a conversation.
type ChatRequest struct {
	ConversationID string        `json:"conversationId"`
	Messages       []ChatMessage `json:"messages"`
}

func (r *ChatRequest) Modality() Modality { return ModalityChat }

func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.ConversationID) == "" {
		return ErrValidation("conversationId is required")
	}
	if len(r.Messages) == 0 {
		return ErrValidation("messages are required")
	}
	for i, m := range r.Messages {
		if strings.TrimSpace(m.Text) == "" {
			return ErrValidation("messages[%d].text is required", i)
		}
	}
	return nil
}

// ImageRequest asks the image provider for a picture.
type ImageRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negativePrompt"`
	Model          string `json:"model"`
}

func (r *ImageRequest) Modality() Modality { return ModalityImage }

func (r *ImageRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return ErrValidation("prompt is required")
	}
	if r.Model != "" {
		if _, err := LookupImageModel(r.Model); err != nil {
			return err
		}
	}
	return nil
}

// SpeechRequest asks the speech provider to read text aloud. Nil settings
// take the provider defaults.
type SpeechRequest struct {
	Text       string   `json:"text"`
	Voice      string   `json:"voice"`
	Speed      *float64 `json:"speed,omitempty"`
	Stability  *float64 `json:"stability,omitempty"`
	Similarity *float64 `json:"similarity,omitempty"`
}

func (r *SpeechRequest) Modality() Modality { return ModalitySpeech }

func (r *SpeechRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrValidation("text is required")
	}
	if strings.TrimSpace(r.Voice) == "" {
		return ErrValidation("voice is required")
	}
	if _, err := LookupVoice(r.Voice); err != nil {
		return err
	}
	if r.Speed != nil && (*r.Speed < 0.7 || *r.Speed > 1.2) {
		return ErrValidation("speed must be between 0.7 and 1.2")
	}
	if r.Stability != nil && (*r.Stability < 0 || *r.Stability > 1) {
		return ErrValidation("stability must be between 0 and 1")
	}
	if r.Similarity != nil && (*r.Similarity < 0 || *r.Similarity > 1) {
		return ErrValidation("similarity must be between 0 and 1")
	}
	return nil
}

// MusicRequest asks the sound-generation provider for a clip.
type MusicRequest struct {
	Prompt          string   `json:"prompt"`
	DurationSeconds *float64 `json:"durationSeconds,omitempty"`
	PromptInfluence *float64 `json:"promptInfluence,omitempty"`
}

func (r *MusicRequest) Modality() Modality { return ModalityMusic }

func (r *MusicRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return ErrValidation("prompt is required")
	}
	if r.DurationSeconds != nil && (*r.DurationSeconds < 0.5 || *r.DurationSeconds > 22) {
		return ErrValidation("durationSeconds must be between 0.5 and 22")
	}
	if r.PromptInfluence != nil && (*r.PromptInfluence < 0 || *r.PromptInfluence > 1) {
		return ErrValidation("promptInfluence must be between 0 and 1")
	}
	return nil
}

// OCRRequest asks the vision provider to read text from an image.
type OCRRequest struct {
	Image []byte `json:"-"`
}

func (r *OCRRequest) Modality() Modality { return ModalityOCR }

func (r *OCRRequest) Validate() error {
	if len(r.Image) == 0 {
		return ErrValidation("image is empty")
	}
	return nil
}

// GenerationResult is what the gateway hands back after a successful generation.
type GenerationResult struct {
	Modality       Modality `json:"modality"`
	RecordID       int64    `json:"id,omitempty"`
	ConversationID string   `json:"conversationId,omitempty"`
	Text           string   `json:"extractedText,omitempty"`
	Data           []byte   `json:"-"`
	ContentType    string   `json:"contentType,omitempty"`
	StoragePath    string   `json:"gcsPath,omitempty"`
	URL            string   `json:"url,omitempty"`
	Model          string   `json:"model,omitempty"`
	Truncated      bool     `json:"truncated,omitempty"`
}

// RecordMeta holds the fields every history record shares.
type RecordMeta struct {
	ID          int64     `json:"id" db:"id"`
	Owner       Identity  `json:"owner" db:"owner_id"`
	StoragePath string    `json:"gcsPath" db:"storage_path"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// ChatRecord is one exchange of a conversation.
type ChatRecord struct {
	RecordMeta
	ConversationID string `json:"conversationId" db:"conversation_id"`
	Input          string `json:"input" db:"input"`
	Response       string `json:"response" db:"response"`
}

// ImageRecord is a generated image.
type ImageRecord struct {
	RecordMeta
	Prompt    string `json:"prompt" db:"prompt"`
	ImageURL  string `json:"imageUrl" db:"image_url"`
	ModelUsed string `json:"modelUsed" db:"model_used"`
}

// SpeechRecord is a generated speech clip.
type SpeechRecord struct {
	RecordMeta
	Input      string  `json:"input" db:"input"`
	Voice      string  `json:"voice" db:"voice"`
	AudioURL   string  `json:"audioUrl" db:"audio_url"`
	Speed      float64 `json:"speed" db:"speed"`
	Stability  float64 `json:"stability" db:"stability"`
	Similarity float64 `json:"similarity" db:"similarity"`
}

// MusicRecord is a generated sound clip.
type MusicRecord struct {
	RecordMeta
	Prompt          string  `json:"prompt" db:"prompt"`
	AudioURL        string  `json:"audioUrl" db:"audio_url"`
	DurationSeconds float64 `json:"durationSeconds" db:"duration_seconds"`
	PromptInfluence float64 `json:"promptInfluence" db:"prompt_influence"`
}

// RecordRef locates a record's owner and artifact without loading the
// modality-specific fields.
type RecordRef struct {
	Modality    Modality
	ID          int64
	Owner       Identity
	StoragePath string
}
