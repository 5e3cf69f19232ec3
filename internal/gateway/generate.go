package gateway

import (
	"context"
	"log/slog"

	"github.com/tjfontaine/genai-gateway/internal/api/elevenlabs"
	"github.com/tjfontaine/genai-gateway/internal/api/gemini"
	"github.com/tjfontaine/genai-gateway/internal/api/huggingface"
	"github.com/tjfontaine/genai-gateway/internal/api/vision"
	"github.com/tjfontaine/genai-gateway/internal/domain"
	"github.com/tjfontaine/genai-gateway/internal/provider"
)

// NoResponseText is returned and recorded when a chat reply cannot be
// extracted from an otherwise successful provider response.
const NoResponseText = "No response from AI"

const (
	contentTypeText = "text/plain; charset=utf-8"
	contentTypeJPEG = "image/jpeg"
	contentTypeMPEG = "audio/mpeg"
)

func notConfigured(m domain.Modality) error {
	return domain.ErrConfiguration("no %s provider configured", m)
}

func (g *Gateway) chat(ctx context.Context, p ChatProvider, owner domain.Identity, req *domain.ChatRequest) (*domain.GenerationResult, error) {
	if p == nil {
		return nil, notConfigured(domain.ModalityChat)
	}

	messages, dropped := g.budget.Trim(req.Messages)
	if dropped > 0 {
		g.logger.Info("transcript trimmed to token budget",
			slog.String("conversation_id", req.ConversationID),
			slog.Int("dropped", dropped),
			slog.Int("kept", len(messages)),
		)
	}

	var resp *gemini.GenerateContentResponse
	err := g.call(ctx, domain.ModalityChat, gemini.Name, func(ctx context.Context) error {
		var err error
		resp, err = p.GenerateContent(ctx, gemini.NewRequest(messages))
		return err
	})
	if err != nil {
		return nil, err
	}

	reply, ok := resp.Text()
	if !ok {
		g.logger.Warn("chat reply not found in provider response",
			slog.String("conversation_id", req.ConversationID),
			slog.Int("body_bytes", len(resp.Raw)),
		)
		reply = NoResponseText
	}

	path, err := g.upload(ctx, domain.ModalityChat, owner, req.ConversationID, "txt", contentTypeText, []byte(reply))
	if err != nil {
		return nil, err
	}

	rec := &domain.ChatRecord{
		RecordMeta:     domain.RecordMeta{Owner: owner, StoragePath: path},
		ConversationID: req.ConversationID,
		Input:          req.Messages[len(req.Messages)-1].Text,
		Response:       reply,
	}
	id, err := g.record(ctx, path, func(ctx context.Context) (int64, error) {
		return g.ledger.AppendChat(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	return &domain.GenerationResult{
		Modality:       domain.ModalityChat,
		RecordID:       id,
		ConversationID: req.ConversationID,
		Text:           reply,
		StoragePath:    path,
	}, nil
}

func (g *Gateway) image(ctx context.Context, p ImageProvider, owner domain.Identity, req *domain.ImageRequest) (*domain.GenerationResult, error) {
	if p == nil {
		return nil, notConfigured(domain.ModalityImage)
	}

	modelKey := req.Model
	if modelKey == "" {
		modelKey = domain.DefaultImageModel
	}
	model, err := domain.LookupImageModel(modelKey)
	if err != nil {
		return nil, err
	}

	prompt, truncated := g.truncate(domain.ModalityImage, req.Prompt)

	var data []byte
	err = g.call(ctx, domain.ModalityImage, huggingface.Name, func(ctx context.Context) error {
		var err error
		data, err = p.TextToImage(ctx, model.Key, huggingface.NewRequest(prompt, req.NegativePrompt))
		return err
	})
	if err != nil {
		return nil, err
	}

	path, err := g.upload(ctx, domain.ModalityImage, owner, "", "jpg", contentTypeJPEG, data)
	if err != nil {
		return nil, err
	}
	url := g.sign(ctx, path)

	rec := &domain.ImageRecord{
		RecordMeta: domain.RecordMeta{Owner: owner, StoragePath: path},
		Prompt:     prompt,
		ImageURL:   url,
		ModelUsed:  model.Label,
	}
	id, err := g.record(ctx, path, func(ctx context.Context) (int64, error) {
		return g.ledger.AppendImage(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	return &domain.GenerationResult{
		Modality:    domain.ModalityImage,
		RecordID:    id,
		Data:        data,
		ContentType: contentTypeJPEG,
		StoragePath: path,
		URL:         url,
		Model:       model.Label,
		Truncated:   truncated,
	}, nil
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func (g *Gateway) speech(ctx context.Context, p SpeechProvider, owner domain.Identity, req *domain.SpeechRequest) (*domain.GenerationResult, error) {
	if p == nil {
		return nil, notConfigured(domain.ModalitySpeech)
	}

	voice, err := domain.LookupVoice(req.Voice)
	if err != nil {
		return nil, err
	}

	settings := elevenlabs.VoiceSettings{
		Speed:           valueOr(req.Speed, elevenlabs.DefaultSpeed),
		Stability:       valueOr(req.Stability, elevenlabs.DefaultStability),
		SimilarityBoost: valueOr(req.Similarity, elevenlabs.DefaultSimilarity),
	}

	var data []byte
	err = g.call(ctx, domain.ModalitySpeech, elevenlabs.Name, func(ctx context.Context) error {
		var err error
		data, err = p.TextToSpeech(ctx, voice.ID, &elevenlabs.SpeechRequest{
			Text:          req.Text,
			ModelID:       elevenlabs.DefaultModelID,
			VoiceSettings: settings,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	path, err := g.upload(ctx, domain.ModalitySpeech, owner, "", "mp3", contentTypeMPEG, data)
	if err != nil {
		return nil, err
	}
	url := g.sign(ctx, path)

	rec := &domain.SpeechRecord{
		RecordMeta: domain.RecordMeta{Owner: owner, StoragePath: path},
		Input:      req.Text,
		Voice:      voice.Name,
		AudioURL:   url,
		Speed:      settings.Speed,
		Stability:  settings.Stability,
		Similarity: settings.SimilarityBoost,
	}
	id, err := g.record(ctx, path, func(ctx context.Context) (int64, error) {
		return g.ledger.AppendSpeech(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	return &domain.GenerationResult{
		Modality:    domain.ModalitySpeech,
		RecordID:    id,
		Data:        data,
		ContentType: contentTypeMPEG,
		StoragePath: path,
		URL:         url,
		Model:       elevenlabs.DefaultModelID,
	}, nil
}

func (g *Gateway) music(ctx context.Context, p MusicProvider, owner domain.Identity, req *domain.MusicRequest) (*domain.GenerationResult, error) {
	if p == nil {
		return nil, notConfigured(domain.ModalityMusic)
	}

	prompt, truncated := g.truncate(domain.ModalityMusic, req.Prompt)
	sound := &elevenlabs.SoundRequest{
		Text:            prompt,
		DurationSeconds: valueOr(req.DurationSeconds, elevenlabs.DefaultDuration),
		PromptInfluence: valueOr(req.PromptInfluence, elevenlabs.DefaultPromptInfluence),
	}

	var data []byte
	err := g.call(ctx, domain.ModalityMusic, elevenlabs.Name, func(ctx context.Context) error {
		var err error
		data, err = p.SoundGeneration(ctx, sound)
		return err
	})
	if err != nil {
		return nil, err
	}

	path, err := g.upload(ctx, domain.ModalityMusic, owner, "", "mp3", contentTypeMPEG, data)
	if err != nil {
		return nil, err
	}
	url := g.sign(ctx, path)

	rec := &domain.MusicRecord{
		RecordMeta:      domain.RecordMeta{Owner: owner, StoragePath: path},
		Prompt:          prompt,
		AudioURL:        url,
		DurationSeconds: sound.DurationSeconds,
		PromptInfluence: sound.PromptInfluence,
	}
	id, err := g.record(ctx, path, func(ctx context.Context) (int64, error) {
		return g.ledger.AppendMusic(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	return &domain.GenerationResult{
		Modality:    domain.ModalityMusic,
		RecordID:    id,
		Data:        data,
		ContentType: contentTypeMPEG,
		StoragePath: path,
		URL:         url,
		Truncated:   truncated,
	}, nil
}

// truncate shortens a free-text prompt to the provider limit. The shortened
// prompt is the one sent and recorded.
func (g *Gateway) truncate(m domain.Modality, prompt string) (string, bool) {
	out, truncated := provider.TruncatePrompt(prompt, provider.MaxPromptLength)
	if truncated {
		g.logger.Info("prompt truncated",
			slog.String("modality", string(m)),
			slog.Int("original_length", len([]rune(prompt))),
			slog.Int("truncated_length", provider.MaxPromptLength),
		)
	}
	return out, truncated
}

// ocr has no artifact and no history record.
func (g *Gateway) ocr(ctx context.Context, p OCRProvider, req *domain.OCRRequest) (*domain.GenerationResult, error) {
	if p == nil {
		return nil, notConfigured(domain.ModalityOCR)
	}

	var text string
	err := g.call(ctx, domain.ModalityOCR, vision.Name, func(ctx context.Context) error {
		var err error
		text, err = p.DetectText(ctx, req.Image)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &domain.GenerationResult{Modality: domain.ModalityOCR, Text: text}, nil
}
