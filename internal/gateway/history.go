package gateway

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tjfontaine/genai-gateway/internal/domain"
)

func requireOwner(owner domain.Identity) error {
	if strings.TrimSpace(string(owner)) == "" {
		return domain.ErrUnauthenticated("caller identity is required")
	}
	return nil
}

// ListChat returns the owner's chat records oldest first, optionally for a
// single conversation.
func (g *Gateway) ListChat(ctx context.Context, owner domain.Identity, conversationID string) ([]domain.ChatRecord, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	return g.ledger.ListChat(ctx, owner, conversationID)
}

// ListImages returns the owner's images newest first with fresh URLs.
func (g *Gateway) ListImages(ctx context.Context, owner domain.Identity) ([]domain.ImageRecord, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	records, err := g.ledger.ListImages(ctx, owner)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].ImageURL = g.refresh(ctx, records[i].StoragePath, records[i].ImageURL)
	}
	return records, nil
}

// ListSpeech returns the owner's speech clips newest first with fresh URLs.
func (g *Gateway) ListSpeech(ctx context.Context, owner domain.Identity) ([]domain.SpeechRecord, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	records, err := g.ledger.ListSpeech(ctx, owner)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].AudioURL = g.refresh(ctx, records[i].StoragePath, records[i].AudioURL)
	}
	return records, nil
}

// ListMusic returns the owner's sound clips newest first with fresh URLs.
func (g *Gateway) ListMusic(ctx context.Context, owner domain.Identity) ([]domain.MusicRecord, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	records, err := g.ledger.ListMusic(ctx, owner)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].AudioURL = g.refresh(ctx, records[i].StoragePath, records[i].AudioURL)
	}
	return records, nil
}

// refresh re-signs path; on failure the stored URL is kept.
func (g *Gateway) refresh(ctx context.Context, path, stored string) string {
	if path == "" {
		return stored
	}
	signed, err := g.artifacts.SignURL(ctx, path, g.urlTTL)
	if err != nil {
		g.logger.Debug("keeping stored artifact URL",
			slog.String("storage_path", path),
			slog.String("error", err.Error()),
		)
		return stored
	}
	return signed
}

// Delete removes a record and its artifact. The requester must own the
// record. The artifact goes first; if that fails the record is kept so the
// pair stays consistent.
func (g *Gateway) Delete(ctx context.Context, owner domain.Identity, modality domain.Modality, id int64) error {
	if err := requireOwner(owner); err != nil {
		return err
	}
	if !modality.Recorded() {
		return domain.ErrValidation("modality %q has no history", modality)
	}

	ref, err := g.ledger.Lookup(ctx, modality, id)
	if err != nil {
		return err
	}
	if ref.Owner != owner {
		g.logger.Warn("delete refused: not the owner",
			slog.String("owner", string(owner)),
			slog.String("modality", string(modality)),
			slog.Int64("record_id", id),
		)
		return domain.ErrForbidden("%s record %d belongs to another user", modality, id)
	}

	if ref.StoragePath != "" {
		err := g.stage(ctx, "artifact.delete", func(ctx context.Context) error {
			return g.artifacts.Delete(ctx, ref.StoragePath)
		})
		if err != nil {
			if _, ok := domain.AsGatewayError(err); !ok {
				err = domain.ErrStorage("delete", err)
			}
			return err
		}
	}

	if err := g.ledger.Remove(ctx, modality, id); err != nil {
		return err
	}

	g.logger.Info("record deleted",
		slog.String("owner", string(owner)),
		slog.String("modality", string(modality)),
		slog.Int64("record_id", id),
	)
	return nil
}
