package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/genai-gateway/internal/domain"
	"github.com/tjfontaine/genai-gateway/internal/storage/bolt"
)

// decode reads a JSON body into v.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return domain.ErrValidation("request body exceeds %d bytes", tooBig.Limit)
		}
		return domain.ErrValidation("invalid JSON body: %v", err)
	}
	return nil
}

// generate runs payload for the caller and records the outcome in the log.
func (s *Server) generate(w http.ResponseWriter, r *http.Request, payload domain.Payload) (*domain.GenerationResult, bool) {
	ctx := r.Context()
	AddLogField(ctx, "modality", string(payload.Modality()))

	res, err := s.gw.Generate(ctx, domain.GenerationRequest{Owner: GetIdentity(ctx), Payload: payload})
	if err != nil {
		WriteError(w, r, err)
		return nil, false
	}
	if res.RecordID != 0 {
		AddLogField(ctx, "record_id", strconv.FormatInt(res.RecordID, 10))
	}
	return res, true
}

type chatResponse struct {
	ID             int64  `json:"id"`
	ConversationID string `json:"conversationId"`
	ExtractedText  string `json:"extractedText"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatRequest
	if err := s.decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	res, ok := s.generate(w, r, &req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		ID:             res.RecordID,
		ConversationID: res.ConversationID,
		ExtractedText:  res.Text,
	})
}

type imageResponse struct {
	ID          int64  `json:"id"`
	Image       []byte `json:"image"`
	ContentType string `json:"contentType"`
	StoragePath string `json:"gcsPath"`
	URL         string `json:"url"`
	Model       string `json:"model"`
	Truncated   bool   `json:"truncated,omitempty"`
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	var req domain.ImageRequest
	if err := s.decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	res, ok := s.generate(w, r, &req)
	if !ok {
		return
	}

	if accepts(r, res.ContentType) {
		writeBinary(w, res)
		return
	}
	// []byte marshals as base64.
	writeJSON(w, http.StatusOK, imageResponse{
		ID:          res.RecordID,
		Image:       res.Data,
		ContentType: res.ContentType,
		StoragePath: res.StoragePath,
		URL:         res.URL,
		Model:       res.Model,
		Truncated:   res.Truncated,
	})
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	var req domain.SpeechRequest
	if err := s.decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if res, ok := s.generate(w, r, &req); ok {
		writeBinary(w, res)
	}
}

func (s *Server) handleMusic(w http.ResponseWriter, r *http.Request) {
	var req domain.MusicRequest
	if err := s.decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if res, ok := s.generate(w, r, &req); ok {
		writeBinary(w, res)
	}
}

// handleOCR accepts the image as a multipart "file" field or as the raw body.
func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	var (
		img []byte
		err error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, _, ferr := r.FormFile("file")
		if ferr != nil {
			WriteError(w, r, domain.ErrValidation("file is required: %v", ferr))
			return
		}
		defer file.Close()
		img, err = io.ReadAll(file)
	} else {
		img, err = io.ReadAll(r.Body)
	}
	if err != nil {
		WriteError(w, r, domain.ErrValidation("failed to read image: %v", err))
		return
	}

	res, ok := s.generate(w, r, &domain.OCRRequest{Image: img})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"extractedText": res.Text})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	modality, err := domain.ParseModality(chi.URLParam(r, "modality"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	ctx := r.Context()
	owner := GetIdentity(ctx)
	AddLogField(ctx, "modality", string(modality))

	var records any
	switch modality {
	case domain.ModalityChat:
		records, err = s.gw.ListChat(ctx, owner, r.URL.Query().Get("conversationId"))
	case domain.ModalityImage:
		records, err = s.gw.ListImages(ctx, owner)
	case domain.ModalitySpeech:
		records, err = s.gw.ListSpeech(ctx, owner)
	case domain.ModalityMusic:
		records, err = s.gw.ListMusic(ctx, owner)
	default:
		err = domain.ErrValidation("modality %q has no history", modality)
	}
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	modality, err := domain.ParseModality(chi.URLParam(r, "modality"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, r, domain.ErrValidation("invalid record id %q", chi.URLParam(r, "id")))
		return
	}

	ctx := r.Context()
	AddLogField(ctx, "modality", string(modality))
	AddLogField(ctx, "record_id", strconv.FormatInt(id, 10))

	if err := s.gw.Delete(ctx, GetIdentity(ctx), modality, id); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.Voices())
}

func (s *Server) handleArtifact(artifacts ArtifactOpener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := bolt.KeyFromPath(r.URL.EscapedPath())
		if err != nil {
			WriteError(w, r, err)
			return
		}
		obj, err := artifacts.Open(r.Context(), key, r.URL.Query().Get("token"))
		if err != nil {
			WriteError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", obj.ContentType)
		w.Header().Set("Cache-Control", "private, max-age=3600")
		w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
		w.WriteHeader(http.StatusOK)
		w.Write(obj.Data)
	}
}

// accepts reports whether the Accept header names contentType exactly.
func accepts(r *http.Request, contentType string) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mt == contentType {
			return true
		}
	}
	return false
}

// writeBinary sends artifact bytes with correlation headers.
func writeBinary(w http.ResponseWriter, res *domain.GenerationResult) {
	h := w.Header()
	h.Set("Content-Type", res.ContentType)
	h.Set("Content-Length", strconv.Itoa(len(res.Data)))
	h.Set("X-Record-ID", strconv.FormatInt(res.RecordID, 10))
	h.Set("X-Storage-Path", res.StoragePath)
	if res.URL != "" {
		h.Set("X-Artifact-URL", res.URL)
	}
	w.WriteHeader(http.StatusOK)
	w.Write(res.Data)
}
