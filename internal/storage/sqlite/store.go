// Package sqlite is the SQLite-backed history ledger.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/genai-gateway/internal/domain"
	"github.com/tjfontaine/genai-gateway/internal/storage"
)

// Store is a SQLite implementation of HistoryLedger.
type Store struct {
	db *sqlx.DB
}

var _ storage.HistoryLedger = (*Store)(nil)

// tables maps each recorded modality to its history table.
var tables = map[domain.Modality]string{
	domain.ModalityChat:   "chatbot_history",
	domain.ModalityImage:  "image_history",
	domain.ModalitySpeech: "text_to_speech_history",
	domain.ModalityMusic:  "sound_history",
}

// New opens (and creates if needed) the ledger at dbPath. dbPath may be a
// plain file path or a "file:" URI.
func New(dbPath string) (*Store, error) {
	if !strings.HasPrefix(dbPath, "file:") && dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time; SQLite serializes writes anyway and this keeps
	// PRAGMAs applied to the only connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS chatbot_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			input TEXT NOT NULL,
			response TEXT NOT NULL,
			storage_path TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS image_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id TEXT NOT NULL,
			prompt TEXT NOT NULL,
			storage_path TEXT NOT NULL,
			image_url TEXT NOT NULL DEFAULT '',
			model_used TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS text_to_speech_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id TEXT NOT NULL,
			input TEXT NOT NULL,
			voice TEXT NOT NULL,
			storage_path TEXT NOT NULL,
			audio_url TEXT NOT NULL DEFAULT '',
			speed REAL NOT NULL,
			stability REAL NOT NULL,
			similarity REAL NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sound_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id TEXT NOT NULL,
			prompt TEXT NOT NULL,
			storage_path TEXT NOT NULL,
			audio_url TEXT NOT NULL DEFAULT '',
			duration_seconds REAL NOT NULL,
			prompt_influence REAL NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chatbot_owner ON chatbot_history(owner_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_chatbot_conversation ON chatbot_history(conversation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_image_owner ON image_history(owner_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tts_owner ON text_to_speech_history(owner_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sound_owner ON sound_history(owner_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// stamp fills in the creation time when the caller left it zero.
func stamp(meta *domain.RecordMeta) {
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
}

func (s *Store) insert(ctx context.Context, meta *domain.RecordMeta, query string, args ...any) (int64, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert record: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get record id: %w", err)
	}
	meta.ID = id
	return id, nil
}

func (s *Store) AppendChat(ctx context.Context, rec *domain.ChatRecord) (int64, error) {
	stamp(&rec.RecordMeta)
	return s.insert(ctx, &rec.RecordMeta,
		`INSERT INTO chatbot_history (owner_id, conversation_id, input, response, storage_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(rec.Owner), rec.ConversationID, rec.Input, rec.Response, rec.StoragePath, rec.CreatedAt)
}

func (s *Store) AppendImage(ctx context.Context, rec *domain.ImageRecord) (int64, error) {
	stamp(&rec.RecordMeta)
	return s.insert(ctx, &rec.RecordMeta,
		`INSERT INTO image_history (owner_id, prompt, storage_path, image_url, model_used, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(rec.Owner), rec.Prompt, rec.StoragePath, rec.ImageURL, rec.ModelUsed, rec.CreatedAt)
}

func (s *Store) AppendSpeech(ctx context.Context, rec *domain.SpeechRecord) (int64, error) {
	stamp(&rec.RecordMeta)
	return s.insert(ctx, &rec.RecordMeta,
		`INSERT INTO text_to_speech_history (owner_id, input, voice, storage_path, audio_url, speed, stability, similarity, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(rec.Owner), rec.Input, rec.Voice, rec.StoragePath, rec.AudioURL,
		rec.Speed, rec.Stability, rec.Similarity, rec.CreatedAt)
}

func (s *Store) AppendMusic(ctx context.Context, rec *domain.MusicRecord) (int64, error) {
	stamp(&rec.RecordMeta)
	return s.insert(ctx, &rec.RecordMeta,
		`INSERT INTO sound_history (owner_id, prompt, storage_path, audio_url, duration_seconds, prompt_influence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(rec.Owner), rec.Prompt, rec.StoragePath, rec.AudioURL,
		rec.DurationSeconds, rec.PromptInfluence, rec.CreatedAt)
}

func (s *Store) ListChat(ctx context.Context, owner domain.Identity, conversationID string) ([]domain.ChatRecord, error) {
	query := `SELECT id, owner_id, conversation_id, input, response, storage_path, created_at
	          FROM chatbot_history WHERE owner_id = ?`
	args := []any{string(owner)}
	if conversationID != "" {
		query += ` AND conversation_id = ?`
		args = append(args, conversationID)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	records := []domain.ChatRecord{}
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list chat history: %w", err)
	}
	return records, nil
}

func (s *Store) ListImages(ctx context.Context, owner domain.Identity) ([]domain.ImageRecord, error) {
	records := []domain.ImageRecord{}
	err := s.db.SelectContext(ctx, &records,
		`SELECT id, owner_id, prompt, storage_path, image_url, model_used, created_at
		 FROM image_history WHERE owner_id = ? ORDER BY created_at DESC, id DESC`, string(owner))
	if err != nil {
		return nil, fmt.Errorf("failed to list image history: %w", err)
	}
	return records, nil
}

func (s *Store) ListSpeech(ctx context.Context, owner domain.Identity) ([]domain.SpeechRecord, error) {
	records := []domain.SpeechRecord{}
	err := s.db.SelectContext(ctx, &records,
		`SELECT id, owner_id, input, voice, storage_path, audio_url, speed, stability, similarity, created_at
		 FROM text_to_speech_history WHERE owner_id = ? ORDER BY created_at DESC, id DESC`, string(owner))
	if err != nil {
		return nil, fmt.Errorf("failed to list speech history: %w", err)
	}
	return records, nil
}

func (s *Store) ListMusic(ctx context.Context, owner domain.Identity) ([]domain.MusicRecord, error) {
	records := []domain.MusicRecord{}
	err := s.db.SelectContext(ctx, &records,
		`SELECT id, owner_id, prompt, storage_path, audio_url, duration_seconds, prompt_influence, created_at
		 FROM sound_history WHERE owner_id = ? ORDER BY created_at DESC, id DESC`, string(owner))
	if err != nil {
		return nil, fmt.Errorf("failed to list sound history: %w", err)
	}
	return records, nil
}

func tableFor(m domain.Modality) (string, error) {
	table, ok := tables[m]
	if !ok {
		return "", domain.ErrValidation("modality %q has no history", m)
	}
	return table, nil
}

func (s *Store) Lookup(ctx context.Context, modality domain.Modality, id int64) (*domain.RecordRef, error) {
	table, err := tableFor(modality)
	if err != nil {
		return nil, err
	}

	var row struct {
		ID          int64  `db:"id"`
		Owner       string `db:"owner_id"`
		StoragePath string `db:"storage_path"`
	}
	err = s.db.GetContext(ctx, &row, `SELECT id, owner_id, storage_path FROM `+table+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound("%s record %d not found", modality, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s record: %w", modality, err)
	}

	return &domain.RecordRef{
		Modality:    modality,
		ID:          row.ID,
		Owner:       domain.Identity(row.Owner),
		StoragePath: row.StoragePath,
	}, nil
}

func (s *Store) Remove(ctx context.Context, modality domain.Modality, id int64) error {
	table, err := tableFor(modality)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s record: %w", modality, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return domain.ErrNotFound("%s record %d not found", modality, id)
	}

	return nil
}

func (s *Store) StoragePaths(ctx context.Context) (map[string]struct{}, error) {
	var paths []string
	err := s.db.SelectContext(ctx, &paths, `
		SELECT storage_path FROM chatbot_history WHERE storage_path != ''
		UNION SELECT storage_path FROM image_history WHERE storage_path != ''
		UNION SELECT storage_path FROM text_to_speech_history WHERE storage_path != ''
		UNION SELECT storage_path FROM sound_history WHERE storage_path != ''`)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage paths: %w", err)
	}

	out := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		out[p] = struct{}{}
	}
	return out, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
