package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/felipepmaragno/stem-explainer/internal/crypto"
	"github.com/felipepmaragno/stem-explainer/internal/domain"
)

// Schema creates the tables used by the Postgres repositories.
const Schema = `
CREATE TABLE IF NOT EXISTS notes (
	id          UUID PRIMARY KEY,
	user_id     TEXT NOT NULL,
	question    TEXT NOT NULL,
	user_notes  TEXT NOT NULL DEFAULT '',
	saved_at    TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS notes_user_saved_idx ON notes (user_id, saved_at DESC);

CREATE TABLE IF NOT EXISTS explanation_feedback (
	id             UUID PRIMARY KEY,
	user_id        TEXT,
	question       TEXT NOT NULL,
	explanation    TEXT NOT NULL,
	is_helpful     BOOLEAN NOT NULL,
	feedback_text  TEXT,
	created_at     TIMESTAMPTZ NOT NULL
);
`

func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// invalidTextRepresentation is raised when a note id is not a UUID.
const invalidTextRepresentation = "22P02"

func isBadID(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == invalidTextRepresentation
}

type PostgresNoteRepository struct {
	db     *sql.DB
	sealer crypto.Sealer
}

// NewPostgresNoteRepository stores user_notes through sealer; nil keeps
// them as plaintext.
func NewPostgresNoteRepository(db *sql.DB, sealer crypto.Sealer) *PostgresNoteRepository {
	if sealer == nil {
		sealer = crypto.Plaintext{}
	}
	return &PostgresNoteRepository{db: db, sealer: sealer}
}

func (r *PostgresNoteRepository) List(ctx context.Context, userID string) ([]*domain.Note, error) {
	query := `
		SELECT id, user_id, question, user_notes, saved_at, created_at
		FROM notes
		WHERE user_id = $1
		ORDER BY saved_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	notes := []*domain.Note{}
	for rows.Next() {
		var n domain.Note
		var sealed string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Question, &sealed, &n.SavedAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		if n.UserNotes, err = r.sealer.Decrypt(sealed); err != nil {
			return nil, fmt.Errorf("decrypt note %s: %w", n.ID, err)
		}
		notes = append(notes, &n)
	}

	return notes, rows.Err()
}

func (r *PostgresNoteRepository) Create(ctx context.Context, note *domain.Note) error {
	sealed, err := r.sealer.Encrypt(note.UserNotes)
	if err != nil {
		return fmt.Errorf("encrypt note: %w", err)
	}

	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	note.CreatedAt = now
	note.SavedAt = now

	query := `
		INSERT INTO notes (id, user_id, question, user_notes, saved_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.ExecContext(ctx, query, note.ID, note.UserID, note.Question, sealed, note.SavedAt, note.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (r *PostgresNoteRepository) Update(ctx context.Context, note *domain.Note) error {
	sealed, err := r.sealer.Encrypt(note.UserNotes)
	if err != nil {
		return fmt.Errorf("encrypt note: %w", err)
	}

	query := `
		UPDATE notes
		SET question = $3, user_notes = $4, saved_at = $5
		WHERE id = $1 AND user_id = $2
		RETURNING created_at
	`
	note.SavedAt = time.Now().UTC()
	err = r.db.QueryRowContext(ctx, query, note.ID, note.UserID, note.Question, sealed, note.SavedAt).Scan(&note.CreatedAt)
	if err == sql.ErrNoRows || isBadID(err) {
		return domain.ErrNoteNotFound
	}
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	return nil
}

func (r *PostgresNoteRepository) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = $1 AND user_id = $2`, id, userID)
	if isBadID(err) {
		return domain.ErrNoteNotFound
	}
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNoteNotFound
	}
	return nil
}

func (r *PostgresNoteRepository) DeleteAll(ctx context.Context, userID string) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete notes: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

type PostgresFeedbackRepository struct {
	db *sql.DB
}

func NewPostgresFeedbackRepository(db *sql.DB) *PostgresFeedbackRepository {
	return &PostgresFeedbackRepository{db: db}
}

func (r *PostgresFeedbackRepository) Record(ctx context.Context, fb *domain.Feedback) error {
	if fb.ID == "" {
		fb.ID = uuid.New().String()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO explanation_feedback (id, user_id, question, explanation, is_helpful, feedback_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		fb.ID,
		sql.NullString{String: fb.UserID, Valid: fb.UserID != ""},
		fb.Question,
		fb.Explanation,
		fb.IsHelpful,
		sql.NullString{String: fb.FeedbackText, Valid: fb.FeedbackText != ""},
		fb.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}
