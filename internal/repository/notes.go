package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felipepmaragno/stem-explainer/internal/domain"
)

// NoteRepository stores saved notes. Every operation is scoped to one user;
// a note owned by someone else is indistinguishable from a missing one.
type NoteRepository interface {
	List(ctx context.Context, userID string) ([]*domain.Note, error)
	Create(ctx context.Context, note *domain.Note) error
	Update(ctx context.Context, note *domain.Note) error
	Delete(ctx context.Context, userID, id string) error
	DeleteAll(ctx context.Context, userID string) (int, error)
}

type InMemoryNoteRepository struct {
	mu    sync.RWMutex
	notes map[string]map[string]*domain.Note // userID -> noteID -> note
	now   func() time.Time
}

func NewInMemoryNoteRepository() *InMemoryNoteRepository {
	return &InMemoryNoteRepository{
		notes: make(map[string]map[string]*domain.Note),
		now:   time.Now,
	}
}

func (r *InMemoryNoteRepository) List(_ context.Context, userID string) ([]*domain.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Note, 0, len(r.notes[userID]))
	for _, n := range r.notes[userID] {
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SavedAt.After(out[j].SavedAt)
	})
	return out, nil
}

func (r *InMemoryNoteRepository) Create(_ context.Context, note *domain.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	note.CreatedAt = now
	note.SavedAt = now

	if r.notes[note.UserID] == nil {
		r.notes[note.UserID] = make(map[string]*domain.Note)
	}
	cp := *note
	r.notes[note.UserID][note.ID] = &cp
	return nil
}

func (r *InMemoryNoteRepository) Update(_ context.Context, note *domain.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.notes[note.UserID][note.ID]
	if !ok {
		return domain.ErrNoteNotFound
	}

	existing.Question = note.Question
	existing.UserNotes = note.UserNotes
	existing.SavedAt = r.now().UTC()
	*note = *existing
	return nil
}

func (r *InMemoryNoteRepository) Delete(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.notes[userID][id]; !ok {
		return domain.ErrNoteNotFound
	}
	delete(r.notes[userID], id)
	return nil
}

func (r *InMemoryNoteRepository) DeleteAll(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.notes[userID])
	delete(r.notes, userID)
	return n, nil
}
