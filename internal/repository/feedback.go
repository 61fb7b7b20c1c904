package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felipepmaragno/stem-explainer/internal/domain"
)

type FeedbackRepository interface {
	Record(ctx context.Context, fb *domain.Feedback) error
}

type InMemoryFeedbackRepository struct {
	mu      sync.Mutex
	entries []domain.Feedback
}

func NewInMemoryFeedbackRepository() *InMemoryFeedbackRepository {
	return &InMemoryFeedbackRepository{}
}

func (r *InMemoryFeedbackRepository) Record(_ context.Context, fb *domain.Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if fb.ID == "" {
		fb.ID = uuid.New().String()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	r.entries = append(r.entries, *fb)
	return nil
}

// Entries returns a copy of everything recorded so far.
func (r *InMemoryFeedbackRepository) Entries() []domain.Feedback {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Feedback(nil), r.entries...)
}
