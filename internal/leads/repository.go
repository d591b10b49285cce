package leads

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for lead storage
type Repository interface {
	Create(ctx context.Context, lead *Lead) (*Lead, error)
	Update(ctx context.Context, id string, patch Patch) error
	GetByID(ctx context.Context, id string) (*Lead, error)
}

// InMemoryRepository keeps leads in process memory. State is lost on restart.
type InMemoryRepository struct {
	mu    sync.RWMutex
	leads map[string]*Lead
	now   func() time.Time
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		leads: make(map[string]*Lead),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a copy of lead, assigning ID and timestamps.
func (r *InMemoryRepository) Create(ctx context.Context, lead *Lead) (*Lead, error) {
	stored := *lead
	stored.ID = uuid.New().String()
	stored.CreatedAt = r.now()
	stored.UpdatedAt = stored.CreatedAt

	r.mu.Lock()
	r.leads[stored.ID] = &stored
	r.mu.Unlock()

	out := stored
	return &out, nil
}

// Update applies patch to an existing lead.
func (r *InMemoryRepository) Update(ctx context.Context, id string, patch Patch) error {
	if patch.Empty() {
		return ErrEmptyPatch
	}
	if err := patch.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	lead, ok := r.leads[id]
	if !ok {
		return ErrLeadNotFound
	}
	patch.Apply(lead)
	lead.UpdatedAt = r.now()
	return nil
}

// GetByID retrieves a lead by ID
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}

	out := *lead
	return &out, nil
}

// Count returns the number of stored leads.
func (r *InMemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.leads)
}
