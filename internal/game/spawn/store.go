package spawn

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the persisted state of one spawn point's boss.
type Status struct {
	SpawnID    string
	CreatureID string
	Encounter  uuid.UUID
	Alive      bool
	Health     float64
	Phase      int
	DiedAt     time.Time
	// RespawnAt is zero while alive and for creatures that never respawn.
	RespawnAt time.Time
	UpdatedAt time.Time
}

// StatusStore persists Status rows keyed by spawn ID.
type StatusStore interface {
	// Save upserts s.
	Save(ctx context.Context, s Status) error
	// Load returns the status for spawnID, or false when none is stored.
	Load(ctx context.Context, spawnID string) (Status, bool, error)
	// List returns every stored status ordered by spawn ID.
	List(ctx context.Context) ([]Status, error)
}

// MemoryStore is an in-process StatusStore.
//
// MemoryStore is safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]Status
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]Status)}
}

// Save upserts s, stamping UpdatedAt when unset.
func (m *MemoryStore) Save(_ context.Context, s Status) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	m.mu.Lock()
	m.rows[s.SpawnID] = s
	m.mu.Unlock()
	return nil
}

// Load returns the stored status for spawnID.
func (m *MemoryStore) Load(_ context.Context, spawnID string) (Status, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.rows[spawnID]
	return s, ok, nil
}

// List returns every stored status ordered by spawn ID.
func (m *MemoryStore) List(_ context.Context) ([]Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Status, 0, len(m.rows))
	for _, s := range m.rows {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SpawnID < out[j].SpawnID })
	return out, nil
}
