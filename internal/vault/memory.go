package vault

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemoryRepository struct {
	mu    sync.Mutex
	slots map[uuid.UUID]Slot
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{slots: make(map[uuid.UUID]Slot)}
}

func (m *MemoryRepository) Insert(_ context.Context, slot Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[slot.ID]; ok {
		return fmt.Errorf("slot %s already exists", slot.ID)
	}
	m.slots[slot.ID] = slot
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, id uuid.UUID) (Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.slots[id]
	if !ok {
		return Slot{}, ErrSlotNotFound
	}
	return slot, nil
}

func (m *MemoryRepository) Update(_ context.Context, id uuid.UUID, expected int64, blob, putKey string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.slots[id]
	if !ok {
		return 0, ErrSlotNotFound
	}
	if slot.Revision != expected {
		return 0, ErrRevisionConflict
	}
	slot.Blob = blob
	slot.Revision++
	slot.LastPutKey = putKey
	slot.UpdatedAt = at
	m.slots[id] = slot
	return slot.Revision, nil
}

func (m *MemoryRepository) DeleteEmpty(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, slot := range m.slots {
		if slot.Revision == 0 && slot.UpdatedAt.Before(cutoff) {
			delete(m.slots, id)
			n++
		}
	}
	return n, nil
}
