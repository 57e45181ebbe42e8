package agent

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps checkpoints in process memory. Entries are isolated per
// session id, so concurrent sessions never contend on a shared lock.
type MemoryStore struct {
	checkpoints sync.Map
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(_ context.Context, cp Checkpoint) error {
	cp.State = cp.State.Clone()
	if cp.Interrupt != nil {
		interrupt := *cp.Interrupt
		cp.Interrupt = &interrupt
	}
	cp.UpdatedAt = time.Now().UTC()
	s.checkpoints.Store(cp.SessionID, cp)
	return nil
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (Checkpoint, error) {
	value, ok := s.checkpoints.Load(sessionID)
	if !ok {
		return Checkpoint{}, ErrNotFound
	}
	cp := value.(Checkpoint)
	cp.State = cp.State.Clone()
	if cp.Interrupt != nil {
		interrupt := *cp.Interrupt
		cp.Interrupt = &interrupt
	}
	return cp, nil
}
