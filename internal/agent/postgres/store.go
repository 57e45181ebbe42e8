// Package postgres persists agent checkpoints in PostgreSQL so suspended
// sessions survive process restarts.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sqlscout/sqlscout/internal/agent"
)

const upsertCheckpointQuery = `
INSERT INTO agent_checkpoint (session_id, stage, state, interrupt, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (session_id) DO UPDATE SET
    stage = EXCLUDED.stage,
    state = EXCLUDED.state,
    interrupt = EXCLUDED.interrupt,
    updated_at = EXCLUDED.updated_at
`

const selectCheckpointQuery = `
SELECT session_id, stage, state, interrupt, updated_at
FROM agent_checkpoint
WHERE session_id = $1
`

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Save(ctx context.Context, cp agent.Checkpoint) error {
	stateJSON, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	var interruptJSON any
	if cp.Interrupt != nil {
		encoded, err := json.Marshal(cp.Interrupt)
		if err != nil {
			return fmt.Errorf("marshal interrupt: %w", err)
		}
		interruptJSON = encoded
	}

	_, err = s.db.ExecContext(ctx, upsertCheckpointQuery,
		cp.SessionID, string(cp.Stage), stateJSON, interruptJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert checkpoint: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, sessionID string) (agent.Checkpoint, error) {
	var (
		cp            agent.Checkpoint
		stage         string
		stateJSON     []byte
		interruptJSON []byte
	)
	row := s.db.QueryRowContext(ctx, selectCheckpointQuery, sessionID)
	err := row.Scan(&cp.SessionID, &stage, &stateJSON, &interruptJSON, &cp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return agent.Checkpoint{}, agent.ErrNotFound
	}
	if err != nil {
		return agent.Checkpoint{}, fmt.Errorf("select checkpoint: %w", err)
	}

	cp.Stage = agent.Stage(stage)
	if err := json.Unmarshal(stateJSON, &cp.State); err != nil {
		return agent.Checkpoint{}, fmt.Errorf("decode state: %w", err)
	}
	if len(interruptJSON) > 0 {
		var interrupt agent.Interrupt
		if err := json.Unmarshal(interruptJSON, &interrupt); err != nil {
			return agent.Checkpoint{}, fmt.Errorf("decode interrupt: %w", err)
		}
		cp.Interrupt = &interrupt
	}
	return cp, nil
}
