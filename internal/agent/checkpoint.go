package agent

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by checkpoint stores when no checkpoint exists
// for the requested session.
var ErrNotFound = errors.New("agent: checkpoint not found")

type Stage string

const (
	StageGenerateSQL   Stage = "generate_sql"
	StageValidateSQL   Stage = "validate_sql"
	StageAwaitApproval Stage = "await_approval"
	StageExecuteSQL    Stage = "execute_sql"
	StageRenderMessage Stage = "render_message"
	StageRejected      Stage = "rejected"
	StageFailed        Stage = "failed"
	StageDone          Stage = "done"
)

// Interrupt is the payload surfaced while a session waits for human
// approval. It is present on a checkpoint only between suspension and the
// first resume.
type Interrupt struct {
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
}

// Checkpoint is the durable continuation of a session: the state plus the
// stage the workflow should run next.
type Checkpoint struct {
	SessionID string     `json:"session_id"`
	State     State      `json:"state"`
	Stage     Stage      `json:"stage"`
	Interrupt *Interrupt `json:"interrupt,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CheckpointStore persists session checkpoints keyed by session id. Save
// overwrites any previous checkpoint for the same session.
type CheckpointStore interface {
	Save(ctx context.Context, cp Checkpoint) error
	Load(ctx context.Context, sessionID string) (Checkpoint, error)
}
