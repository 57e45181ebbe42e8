package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sqlscout/sqlscout/internal/observability"
)

// ErrResultNotReady is returned while a session has not yet rendered a
// final message.
var ErrResultNotReady = errors.New("agent: result not ready")

// Orchestrator is the API-facing surface of the agent: it allocates
// session ids, spawns workflow runs in the background, and answers status,
// approval, and result lookups from the checkpoint store.
type Orchestrator struct {
	engine *Engine
	store  CheckpointStore
	logger *slog.Logger
}

func NewOrchestrator(engine *Engine, store CheckpointStore, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{engine: engine, store: store, logger: logger}
}

// CreateSession starts a new session, or continues the conversation when
// sessionID names an existing one. The workflow runs in the background; the
// returned status reflects the checkpoint written before it starts.
func (o *Orchestrator) CreateSession(ctx context.Context, sessionID, message string) (string, Status, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	status, err := o.engine.Begin(ctx, sessionID, message)
	if err != nil {
		return "", "", fmt.Errorf("begin session: %w", err)
	}

	observability.IncrementSessionStarted()
	go o.runDetached(sessionID, func(ctx context.Context) error {
		return o.engine.Run(ctx, sessionID)
	})

	return sessionID, status, nil
}

// Status returns the current session status and whether the session is
// suspended waiting for approval.
func (o *Orchestrator) Status(ctx context.Context, sessionID string) (Status, bool, error) {
	cp, err := o.store.Load(ctx, sessionID)
	if err != nil {
		return "", false, err
	}
	return cp.State.Status, cp.Interrupt != nil, nil
}

// PendingApproval returns the interrupt payload of a suspended session.
func (o *Orchestrator) PendingApproval(ctx context.Context, sessionID string) (Interrupt, error) {
	cp, err := o.store.Load(ctx, sessionID)
	if err != nil {
		return Interrupt{}, err
	}
	if cp.Interrupt == nil {
		return Interrupt{}, ErrNoPendingApproval
	}
	return *cp.Interrupt, nil
}

// SubmitApproval resumes a suspended session with human feedback. The
// resumed workflow runs in the background.
func (o *Orchestrator) SubmitApproval(ctx context.Context, sessionID, feedback string) (Status, error) {
	cp, err := o.store.Load(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if cp.Interrupt == nil {
		return "", ErrNoPendingApproval
	}

	go o.runDetached(sessionID, func(ctx context.Context) error {
		return o.engine.Resume(ctx, sessionID, feedback)
	})

	return StatusRunning, nil
}

// Result returns the rendered final message of a completed session.
func (o *Orchestrator) Result(ctx context.Context, sessionID string) (Status, string, error) {
	cp, err := o.store.Load(ctx, sessionID)
	if err != nil {
		return "", "", err
	}
	if cp.State.AIMessage == "" {
		return "", "", ErrResultNotReady
	}
	return cp.State.Status, cp.State.AIMessage, nil
}

func (o *Orchestrator) runDetached(sessionID string, fn func(ctx context.Context) error) {
	ctx := observability.ContextWithTraceID(context.Background(), uuid.NewString())
	if err := fn(ctx); err != nil {
		o.logger.ErrorContext(ctx, "workflow run ended with error",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
	}
}
