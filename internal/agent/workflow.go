package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sqlscout/sqlscout/internal/dbexec"
	"github.com/sqlscout/sqlscout/internal/llm"
	"github.com/sqlscout/sqlscout/internal/observability"
	"github.com/sqlscout/sqlscout/internal/schema"
	"github.com/sqlscout/sqlscout/internal/sqlcheck"
)

// ErrNoPendingApproval is returned when a resume arrives for a session that
// is not suspended at the approval gate.
var ErrNoPendingApproval = errors.New("agent: no pending approval")

type EngineConfig struct {
	// RequireValidSyntax fails a session before the approval gate when the
	// generated query does not parse as a single SELECT. When false a
	// keyword-safe query still reaches approval and any syntax error
	// surfaces at execution time.
	RequireValidSyntax bool
}

// Engine drives a session through the workflow stages. Each session id is
// serialized behind its own lock; distinct sessions run concurrently.
type Engine struct {
	generator llm.Generator
	renderer  llm.Renderer
	executor  dbexec.Executor
	schema    schema.ContextProvider
	store     CheckpointStore
	logger    *slog.Logger
	cfg       EngineConfig

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type Dependencies struct {
	Generator llm.Generator
	Renderer  llm.Renderer
	Executor  dbexec.Executor
	Schema    schema.ContextProvider
	Store     CheckpointStore
	Logger    *slog.Logger
}

func NewEngine(cfg EngineConfig, deps Dependencies) *Engine {
	return &Engine{
		generator: deps.Generator,
		renderer:  deps.Renderer,
		executor:  deps.Executor,
		schema:    deps.Schema,
		store:     deps.Store,
		logger:    deps.Logger,
		cfg:       cfg,
		locks:     make(map[string]*sessionLock),
	}
}

// decision tells the driver loop what to do after a stage ran.
type decision struct {
	next    Stage
	suspend bool
}

// Begin writes the checkpoint a new attempt starts from: a fresh state for
// an unknown session id, or the existing transcript with the attempt fields
// cleared for a continuation. It holds the session lock for the whole
// load-reset-save so a continuation cannot interleave with an in-flight run
// of the same session.
func (e *Engine) Begin(ctx context.Context, sessionID, message string) (Status, error) {
	unlock := e.lockSession(sessionID)
	defer unlock()

	state := NewState(message)
	if existing, err := e.store.Load(ctx, sessionID); err == nil {
		state = existing.State
		state.BeginAttempt(message)
	} else if !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("load checkpoint: %w", err)
	}

	cp := Checkpoint{SessionID: sessionID, State: state, Stage: StageGenerateSQL}
	if err := e.store.Save(ctx, cp); err != nil {
		return "", fmt.Errorf("save checkpoint: %w", err)
	}
	return state.Status, nil
}

// Run loads the checkpoint for sessionID and drives the workflow from its
// recorded stage until it suspends or reaches a terminal stage.
func (e *Engine) Run(ctx context.Context, sessionID string) error {
	unlock := e.lockSession(sessionID)
	defer unlock()

	cp, err := e.store.Load(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	return e.drive(ctx, sessionID, cp.State, cp.Stage)
}

// Resume applies human feedback to a suspended session. The interrupt is
// consumed exactly once: a second resume for the same suspension returns
// ErrNoPendingApproval.
func (e *Engine) Resume(ctx context.Context, sessionID, feedback string) error {
	unlock := e.lockSession(sessionID)
	defer unlock()

	cp, err := e.store.Load(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if cp.Interrupt == nil {
		return ErrNoPendingApproval
	}

	state := cp.State
	state.HumanFeedback = feedback
	state.Status = StatusRunning

	approved := Approved(feedback)
	observability.IncrementApproval(approved)
	e.logger.InfoContext(ctx, "approval received",
		slog.String("session_id", sessionID),
		slog.Bool("approved", approved))

	next := StageRejected
	if approved {
		next = StageExecuteSQL
	}

	// Persist the running state with the interrupt consumed, so status
	// lookups during execution see running rather than waiting_approval.
	running := Checkpoint{SessionID: sessionID, State: state, Stage: next}
	if err := e.store.Save(ctx, running); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	return e.drive(ctx, sessionID, state, next)
}

// Approved reports whether human feedback counts as an approval. Only a
// trimmed, case-insensitive "y" approves; everything else rejects.
func Approved(feedback string) bool {
	return strings.EqualFold(strings.TrimSpace(feedback), "y")
}

func (e *Engine) drive(ctx context.Context, sessionID string, state State, stage Stage) error {
	for {
		switch stage {
		case StageAwaitApproval:
			// Already suspended; the checkpoint with the interrupt is in
			// place and only human feedback moves the session forward.
			return nil
		case StageRejected:
			state.Status = StatusFailed
			state.AppendMessage(RoleSystem, "Query execution was rejected by the user.")
			return e.finish(ctx, sessionID, state, StageRejected, "rejected")
		case StageFailed:
			state.Status = StatusFailed
			return e.finish(ctx, sessionID, state, StageFailed, "failed")
		case StageDone:
			state.Status = StatusDone
			return e.finish(ctx, sessionID, state, StageDone, "done")
		}

		e.logger.InfoContext(ctx, "running stage",
			slog.String("session_id", sessionID),
			slog.String("stage", string(stage)))

		start := time.Now()
		d, err := e.runStage(ctx, stage, &state)
		observability.ObserveStageDuration(string(stage), time.Since(start))
		if err != nil {
			e.logger.ErrorContext(ctx, "stage failed",
				slog.String("session_id", sessionID),
				slog.String("stage", string(stage)),
				slog.String("error", err.Error()))
			state.Status = StatusFailed
			state.AppendMessage(RoleSystem, fmt.Sprintf("Stage %s failed: %v", stage, err))
			if saveErr := e.finish(ctx, sessionID, state, StageFailed, "failed"); saveErr != nil {
				return saveErr
			}
			return err
		}

		if d.suspend {
			state.Status = StatusWaitingApproval
			cp := Checkpoint{
				SessionID: sessionID,
				State:     state,
				Stage:     StageAwaitApproval,
				Interrupt: &Interrupt{
					SQL:         state.GeneratedSQL,
					Explanation: state.SQLExplanation,
				},
			}
			if err := e.store.Save(ctx, cp); err != nil {
				return fmt.Errorf("save checkpoint: %w", err)
			}
			e.logger.InfoContext(ctx, "session suspended for approval",
				slog.String("session_id", sessionID))
			return nil
		}

		stage = d.next
	}
}

func (e *Engine) finish(ctx context.Context, sessionID string, state State, stage Stage, outcome string) error {
	cp := Checkpoint{SessionID: sessionID, State: state, Stage: stage}
	if err := e.store.Save(ctx, cp); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	observability.IncrementSessionFinished(outcome)
	e.logger.InfoContext(ctx, "session finished",
		slog.String("session_id", sessionID),
		slog.String("outcome", outcome))
	return nil
}

func (e *Engine) runStage(ctx context.Context, stage Stage, state *State) (decision, error) {
	switch stage {
	case StageGenerateSQL:
		return e.stageGenerate(ctx, state)
	case StageValidateSQL:
		return e.stageValidate(ctx, state)
	case StageExecuteSQL:
		return e.stageExecute(ctx, state)
	case StageRenderMessage:
		return e.stageRender(ctx, state)
	default:
		return decision{}, fmt.Errorf("unknown stage %q", stage)
	}
}

func (e *Engine) stageGenerate(ctx context.Context, state *State) (decision, error) {
	state.Status = StatusPending

	result, err := e.generator.Generate(ctx, llm.GenerateRequest{
		UserQuery:     state.UserQuery,
		ChatHistory:   state.ChatHistory(),
		SchemaContext: e.schema.FormatContext(),
	})
	if err != nil {
		observability.IncrementLLMFailure("generate")
		return decision{}, fmt.Errorf("generate sql: %w", err)
	}

	state.GeneratedSQL = result.SQL
	state.SQLExplanation = result.Explanation
	state.AppendMessage(RoleAssistant,
		fmt.Sprintf("Proposed SQL:\n%s\n\n%s", result.SQL, result.Explanation))
	return decision{next: StageValidateSQL}, nil
}

func (e *Engine) stageValidate(_ context.Context, state *State) (decision, error) {
	verdict := sqlcheck.Validate(state.GeneratedSQL)

	isSafe := verdict.IsSafe
	state.IsSafe = &isSafe
	state.IsValidSyntax = verdict.IsValidSyntax
	state.BlockedKeywords = verdict.BlockedKeywords

	if !verdict.IsSafe {
		observability.IncrementUnsafeSQL()
		state.AppendMessage(RoleSystem, fmt.Sprintf(
			"Generated query was blocked: it contains restricted keywords (%s).",
			strings.Join(verdict.BlockedKeywords, ", ")))
		return decision{next: StageFailed}, nil
	}

	if e.cfg.RequireValidSyntax && verdict.IsValidSyntax != nil && !*verdict.IsValidSyntax {
		state.AppendMessage(RoleSystem,
			"Generated query was blocked: it does not parse as a single SELECT statement.")
		return decision{next: StageFailed}, nil
	}

	return decision{suspend: true}, nil
}

func (e *Engine) stageExecute(ctx context.Context, state *State) (decision, error) {
	result, err := e.executor.Execute(ctx, state.GeneratedSQL)
	if err != nil {
		// Execution errors are data, not workflow failures: the renderer
		// turns them into the final answer.
		state.SQLExecutionResult = fmt.Sprintf("ERROR: %v", err)
	} else {
		state.SQLExecutionResult = result.FormatText()
	}
	return decision{next: StageRenderMessage}, nil
}

func (e *Engine) stageRender(ctx context.Context, state *State) (decision, error) {
	message, err := e.renderer.Render(ctx, llm.RenderRequest{
		UserQuery:       state.UserQuery,
		SQL:             state.GeneratedSQL,
		ExecutionResult: state.SQLExecutionResult,
	})
	if err != nil {
		observability.IncrementLLMFailure("render")
		return decision{}, fmt.Errorf("render message: %w", err)
	}

	state.AIMessage = message
	state.AppendMessage(RoleAssistant, message)
	return decision{next: StageDone}, nil
}

// sessionLock is a refcounted mutex so the registry entry can be dropped
// once the last holder releases it.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func (e *Engine) lockSession(sessionID string) func() {
	e.mu.Lock()
	lock, ok := e.locks[sessionID]
	if !ok {
		lock = &sessionLock{}
		e.locks[sessionID] = lock
	}
	lock.refs++
	e.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		e.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(e.locks, sessionID)
		}
		e.mu.Unlock()
	}
}
