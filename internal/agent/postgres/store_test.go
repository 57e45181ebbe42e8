package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/sqlscout/sqlscout/internal/agent"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestSaveUpsertsCheckpoint(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(upsertCheckpointQuery)).
		WithArgs("s-1", "await_approval", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	cp := agent.Checkpoint{
		SessionID: "s-1",
		State:     agent.NewState("show me all users"),
		Stage:     agent.StageAwaitApproval,
		Interrupt: &agent.Interrupt{SQL: "SELECT 1", Explanation: "A constant."},
	}
	if err := store.Save(context.Background(), cp); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestLoadRoundTripsStateAndInterrupt(t *testing.T) {
	store, mock := newMockStore(t)

	stateJSON := `{"messages":[{"role":"user","content":"show me all users"}],` +
		`"user_query":"show me all users","status":"waiting_approval"}`
	interruptJSON := `{"sql":"SELECT 1","explanation":"A constant."}`
	rows := sqlmock.NewRows([]string{"session_id", "stage", "state", "interrupt", "updated_at"}).
		AddRow("s-1", "await_approval", []byte(stateJSON), []byte(interruptJSON), time.Now().UTC())
	mock.ExpectQuery(regexp.QuoteMeta(selectCheckpointQuery)).
		WithArgs("s-1").
		WillReturnRows(rows)

	cp, err := store.Load(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cp.Stage != agent.StageAwaitApproval {
		t.Errorf("stage = %q", cp.Stage)
	}
	if cp.State.Status != agent.StatusWaitingApproval {
		t.Errorf("status = %q", cp.State.Status)
	}
	if cp.State.UserQuery != "show me all users" {
		t.Errorf("user query = %q", cp.State.UserQuery)
	}
	if cp.Interrupt == nil || cp.Interrupt.SQL != "SELECT 1" {
		t.Errorf("interrupt = %+v", cp.Interrupt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestLoadWithoutInterrupt(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"session_id", "stage", "state", "interrupt", "updated_at"}).
		AddRow("s-1", "done", []byte(`{"status":"done"}`), nil, time.Now().UTC())
	mock.ExpectQuery(regexp.QuoteMeta(selectCheckpointQuery)).
		WithArgs("s-1").
		WillReturnRows(rows)

	cp, err := store.Load(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cp.Interrupt != nil {
		t.Errorf("interrupt = %+v, want nil", cp.Interrupt)
	}
}

func TestLoadMissingSession(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectCheckpointQuery)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"session_id", "stage", "state", "interrupt", "updated_at"}))

	_, err := store.Load(context.Background(), "missing")
	if !errors.Is(err, agent.ErrNotFound) {
		t.Fatalf("err = %v, want agent.ErrNotFound", err)
	}
}
