package agent

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusInitialized     Status = "initialized"
	StatusPending         Status = "pending"
	StatusWaitingApproval Status = "waiting_approval"
	StatusRunning         Status = "running"
	StatusDone            Status = "done"
	StatusFailed          Status = "failed"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// State is the session state threaded through the workflow. Fields are
// written additively stage by stage; Messages only ever grows.
type State struct {
	Messages           []Message `json:"messages"`
	UserQuery          string    `json:"user_query"`
	Status             Status    `json:"status"`
	GeneratedSQL       string    `json:"generated_sql,omitempty"`
	SQLExplanation     string    `json:"sql_explanation,omitempty"`
	IsSafe             *bool     `json:"is_safe,omitempty"`
	IsValidSyntax      *bool     `json:"is_valid_syntax,omitempty"`
	BlockedKeywords    []string  `json:"blocked_keywords,omitempty"`
	HumanFeedback      string    `json:"human_feedback,omitempty"`
	SQLExecutionResult string    `json:"sql_execution_result,omitempty"`
	AIMessage          string    `json:"ai_message,omitempty"`
}

func NewState(userQuery string) State {
	state := State{
		UserQuery: userQuery,
		Status:    StatusInitialized,
	}
	state.AppendMessage(RoleUser, userQuery)
	return state
}

func (s *State) AppendMessage(role, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content})
}

// BeginAttempt prepares an existing session for a follow-up question: the
// transcript is kept, everything attempt-scoped is cleared.
func (s *State) BeginAttempt(userQuery string) {
	s.UserQuery = userQuery
	s.Status = StatusInitialized
	s.GeneratedSQL = ""
	s.SQLExplanation = ""
	s.IsSafe = nil
	s.IsValidSyntax = nil
	s.BlockedKeywords = nil
	s.HumanFeedback = ""
	s.SQLExecutionResult = ""
	s.AIMessage = ""
	s.AppendMessage(RoleUser, userQuery)
}

// ChatHistory renders the transcript for the generation prompt.
func (s State) ChatHistory() string {
	var b strings.Builder
	for _, message := range s.Messages {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(message.Role), message.Content)
	}
	return b.String()
}

// Clone returns a deep copy so checkpoints never alias live state.
func (s State) Clone() State {
	copied := s
	if s.Messages != nil {
		copied.Messages = append([]Message(nil), s.Messages...)
	}
	if s.BlockedKeywords != nil {
		copied.BlockedKeywords = append([]string(nil), s.BlockedKeywords...)
	}
	if s.IsSafe != nil {
		value := *s.IsSafe
		copied.IsSafe = &value
	}
	if s.IsValidSyntax != nil {
		value := *s.IsValidSyntax
		copied.IsValidSyntax = &value
	}
	return copied
}
