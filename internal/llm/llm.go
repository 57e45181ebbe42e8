package llm

import "context"

type GenerateRequest struct {
	UserQuery     string `json:"user_query"`
	ChatHistory   string `json:"chat_history"`
	SchemaContext string `json:"schema_context"`
}

type GenerateResult struct {
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
}

type RenderRequest struct {
	UserQuery       string `json:"user_query"`
	SQL             string `json:"sql"`
	ExecutionResult string `json:"execution_result"`
}

// Generator turns a natural-language question into a candidate SQL query
// with a human-readable rationale. Malformed structured output is an error.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}

// Renderer summarizes an execution result (or error) as the final answer.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (string, error)
}
