package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newChatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
		})
	}))
}

func newClient(t *testing.T, baseURL string) *OpenAIClient {
	t.Helper()
	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: baseURL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	return client
}

func TestGenerateParsesStructuredOutput(t *testing.T) {
	server := newChatServer(t, `{"sql": "SELECT name FROM users", "explanation": "Lists user names."}`)
	defer server.Close()

	result, err := newClient(t, server.URL).Generate(context.Background(), GenerateRequest{
		UserQuery:     "who are my users?",
		SchemaContext: "<TABLE (users)>",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.SQL != "SELECT name FROM users" {
		t.Fatalf("SQL = %q", result.SQL)
	}
	if result.Explanation != "Lists user names." {
		t.Fatalf("Explanation = %q", result.Explanation)
	}
}

func TestGenerateStripsMarkdownFence(t *testing.T) {
	server := newChatServer(t, "```json\n{\"sql\": \"SELECT 1\", \"explanation\": \"x\"}\n```")
	defer server.Close()

	result, err := newClient(t, server.URL).Generate(context.Background(), GenerateRequest{UserQuery: "q"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.SQL != "SELECT 1" {
		t.Fatalf("SQL = %q", result.SQL)
	}
}

func TestGenerateRejectsMalformedOutput(t *testing.T) {
	server := newChatServer(t, "here is your query: SELECT 1")
	defer server.Close()

	_, err := newClient(t, server.URL).Generate(context.Background(), GenerateRequest{UserQuery: "q"})
	if err == nil {
		t.Fatal("expected error for unparsable structured output")
	}
}

func TestGenerateRejectsEmptySQL(t *testing.T) {
	server := newChatServer(t, `{"sql": "  ", "explanation": "nothing"}`)
	defer server.Close()

	_, err := newClient(t, server.URL).Generate(context.Background(), GenerateRequest{UserQuery: "q"})
	if err == nil {
		t.Fatal("expected error for empty SQL")
	}
}

func TestRenderReturnsPlainText(t *testing.T) {
	server := newChatServer(t, "You have 42 users.")
	defer server.Close()

	message, err := newClient(t, server.URL).Render(context.Background(), RenderRequest{
		UserQuery:       "how many users?",
		SQL:             "SELECT COUNT(*) FROM users",
		ExecutionResult: "count\n42",
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if message != "You have 42 users." {
		t.Fatalf("message = %q", message)
	}
}

func TestClientSurfacesUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newClient(t, server.URL).Render(context.Background(), RenderRequest{UserQuery: "q"})
	if err == nil {
		t.Fatal("expected error for upstream failure")
	}
	if !strings.Contains(err.Error(), "status=503") {
		t.Fatalf("error = %v", err)
	}
}

func TestNewOpenAIClientRequiresConfig(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIConfig{APIKey: "k"}); err == nil {
		t.Fatal("expected error for missing base URL")
	}
	if _, err := NewOpenAIClient(OpenAIConfig{BaseURL: "http://x"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}
