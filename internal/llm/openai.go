package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// OpenAIClient speaks to any OpenAI-compatible chat-completions endpoint.
// It implements both Generator and Renderer.
type OpenAIClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-5"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OpenAIClient{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

func (c *OpenAIClient) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	systemPrompt := "You convert natural language questions into a single PostgreSQL SELECT query " +
		"against the schema described below. " +
		"Respond with a JSON object: {\"sql\": \"<the query>\", \"explanation\": \"<one short paragraph>\"}. " +
		"Never produce statements that modify data."
	userPrompt := fmt.Sprintf(
		"Schema context:\n%s\n\nConversation so far:\n%s\n\nUser question:\n%s\n\nRules:\n- Use only tables and columns from the schema context.\n- Prefer explicit column lists.\n- Output exactly one SELECT statement in the sql field.",
		req.SchemaContext,
		strings.TrimSpace(req.ChatHistory),
		strings.TrimSpace(req.UserQuery),
	)

	content, err := c.complete(ctx, systemPrompt, userPrompt, true)
	if err != nil {
		return GenerateResult{}, err
	}

	var result GenerateResult
	if err := json.Unmarshal([]byte(stripMarkdownFence(content)), &result); err != nil {
		return GenerateResult{}, fmt.Errorf("decode structured generation output: %w", err)
	}
	result.SQL = strings.TrimSpace(result.SQL)
	if result.SQL == "" {
		return GenerateResult{}, fmt.Errorf("model returned empty SQL")
	}
	return result, nil
}

func (c *OpenAIClient) Render(ctx context.Context, req RenderRequest) (string, error) {
	systemPrompt := "You explain SQL query results to a non-technical user. " +
		"Answer the user's original question in plain language using only the execution result. " +
		"If the result describes an error, explain what went wrong without inventing data."
	userPrompt := fmt.Sprintf(
		"User question:\n%s\n\nExecuted SQL:\n%s\n\nExecution result:\n%s",
		strings.TrimSpace(req.UserQuery),
		strings.TrimSpace(req.SQL),
		strings.TrimSpace(req.ExecutionResult),
	)

	content, err := c.complete(ctx, systemPrompt, userPrompt, false)
	if err != nil {
		return "", err
	}
	message := strings.TrimSpace(stripMarkdownFence(content))
	if message == "" {
		return "", fmt.Errorf("model returned empty message")
	}
	return message, nil
}

func (c *OpenAIClient) complete(ctx context.Context, systemPrompt, userPrompt string, jsonMode bool) (string, error) {
	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"temperature": c.temperature,
	}
	if jsonMode {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("chat completion failed status=%d body=%s", resp.StatusCode, string(rawRespBody))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return "", fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty chat completion choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func stripMarkdownFence(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
