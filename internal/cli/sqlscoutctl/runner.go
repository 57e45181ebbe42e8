// Package sqlscoutctl is a thin HTTP client over the agent API for use
// from shells and scripts.
package sqlscoutctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("sqlscoutctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "agent API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	sessionID := fs.String("session", "", "session id to continue an existing conversation")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 10*time.Second), "HTTP timeout (e.g. 10s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	command := strings.TrimSpace(fs.Arg(0))
	method := ""
	path := ""
	var body []byte
	switch command {
	case "health":
		method, path = http.MethodGet, "/v1/health"
	case "ready":
		method, path = http.MethodGet, "/v1/ready"
	case "schema":
		method, path = http.MethodGet, "/v1/schema"
	case "ask":
		if fs.NArg() < 2 {
			_, _ = fmt.Fprintln(stderr, "ask requires a question argument")
			return 2
		}
		payload := map[string]string{"message": strings.Join(fs.Args()[1:], " ")}
		if *sessionID != "" {
			payload["session_id"] = *sessionID
		}
		body, _ = json.Marshal(payload)
		method, path = http.MethodPost, "/v1/sessions"
	case "status":
		id, ok := requireSessionArg(fs, stderr, command)
		if !ok {
			return 2
		}
		method, path = http.MethodGet, "/v1/sessions/"+id
	case "approval":
		id, ok := requireSessionArg(fs, stderr, command)
		if !ok {
			return 2
		}
		method, path = http.MethodGet, "/v1/sessions/"+id+"/approval"
	case "approve", "reject":
		id, ok := requireSessionArg(fs, stderr, command)
		if !ok {
			return 2
		}
		feedback := "y"
		if command == "reject" {
			feedback = "n"
		}
		body, _ = json.Marshal(map[string]string{"feedback": feedback})
		method, path = http.MethodPost, "/v1/sessions/"+id+"/approval"
	case "result":
		id, ok := requireSessionArg(fs, stderr, command)
		if !ok {
			return 2
		}
		method, path = http.MethodGet, "/v1/sessions/"+id+"/result"
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}

	endpoint := strings.TrimRight(*baseURL, "/") + path
	code, responseBody, err := doRequest(ctx, client, method, endpoint, *apiKey, body)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func requireSessionArg(fs *flag.FlagSet, stderr io.Writer, command string) (string, bool) {
	if fs.NArg() < 2 || strings.TrimSpace(fs.Arg(1)) == "" {
		_, _ = fmt.Fprintf(stderr, "%s requires a session id argument\n", command)
		return "", false
	}
	return strings.TrimSpace(fs.Arg(1)), true
}

func doRequest(ctx context.Context, client *http.Client, method, url, apiKey string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: sqlscoutctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                 GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                  GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  schema                 GET /v1/schema")
	_, _ = fmt.Fprintln(w, "  ask <question>         POST /v1/sessions (use -session to continue)")
	_, _ = fmt.Fprintln(w, "  status <session-id>    GET /v1/sessions/{id}")
	_, _ = fmt.Fprintln(w, "  approval <session-id>  GET /v1/sessions/{id}/approval")
	_, _ = fmt.Fprintln(w, "  approve <session-id>   POST /v1/sessions/{id}/approval with y")
	_, _ = fmt.Fprintln(w, "  reject <session-id>    POST /v1/sessions/{id}/approval with n")
	_, _ = fmt.Fprintln(w, "  result <session-id>    GET /v1/sessions/{id}/result")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
