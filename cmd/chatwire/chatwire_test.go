package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/leofalp/chatwire/core/llmerr"
)

const openAIReply = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "Rome."}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 9, "completion_tokens": 2, "total_tokens": 11}
}`

const anthropicReply = `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-3-5-sonnet-latest",
  "content": [{"type": "text", "text": "Paris."}],
  "stop_reason": "end_turn",
  "stop_sequence": null,
  "usage": {"input_tokens": 12, "output_tokens": 3}
}`

// captured is the last request seen by a fake provider.
type captured struct {
	path   string
	header http.Header
	body   map[string]any
}

func fakeProvider(t *testing.T, status int, reply string) (*httptest.Server, *captured) {
	t.Helper()
	seen := &captured{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.path = r.URL.Path
		seen.header = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &seen.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(server.Close)
	return server, seen
}

// run executes the command tree with args, isolated from any .env file.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCommand()
	root.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// TestChat_OpenAIPrintsReply verifies the default provider and that unset
// options stay out of the request.
func TestChat_OpenAIPrintsReply(t *testing.T) {
	server, seen := fakeProvider(t, http.StatusOK, openAIReply)
	t.Setenv("OPENAI_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", server.URL+"/v1")

	stdout, _, err := run(t, "chat", "What is the capital of Italy?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stdout != "Rome.\n" {
		t.Errorf("unexpected output %q", stdout)
	}
	if seen.path != "/v1/chat/completions" {
		t.Errorf("unexpected path %q", seen.path)
	}
	if got := seen.header.Get("Authorization"); got != "Bearer sk-test" {
		t.Errorf("unexpected Authorization header %q", got)
	}
	if seen.body["model"] != "gpt-4o" {
		t.Errorf("expected default model, got %v", seen.body["model"])
	}
	for _, key := range []string{"temperature", "max_tokens"} {
		if _, ok := seen.body[key]; ok {
			t.Errorf("%s must not be sent when unset", key)
		}
	}
}

// TestChat_AnthropicDefaultsMaxTokens verifies Anthropic headers, the system
// field and the max_tokens default.
func TestChat_AnthropicDefaultsMaxTokens(t *testing.T) {
	server, seen := fakeProvider(t, http.StatusOK, anthropicReply)
	t.Setenv("ANTHROPIC_KEY", "sk-ant")
	t.Setenv("ANTHROPIC_BASE_URL", server.URL+"/v1/")

	stdout, _, err := run(t, "chat", "-p", "anthropic", "-s", "Be terse.", "-t", "0", "Capital of France?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stdout != "Paris.\n" {
		t.Errorf("unexpected output %q", stdout)
	}
	if seen.path != "/v1/messages" {
		t.Errorf("unexpected path %q", seen.path)
	}
	if seen.header.Get("x-api-key") != "sk-ant" || seen.header.Get("anthropic-version") != "2023-06-01" {
		t.Errorf("unexpected headers %v", seen.header)
	}
	if seen.body["model"] != "claude-3-5-sonnet-latest" || seen.body["system"] != "Be terse." {
		t.Errorf("unexpected body %v", seen.body)
	}
	if seen.body["max_tokens"] != float64(defaultAnthropicMaxTokens) {
		t.Errorf("expected max_tokens %d, got %v", defaultAnthropicMaxTokens, seen.body["max_tokens"])
	}
	if temperature, ok := seen.body["temperature"]; !ok || temperature != float64(0) {
		t.Errorf("explicit zero temperature must be sent, got %v", seen.body["temperature"])
	}
}

// TestChat_ConversationFile verifies YAML history, model and system are used
// and the prompt is appended last.
func TestChat_ConversationFile(t *testing.T) {
	server, seen := fakeProvider(t, http.StatusOK, openAIReply)
	t.Setenv("OPENAI_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", server.URL+"/v1/")

	path := filepath.Join(t.TempDir(), "thread.yaml")
	conversation := `model: gpt-4o-mini
system: You are terse.
messages:
  - role: user
    content: Capital of Italy?
  - role: assistant
    content: Rome.
`
	if err := os.WriteFile(path, []byte(conversation), 0o600); err != nil {
		t.Fatalf("write conversation: %v", err)
	}

	if _, _, err := run(t, "chat", "--conversation", path, "And of France?"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if seen.body["model"] != "gpt-4o-mini" {
		t.Errorf("expected model from file, got %v", seen.body["model"])
	}
	messages, ok := seen.body["messages"].([]any)
	if !ok || len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %v", seen.body["messages"])
	}
	if want := (map[string]any{"role": "system", "content": "You are terse."}); !reflect.DeepEqual(messages[0], want) {
		t.Errorf("unexpected first message %v", messages[0])
	}
	if want := (map[string]any{"role": "user", "content": "And of France?"}); !reflect.DeepEqual(messages[3], want) {
		t.Errorf("unexpected last message %v", messages[3])
	}
}

func TestChat_StreamPrintsDeltas(t *testing.T) {
	chunks := []string{
		`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant","content":"Ro"},"finish_reason":null}]}`,
		`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"content":"me."},"finish_reason":"stop"}]}`,
		`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[],"usage":{"prompt_tokens":9,"completion_tokens":2,"total_tokens":11}}`,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(server.Close)
	t.Setenv("OPENAI_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", server.URL+"/v1/")

	stdout, _, err := run(t, "chat", "--stream", "Capital of Italy?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stdout != "Rome.\n" {
		t.Errorf("unexpected output %q", stdout)
	}
}

// TestChat_VerboseLogsToStderr verifies request logs go to stderr without the key.
func TestChat_VerboseLogsToStderr(t *testing.T) {
	server, _ := fakeProvider(t, http.StatusOK, openAIReply)
	t.Setenv("OPENAI_KEY", "sk-secret-value")
	t.Setenv("OPENAI_BASE_URL", server.URL+"/v1/")

	_, stderr, err := run(t, "chat", "-v", "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stderr, "chat request completed") {
		t.Errorf("expected completion log, got %q", stderr)
	}
	if strings.Contains(stderr, "sk-secret-value") {
		t.Error("logs must not contain the key")
	}
}

func TestChat_APIErrorKind(t *testing.T) {
	server, _ := fakeProvider(t, http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	t.Setenv("OPENAI_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", server.URL+"/v1/")

	_, _, err := run(t, "chat", "hi")

	var apiErr *llmerr.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *llmerr.APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("unexpected status %d", apiErr.StatusCode)
	}
	if code := exitCode(err); code != 4 {
		t.Errorf("expected exit code 4, got %d", code)
	}
}

func TestChat_MissingKeyIsConfigurationError(t *testing.T) {
	t.Setenv("ANTHROPIC_KEY", "")

	_, _, err := run(t, "chat", "-p", "anthropic", "hi")
	if llmerr.KindOf(err) != llmerr.KindConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if code := exitCode(err); code != 2 {
		t.Errorf("expected exit code 2, got %d", code)
	}
}

func TestChat_RequiresPrompt(t *testing.T) {
	t.Setenv("OPENAI_KEY", "sk-test")

	_, _, err := run(t, "chat")
	if err == nil {
		t.Fatal("expected an error without prompt or conversation")
	}
	if code := exitCode(err); code != 64 {
		t.Errorf("expected exit code 64, got %d", code)
	}
}

func TestChat_UnknownProvider(t *testing.T) {
	_, _, err := run(t, "chat", "-p", "gemini", "hi")
	if llmerr.KindOf(err) != llmerr.KindConfiguration {
		t.Errorf("expected configuration error, got %v", err)
	}
}

// TestChat_ProviderFromEnvironment verifies CHATWIRE_* variables stand in for flags.
func TestChat_ProviderFromEnvironment(t *testing.T) {
	server, seen := fakeProvider(t, http.StatusOK, anthropicReply)
	t.Setenv("CHATWIRE_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_KEY", "sk-ant")
	t.Setenv("ANTHROPIC_BASE_URL", server.URL+"/v1/")

	stdout, _, err := run(t, "chat", "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stdout != "Paris.\n" || seen.path != "/v1/messages" {
		t.Errorf("unexpected output %q on path %q", stdout, seen.path)
	}
}

func TestEnv_NeverPrintsKey(t *testing.T) {
	t.Setenv("OPENAI_KEY", "sk-secret-value")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:9999/v1")

	stdout, _, err := run(t, "env")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"provider: openai", "base_url: http://localhost:9999/v1/", "api_key: configured"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in %q", want, stdout)
		}
	}
	if strings.Contains(stdout, "sk-secret-value") {
		t.Error("env must not print the key")
	}
}

func TestEnv_ReportsMissingKey(t *testing.T) {
	t.Setenv("ANTHROPIC_KEY", "")

	stdout, _, err := run(t, "env", "-p", "anthropic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"base_url: https://api.anthropic.com/v1/", "api_key: missing (ANTHROPIC_KEY)"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in %q", want, stdout)
		}
	}
}

func TestEnv_ReadsDotenvFile(t *testing.T) {
	t.Setenv("OPENAI_KEY", "")
	os.Unsetenv("OPENAI_KEY")

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("OPENAI_KEY=sk-from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	var stdout bytes.Buffer
	root := newRootCommand()
	root.SetArgs([]string{"env", "--env-file", path})
	root.SetOut(&stdout)
	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout.String(), "api_key: configured") {
		t.Errorf("expected key from file, got %q", stdout.String())
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"configuration", llmerr.Configuration("model", "must not be empty"), 2},
		{"transport", &llmerr.TransportError{Provider: "openai", Cause: errors.New("refused")}, 3},
		{"api", &llmerr.APIError{Provider: "openai", StatusCode: 500}, 4},
		{"decode", &llmerr.DecodeError{Field: "id"}, 5},
		{"stream", &llmerr.StreamError{Message: "stream interrupted"}, 6},
		{"wrapped", fmt.Errorf("sending: %w", &llmerr.StreamError{Message: "x"}), 6},
		{"usage", &usageError{msg: "prompt required"}, 64},
		{"other", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
