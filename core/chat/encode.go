package chat

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/leofalp/chatwire/core/chat/schema"
	"github.com/leofalp/chatwire/core/credentials"
	"github.com/leofalp/chatwire/core/llmerr"
)

const (
	openAIChatPath        = "chat/completions"
	anthropicMessagesPath = "messages"
)

// EncodedRequest is a request body ready to be POSTed to Path, relative to
// the credentials' base URL.
type EncodedRequest struct {
	Provider credentials.Provider
	Path     string
	Body     []byte
}

// OpenAI wire shapes.

type openAIRequest struct {
	Model            string               `json:"model"`
	Messages         []openAIMessage      `json:"messages"`
	Temperature      *float64             `json:"temperature,omitempty"`
	TopP             *float64             `json:"top_p,omitempty"`
	N                *int                 `json:"n,omitempty"`
	Stream           bool                 `json:"stream,omitempty"`
	StreamOptions    *openAIStreamOptions `json:"stream_options,omitempty"`
	Stop             []string             `json:"stop,omitempty"`
	Seed             *int64               `json:"seed,omitempty"`
	MaxTokens        *int                 `json:"max_tokens,omitempty"`
	PresencePenalty  *float64             `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64             `json:"frequency_penalty,omitempty"`
	LogitBias        map[string]float64   `json:"logit_bias,omitempty"`
	User             string               `json:"user,omitempty"`
	Functions        []FunctionDefinition `json:"functions,omitempty"`
	FunctionCall     *FunctionCallMode    `json:"function_call,omitempty"`
	ResponseFormat   *ResponseFormat      `json:"response_format,omitempty"`
}

type openAIStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// openAIMessage always carries content, null when the turn is a function call.
type openAIMessage struct {
	Role         Role          `json:"role"`
	Content      *string       `json:"content"`
	Name         string        `json:"name,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
}

// Anthropic wire shapes.

type anthropicRequest struct {
	Model         string               `json:"model"`
	System        string               `json:"system,omitempty"`
	Messages      []anthropicMessage   `json:"messages"`
	MaxTokens     int                  `json:"max_tokens"`
	Temperature   *float64             `json:"temperature,omitempty"`
	TopP          *float64             `json:"top_p,omitempty"`
	TopK          *int                 `json:"top_k,omitempty"`
	StopSequences []string             `json:"stop_sequences,omitempty"`
	Stream        bool                 `json:"stream,omitempty"`
	Tools         []anthropicTool      `json:"tools,omitempty"`
	ToolChoice    *anthropicToolChoice `json:"tool_choice,omitempty"`
	Metadata      *anthropicMetadata   `json:"metadata,omitempty"`
}

type anthropicMessage struct {
	Role       Role       `json:"role"`
	Content    *string    `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema *schema.Schema `json:"input_schema"`
}

type anthropicToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type anthropicMetadata struct {
	UserID string `json:"user_id"`
}

// Encode validates the builder and renders the provider request body. It
// performs no I/O, and equal builders produce byte-identical bodies.
func (b Builder[T]) Encode() (EncodedRequest, error) {
	provider := providerOf[T]()

	var (
		path string
		body []byte
		err  error
	)
	switch provider {
	case credentials.Anthropic:
		path = anthropicMessagesPath
		body, err = encodeAnthropic(b.p)
	default:
		path = openAIChatPath
		body, err = encodeOpenAI(b.p)
	}
	if err != nil {
		return EncodedRequest{}, err
	}

	return EncodedRequest{Provider: provider, Path: path, Body: body}, nil
}

func encodeOpenAI(p params) ([]byte, error) {
	if err := validateCommon(p); err != nil {
		return nil, err
	}
	if err := rejectUnsupported(credentials.OpenAI, map[string]bool{
		"top_k":    p.topK != nil,
		"metadata": p.metadataUserID != nil,
	}); err != nil {
		return nil, err
	}

	req := openAIRequest{
		Model:            p.model,
		Temperature:      p.temperature,
		TopP:             p.topP,
		N:                p.n,
		Stream:           p.stream,
		Stop:             p.stop,
		Seed:             p.seed,
		MaxTokens:        p.maxTokens,
		PresencePenalty:  p.presencePenalty,
		FrequencyPenalty: p.frequencyPenalty,
		LogitBias:        p.logitBias,
		Functions:        p.functions,
		ResponseFormat:   p.responseFormat,
	}
	if p.stream {
		req.StreamOptions = &openAIStreamOptions{IncludeUsage: true}
	}
	if p.user != nil {
		req.User = *p.user
	}
	if !p.functionCall.IsZero() {
		mode := p.functionCall
		req.FunctionCall = &mode
	}

	if p.system != "" {
		system := p.system
		req.Messages = append(req.Messages, openAIMessage{Role: RoleSystem, Content: &system})
	}
	for i, msg := range p.messages {
		switch {
		case msg.Role == RoleTool:
			return nil, llmerr.Configuration(fmt.Sprintf("messages[%d].role", i), "tool turns are not part of the openai message shape, use a function result")
		case len(msg.ToolCalls) > 0:
			return nil, llmerr.Configuration(fmt.Sprintf("messages[%d].tool_calls", i), "not part of the openai message shape, use function_call")
		case msg.ToolCallID != "":
			return nil, llmerr.Configuration(fmt.Sprintf("messages[%d].tool_call_id", i), "not part of the openai message shape")
		}
		req.Messages = append(req.Messages, openAIMessage{
			Role:         msg.Role,
			Content:      msg.Content,
			Name:         msg.Name,
			FunctionCall: msg.FunctionCall,
		})
	}

	return marshalRequest(req)
}

func encodeAnthropic(p params) ([]byte, error) {
	if err := validateCommon(p); err != nil {
		return nil, err
	}
	if p.maxTokens == nil {
		return nil, llmerr.Configuration("max_tokens", "is required for anthropic requests")
	}
	if err := rejectUnsupported(credentials.Anthropic, map[string]bool{
		"n":                 p.n != nil,
		"seed":              p.seed != nil,
		"logit_bias":        p.logitBias != nil,
		"presence_penalty":  p.presencePenalty != nil,
		"frequency_penalty": p.frequencyPenalty != nil,
		"response_format":   p.responseFormat != nil,
		"user":              p.user != nil,
	}); err != nil {
		return nil, err
	}

	req := anthropicRequest{
		Model:         p.model,
		MaxTokens:     *p.maxTokens,
		Temperature:   p.temperature,
		TopP:          p.topP,
		TopK:          p.topK,
		StopSequences: p.stop,
		Stream:        p.stream,
	}
	if p.metadataUserID != nil {
		req.Metadata = &anthropicMetadata{UserID: *p.metadataUserID}
	}

	var system []string
	if p.system != "" {
		system = append(system, p.system)
	}
	for i, msg := range p.messages {
		switch {
		case msg.Role == RoleSystem:
			if text := msg.Text(); text != "" {
				system = append(system, text)
			}
			continue
		case msg.FunctionCall != nil:
			return nil, llmerr.Configuration(fmt.Sprintf("messages[%d].function_call", i), "not part of the anthropic message shape, use tool_calls")
		case msg.Name != "":
			return nil, llmerr.Configuration(fmt.Sprintf("messages[%d].name", i), "not part of the anthropic message shape")
		}

		out := anthropicMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCalls:  msg.ToolCalls,
			ToolCallID: msg.ToolCallID,
		}
		if msg.Role == RoleFunction || msg.Role == RoleTool {
			if msg.ToolCallID == "" {
				return nil, llmerr.Configuration(fmt.Sprintf("messages[%d].tool_call_id", i), "tool results must reference the call they answer")
			}
			out.Role = RoleUser
		}
		req.Messages = append(req.Messages, out)
	}
	if len(req.Messages) == 0 {
		return nil, llmerr.Configuration("messages", "at least one non-system message is required")
	}
	req.System = strings.Join(system, "\n\n")

	for _, fn := range p.functions {
		inputSchema := fn.Parameters
		if inputSchema == nil {
			inputSchema = schema.Object()
		}
		req.Tools = append(req.Tools, anthropicTool{Name: fn.Name, Description: fn.Description, InputSchema: inputSchema})
	}
	if !p.functionCall.IsZero() {
		switch p.functionCall {
		case FunctionCallAuto:
			req.ToolChoice = &anthropicToolChoice{Type: "auto"}
		case FunctionCallNone:
			req.ToolChoice = &anthropicToolChoice{Type: "none"}
		default:
			req.ToolChoice = &anthropicToolChoice{Type: "tool", Name: p.functionCall.FunctionName()}
		}
	}

	return marshalRequest(req)
}

func validateCommon(p params) error {
	if strings.TrimSpace(p.model) == "" {
		return llmerr.Configuration("model", "must not be empty")
	}
	if len(p.messages) == 0 {
		return llmerr.Configuration("messages", "at least one message is required")
	}
	if p.maxTokens != nil && *p.maxTokens <= 0 {
		return llmerr.Configuration("max_tokens", "must be positive, got %d", *p.maxTokens)
	}
	if p.n != nil && *p.n <= 0 {
		return llmerr.Configuration("n", "must be positive, got %d", *p.n)
	}

	for i, msg := range p.messages {
		switch msg.Role {
		case RoleSystem, RoleUser, RoleAssistant, RoleFunction, RoleTool:
		default:
			return llmerr.Configuration(fmt.Sprintf("messages[%d].role", i), "unknown role %q", msg.Role)
		}
		if msg.Content == nil && msg.FunctionCall == nil && len(msg.ToolCalls) == 0 {
			return llmerr.Configuration(fmt.Sprintf("messages[%d].content", i), "a message without content must carry a function or tool call")
		}
	}

	for i, fn := range p.functions {
		if fn.Name == "" {
			return llmerr.Configuration(fmt.Sprintf("functions[%d].name", i), "must not be empty")
		}
	}
	if name := p.functionCall.FunctionName(); name != "" && !hasFunction(p.functions, name) {
		return llmerr.Configuration("function_call", "forces %q which is not among the defined functions", name)
	}

	return nil
}

// rejectUnsupported fails on the first set field, in name order so the
// reported field does not depend on map iteration.
func rejectUnsupported(provider credentials.Provider, set map[string]bool) error {
	var names []string
	for name, isSet := range set {
		if isSet {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	slices.Sort(names)
	return llmerr.Configuration(names[0], "is not supported by %s", provider)
}

func hasFunction(functions []FunctionDefinition, name string) bool {
	for _, fn := range functions {
		if fn.Name == name {
			return true
		}
	}
	return false
}

func marshalRequest(req any) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, llmerr.Configuration("request", "cannot encode: %v", err)
	}
	return body, nil
}
