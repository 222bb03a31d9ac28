package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/leofalp/chatwire/core/credentials"
	"github.com/leofalp/chatwire/core/llmerr"
)

// DecodeChatCompletion parses an OpenAI chat-completion body. Every field the
// response schema requires must be present; unknown fields are ignored.
func DecodeChatCompletion(body []byte) (*ChatCompletion, error) {
	var wire struct {
		ID                *string `json:"id"`
		Object            *string `json:"object"`
		Created           *int64  `json:"created"`
		Model             *string `json:"model"`
		SystemFingerprint string  `json:"system_fingerprint"`
		Choices           []struct {
			Index        *int     `json:"index"`
			Message      *Message `json:"message"`
			FinishReason *string  `json:"finish_reason"`
		} `json:"choices"`
		Usage *struct {
			PromptTokens     *int `json:"prompt_tokens"`
			CompletionTokens *int `json:"completion_tokens"`
			TotalTokens      *int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, unmarshalFailure(err)
	}

	switch {
	case wire.ID == nil:
		return nil, missing("id")
	case wire.Object == nil:
		return nil, missing("object")
	case wire.Created == nil:
		return nil, missing("created")
	case wire.Model == nil:
		return nil, missing("model")
	case wire.Choices == nil:
		return nil, missing("choices")
	case len(wire.Choices) == 0:
		return nil, &llmerr.DecodeError{Field: "choices", Cause: errors.New("at least one choice is required")}
	case wire.Usage == nil:
		return nil, missing("usage")
	case wire.Usage.PromptTokens == nil:
		return nil, missing("usage.prompt_tokens")
	case wire.Usage.CompletionTokens == nil:
		return nil, missing("usage.completion_tokens")
	case wire.Usage.TotalTokens == nil:
		return nil, missing("usage.total_tokens")
	}

	out := &ChatCompletion{
		ID:                *wire.ID,
		Object:            *wire.Object,
		Created:           *wire.Created,
		Model:             *wire.Model,
		SystemFingerprint: wire.SystemFingerprint,
		Choices:           make([]ChatCompletionChoice, 0, len(wire.Choices)),
		Usage: Usage{
			PromptTokens:     *wire.Usage.PromptTokens,
			CompletionTokens: *wire.Usage.CompletionTokens,
			TotalTokens:      *wire.Usage.TotalTokens,
		},
	}

	for i, choice := range wire.Choices {
		path := fmt.Sprintf("choices[%d]", i)
		switch {
		case choice.Message == nil:
			return nil, missing(path + ".message")
		case choice.Message.Role == "":
			return nil, missing(path + ".message.role")
		case choice.FinishReason == nil:
			return nil, missing(path + ".finish_reason")
		}

		index := i
		if choice.Index != nil {
			index = *choice.Index
		}
		out.Choices = append(out.Choices, ChatCompletionChoice{
			Index:        index,
			Message:      *choice.Message,
			FinishReason: *choice.FinishReason,
		})
	}

	return out, nil
}

// DecodeAnthropicChatCompletion parses an Anthropic messages body. Content
// blocks are checked according to their type; unknown block types are
// rejected, unknown fields ignored.
func DecodeAnthropicChatCompletion(body []byte) (*AnthropicChatCompletion, error) {
	var wire struct {
		ID           *string           `json:"id"`
		Type         string            `json:"type"`
		Role         *Role             `json:"role"`
		Model        *string           `json:"model"`
		Content      []json.RawMessage `json:"content"`
		StopReason   *string           `json:"stop_reason"`
		StopSequence *string           `json:"stop_sequence"`
		Usage        *struct {
			InputTokens              *int `json:"input_tokens"`
			OutputTokens             *int `json:"output_tokens"`
			CacheCreationInputTokens int  `json:"cache_creation_input_tokens"`
			CacheReadInputTokens     int  `json:"cache_read_input_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, unmarshalFailure(err)
	}

	switch {
	case wire.ID == nil:
		return nil, missing("id")
	case wire.Role == nil:
		return nil, missing("role")
	case wire.Model == nil:
		return nil, missing("model")
	case wire.Content == nil:
		return nil, missing("content")
	case wire.StopReason == nil:
		return nil, missing("stop_reason")
	case wire.Usage == nil:
		return nil, missing("usage")
	case wire.Usage.InputTokens == nil:
		return nil, missing("usage.input_tokens")
	case wire.Usage.OutputTokens == nil:
		return nil, missing("usage.output_tokens")
	}

	out := &AnthropicChatCompletion{
		ID:           *wire.ID,
		Type:         wire.Type,
		Role:         *wire.Role,
		Model:        *wire.Model,
		Content:      make([]ContentBlock, 0, len(wire.Content)),
		StopReason:   *wire.StopReason,
		StopSequence: wire.StopSequence,
		Usage: AnthropicUsage{
			InputTokens:              *wire.Usage.InputTokens,
			OutputTokens:             *wire.Usage.OutputTokens,
			CacheCreationInputTokens: wire.Usage.CacheCreationInputTokens,
			CacheReadInputTokens:     wire.Usage.CacheReadInputTokens,
		},
	}

	for i, raw := range wire.Content {
		block, err := decodeContentBlock(raw, fmt.Sprintf("content[%d]", i))
		if err != nil {
			return nil, err
		}
		out.Content = append(out.Content, block)
	}

	return out, nil
}

func decodeContentBlock(raw json.RawMessage, path string) (ContentBlock, error) {
	var wire struct {
		Type      *ContentBlockType `json:"type"`
		Text      *string           `json:"text"`
		ID        *string           `json:"id"`
		Name      *string           `json:"name"`
		Input     json.RawMessage   `json:"input"`
		Thinking  *string           `json:"thinking"`
		Signature string            `json:"signature"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return ContentBlock{}, prefixed(path, unmarshalFailure(err))
	}
	if wire.Type == nil {
		return ContentBlock{}, missing(path + ".type")
	}

	block := ContentBlock{Type: *wire.Type}
	switch block.Type {
	case BlockText:
		if wire.Text == nil {
			return ContentBlock{}, missing(path + ".text")
		}
		block.Text = *wire.Text
	case BlockToolUse:
		switch {
		case wire.ID == nil:
			return ContentBlock{}, missing(path + ".id")
		case wire.Name == nil:
			return ContentBlock{}, missing(path + ".name")
		case len(wire.Input) == 0 || string(wire.Input) == "null":
			return ContentBlock{}, missing(path + ".input")
		}
		input, err := compactJSON(wire.Input)
		if err != nil {
			return ContentBlock{}, &llmerr.DecodeError{Field: path + ".input", Cause: err}
		}
		block.ID, block.Name, block.Input = *wire.ID, *wire.Name, input
	case BlockThinking:
		if wire.Thinking == nil {
			return ContentBlock{}, missing(path + ".thinking")
		}
		block.Thinking = *wire.Thinking
		block.Signature = wire.Signature
	default:
		return ContentBlock{}, &llmerr.DecodeError{Field: path + ".type", Cause: fmt.Errorf("unknown content block type %q", block.Type)}
	}

	return block, nil
}

// decodeAs dispatches to the decoder matching T.
func decodeAs[T Completion](body []byte) (*T, error) {
	var out T
	switch target := any(&out).(type) {
	case *ChatCompletion:
		decoded, err := DecodeChatCompletion(body)
		if err != nil {
			return nil, err
		}
		*target = *decoded
	case *AnthropicChatCompletion:
		decoded, err := DecodeAnthropicChatCompletion(body)
		if err != nil {
			return nil, err
		}
		*target = *decoded
	}
	return &out, nil
}

// apiErrorDetail is the error object both providers nest under "error".
// OpenAI sends param and code as strings, numbers or null.
type apiErrorDetail struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Param   json.RawMessage `json:"param"`
	Code    json.RawMessage `json:"code"`
}

// ParseAPIError builds the error for a response whose status is not 200. It understands
// {"error": {...}} (OpenAI) and {"type": "error", "error": {...}}
// (Anthropic); any other body is kept only as RawBody.
func ParseAPIError(provider credentials.Provider, status int, body []byte) *llmerr.APIError {
	apiErr := &llmerr.APIError{
		Provider:   provider.String(),
		StatusCode: status,
		RawBody:    string(body),
	}

	var payload struct {
		Error *apiErrorDetail `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == nil {
		return apiErr
	}

	apiErr.Type = payload.Error.Type
	apiErr.Message = payload.Error.Message
	apiErr.Param = rawText(payload.Error.Param)
	apiErr.Code = rawText(payload.Error.Code)
	return apiErr
}

// rawText renders a JSON scalar as plain text; null and absent become "".
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if s, err := strconv.Unquote(string(raw)); err == nil {
		return s
	}
	return string(raw)
}

func compactJSON(raw []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return json.RawMessage(buf.Bytes()), nil
}

func missing(field string) error {
	return &llmerr.DecodeError{Field: field}
}

// unmarshalFailure names the offending field of a type mismatch.
func unmarshalFailure(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &llmerr.DecodeError{Field: typeErr.Field, Cause: err}
	}
	return &llmerr.DecodeError{Cause: err}
}

func prefixed(path string, err error) error {
	var decodeErr *llmerr.DecodeError
	if !errors.As(err, &decodeErr) {
		return err
	}
	if decodeErr.Field == "" {
		return &llmerr.DecodeError{Field: path, Cause: decodeErr.Cause}
	}
	return &llmerr.DecodeError{Field: path + "." + decodeErr.Field, Cause: decodeErr.Cause}
}
