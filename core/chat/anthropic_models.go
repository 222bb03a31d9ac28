package chat

import "encoding/json"

// AnthropicChatCompletion is the Anthropic messages response.
type AnthropicChatCompletion struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         Role           `json:"role"`
	Model        string         `json:"model"`
	Content      []ContentBlock `json:"content"`
	StopReason   string         `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        AnthropicUsage `json:"usage"`
}

// Text concatenates the text blocks of the response.
func (c AnthropicChatCompletion) Text() string {
	var text string
	for _, block := range c.Content {
		if block.Type == BlockText {
			text += block.Text
		}
	}
	return text
}

// ToolCalls returns the tool_use blocks as tool calls.
func (c AnthropicChatCompletion) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, block := range c.Content {
		if block.Type == BlockToolUse {
			calls = append(calls, ToolCall{
				ID:       block.ID,
				Type:     "function",
				Function: FunctionCall{Name: block.Name, Arguments: string(block.Input)},
			})
		}
	}
	return calls
}

// AnthropicUsage is the token accounting of an Anthropic message, including
// prompt cache reads and writes.
type AnthropicUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
}

// ContentBlockType discriminates the blocks of a message.
type ContentBlockType string

const (
	BlockText     ContentBlockType = "text"
	BlockToolUse  ContentBlockType = "tool_use"
	BlockThinking ContentBlockType = "thinking"
)

// ContentBlock is one entry of a response's content list. Which fields are
// meaningful depends on Type:
//   - text: Text
//   - tool_use: ID, Name, Input (compact JSON)
//   - thinking: Thinking, Signature
type ContentBlock struct {
	Type      ContentBlockType `json:"type"`
	Text      string           `json:"text,omitempty"`
	ID        string           `json:"id,omitempty"`
	Name      string           `json:"name,omitempty"`
	Input     json.RawMessage  `json:"input,omitempty"`
	Thinking  string           `json:"thinking,omitempty"`
	Signature string           `json:"signature,omitempty"`
}

// Streaming wire types.

const (
	EventMessageStart      = "message_start"
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
	EventPing              = "ping"
	EventError             = "error"
)

const (
	DeltaTypeText      = "text_delta"
	DeltaTypeInputJSON = "input_json_delta"
	DeltaTypeThinking  = "thinking_delta"
	DeltaTypeSignature = "signature_delta"
)

// AnthropicStreamEvent is one event of an Anthropic message stream. Only the
// fields belonging to Type are populated.
type AnthropicStreamEvent struct {
	Type         string                   `json:"type"`
	Message      *AnthropicChatCompletion `json:"message,omitempty"`
	Index        int                      `json:"index"`
	ContentBlock *ContentBlock            `json:"content_block,omitempty"`
	Delta        *AnthropicEventDelta     `json:"delta,omitempty"`
	Usage        *AnthropicUsageDelta     `json:"usage,omitempty"`
	Error        *AnthropicErrorDetail    `json:"error,omitempty"`
}

// AnthropicEventDelta is the delta of a content_block_delta event (Type set)
// or of a message_delta event (StopReason set).
type AnthropicEventDelta struct {
	Type         string  `json:"type,omitempty"`
	Text         string  `json:"text,omitempty"`
	PartialJSON  string  `json:"partial_json,omitempty"`
	Thinking     string  `json:"thinking,omitempty"`
	Signature    string  `json:"signature,omitempty"`
	StopReason   string  `json:"stop_reason,omitempty"`
	StopSequence *string `json:"stop_sequence,omitempty"`
}

// AnthropicUsageDelta carries the cumulative counts sent with message_delta.
// Nil fields were not sent.
type AnthropicUsageDelta struct {
	InputTokens              *int `json:"input_tokens,omitempty"`
	OutputTokens             *int `json:"output_tokens,omitempty"`
	CacheCreationInputTokens *int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     *int `json:"cache_read_input_tokens,omitempty"`
}

// AnthropicErrorDetail is the payload of an error event.
type AnthropicErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
