package chat

import (
	"encoding/json"
	"fmt"

	"github.com/leofalp/chatwire/core/chat/schema"
)

// Role is the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
	RoleTool      Role = "tool"
)

// Message is one conversation turn.
//
// Content is nil only when the turn carries a function or tool call instead
// of text. Name is the function name on RoleFunction turns (OpenAI).
// ToolCallID and ToolCalls belong to the Anthropic message shape.
type Message struct {
	Role         Role          `json:"role" yaml:"role"`
	Content      *string       `json:"content,omitempty" yaml:"content,omitempty"`
	Name         string        `json:"name,omitempty" yaml:"name,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty" yaml:"function_call,omitempty"`
	ToolCallID   string        `json:"tool_call_id,omitempty" yaml:"tool_call_id,omitempty"`
	ToolCalls    []ToolCall    `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
}

// Text returns the message content, or "" when it has none.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// SystemMessage returns a RoleSystem message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: &content}
}

// UserMessage returns a RoleUser message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: &content}
}

// AssistantMessage returns a RoleAssistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: &content}
}

// FunctionResult is the reply to a legacy OpenAI function call.
func FunctionResult(name, content string) Message {
	return Message{Role: RoleFunction, Name: name, Content: &content}
}

// ToolResult is the reply to a tool call identified by callID.
func ToolResult(callID, content string) Message {
	return Message{Role: RoleTool, ToolCallID: callID, Content: &content}
}

// FunctionCall is a model request to invoke a function. Arguments is the raw
// JSON text produced by the model and may be malformed.
type FunctionCall struct {
	Name      string `json:"name" yaml:"name"`
	Arguments string `json:"arguments" yaml:"arguments"`
}

// ToolCall is a function call carrying an identifier that the matching
// tool result refers back to.
type ToolCall struct {
	ID       string       `json:"id" yaml:"id"`
	Type     string       `json:"type" yaml:"type"`
	Function FunctionCall `json:"function" yaml:"function"`
}

// FunctionDefinition describes a function the model may call.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  *schema.Schema `json:"parameters,omitempty"`
}

// FunctionCallMode controls whether and which function the model calls.
// The zero value is unset.
type FunctionCallMode struct {
	mode string
	name string
}

var (
	FunctionCallAuto = FunctionCallMode{mode: "auto"}
	FunctionCallNone = FunctionCallMode{mode: "none"}
)

// CallFunction forces a call to the named function.
func CallFunction(name string) FunctionCallMode {
	return FunctionCallMode{mode: "function", name: name}
}

// IsZero reports whether the mode is unset.
func (m FunctionCallMode) IsZero() bool { return m.mode == "" }

// FunctionName returns the forced function name, or "" for auto and none.
func (m FunctionCallMode) FunctionName() string { return m.name }

func (m FunctionCallMode) String() string {
	if m.mode == "function" {
		return "function:" + m.name
	}
	return m.mode
}

// MarshalJSON writes the OpenAI function_call shape: "auto", "none" or
// {"name": ...}.
func (m FunctionCallMode) MarshalJSON() ([]byte, error) {
	switch m.mode {
	case "auto", "none":
		return json.Marshal(m.mode)
	case "function":
		return json.Marshal(struct {
			Name string `json:"name"`
		}{Name: m.name})
	default:
		return nil, fmt.Errorf("function call mode is unset")
	}
}

// ResponseFormat selects the OpenAI output format ("text" or "json_object").
type ResponseFormat struct {
	Type string `json:"type"`
}

var (
	ResponseFormatText = ResponseFormat{Type: "text"}
	ResponseFormatJSON = ResponseFormat{Type: "json_object"}
)
