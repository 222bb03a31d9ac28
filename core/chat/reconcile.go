package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/leofalp/chatwire/core/llmerr"
)

// StreamState is the lifecycle position of a reconciler.
type StreamState int

const (
	StreamIdle StreamState = iota
	StreamAccumulating
	StreamComplete
	StreamFailed
)

func (s StreamState) String() string {
	switch s {
	case StreamIdle:
		return "idle"
	case StreamAccumulating:
		return "accumulating"
	case StreamComplete:
		return "complete"
	case StreamFailed:
		return "failed"
	default:
		return fmt.Sprintf("StreamState(%d)", int(s))
	}
}

// Folded is a snapshot of a reconciler. Value is complete only in
// StreamComplete; in every other state it holds what has arrived so far and
// Incomplete is true. Err is set in StreamFailed.
type Folded[T Completion] struct {
	State      StreamState
	Value      T
	Incomplete bool
	Err        error
}

// DeltaKind tells which field of a Delta is populated.
type DeltaKind int

const (
	DeltaContent DeltaKind = iota + 1
	DeltaThinking
	DeltaToolCall
	DeltaFinish
)

// Delta is a provider-independent increment observed while a stream is
// folded. Index is the choice index for OpenAI and the content block index
// for Anthropic.
type Delta struct {
	Kind         DeltaKind
	Index        int
	Text         string
	ToolCall     *ToolCallFragment
	FinishReason string
}

// ToolCallFragment is a piece of a tool call. ID and Name are set on the
// first fragment of a call; Arguments is the next slice of its JSON text.
type ToolCallFragment struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// lifecycle implements the state machine shared by both reconcilers.
type lifecycle struct {
	state  StreamState
	chunks int
	err    error
}

// State returns the current lifecycle state.
func (l *lifecycle) State() StreamState { return l.state }

// Chunks returns how many chunks or events were accepted.
func (l *lifecycle) Chunks() int { return l.chunks }

func (l *lifecycle) accept() error {
	if l.state == StreamComplete || l.state == StreamFailed {
		return &llmerr.StreamError{Message: fmt.Sprintf("chunk received after the stream was %s", l.state)}
	}
	l.state = StreamAccumulating
	l.chunks++
	return nil
}

// Fail moves the reconciler to StreamFailed. A cause that is not already a
// StreamError is wrapped in one. Terminal reconcilers keep their state.
func (l *lifecycle) Fail(cause error) error {
	err := cause
	if llmerr.KindOf(cause) != llmerr.KindStream {
		err = &llmerr.StreamError{Message: "stream interrupted", Cause: cause}
	}
	if l.state == StreamComplete || l.state == StreamFailed {
		return err
	}
	l.state = StreamFailed
	l.err = err
	return err
}

func (l *lifecycle) failField(field, format string, args ...any) error {
	return l.Fail(&llmerr.StreamError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// OpenAIReconciler folds chat.completion.chunk events into a ChatCompletion
// equal to the one a non-streaming request returns. The stream must be
// requested with usage included.
type OpenAIReconciler struct {
	lifecycle
	header  ChatCompletion
	choices map[int]*choiceFold
	usage   *Usage
}

type choiceFold struct {
	role         Role
	content      strings.Builder
	hasContent   bool
	functionCall *callFold
	toolCalls    map[int]*callFold
	finishReason string
}

type callFold struct {
	id        string
	typ       string
	name      string
	arguments strings.Builder
}

// NewOpenAIReconciler returns an Idle fold.
func NewOpenAIReconciler() *OpenAIReconciler {
	return &OpenAIReconciler{choices: make(map[int]*choiceFold)}
}

// Apply folds one chunk.
func (r *OpenAIReconciler) Apply(chunk ChatCompletionChunk) error {
	_, err := r.apply(chunk)
	return err
}

func (r *OpenAIReconciler) apply(chunk ChatCompletionChunk) ([]Delta, error) {
	if err := r.accept(); err != nil {
		return nil, err
	}

	if r.header.ID == "" {
		r.header.ID = chunk.ID
	}
	if r.header.Model == "" {
		r.header.Model = chunk.Model
	}
	if r.header.Created == 0 {
		r.header.Created = chunk.Created
	}
	if r.header.SystemFingerprint == "" {
		r.header.SystemFingerprint = chunk.SystemFingerprint
	}
	if chunk.Usage != nil {
		usage := *chunk.Usage
		r.usage = &usage
	}

	var deltas []Delta
	for _, choice := range chunk.Choices {
		fold := r.choices[choice.Index]
		if fold == nil {
			fold = &choiceFold{toolCalls: make(map[int]*callFold)}
			r.choices[choice.Index] = fold
		}
		if fold.finishReason != "" && carriesData(choice.Delta) {
			return nil, r.failField(fmt.Sprintf("choices[%d]", choice.Index), "fragment received after finish_reason %q", fold.finishReason)
		}

		delta := choice.Delta
		if delta.Role != "" {
			fold.role = delta.Role
		}

		if delta.Content != nil {
			fold.hasContent = true
			fold.content.WriteString(*delta.Content)
			if *delta.Content != "" {
				deltas = append(deltas, Delta{Kind: DeltaContent, Index: choice.Index, Text: *delta.Content})
			}
		}

		if fc := delta.FunctionCall; fc != nil {
			if fold.functionCall == nil {
				fold.functionCall = &callFold{}
			}
			if fold.functionCall.name == "" {
				fold.functionCall.name = fc.Name
			}
			fold.functionCall.arguments.WriteString(fc.Arguments)
			deltas = append(deltas, Delta{
				Kind:     DeltaToolCall,
				Index:    choice.Index,
				ToolCall: &ToolCallFragment{Name: fc.Name, Arguments: fc.Arguments},
			})
		}

		for _, tc := range delta.ToolCalls {
			tool := fold.toolCalls[tc.Index]
			if tool == nil {
				tool = &callFold{}
				fold.toolCalls[tc.Index] = tool
			}
			if tool.id == "" {
				tool.id = tc.ID
			}
			if tool.typ == "" {
				tool.typ = tc.Type
			}
			if tool.name == "" {
				tool.name = tc.Function.Name
			}
			tool.arguments.WriteString(tc.Function.Arguments)
			deltas = append(deltas, Delta{
				Kind:  DeltaToolCall,
				Index: choice.Index,
				ToolCall: &ToolCallFragment{
					Index:     tc.Index,
					ID:        tc.ID,
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}

		if choice.FinishReason != nil && *choice.FinishReason != "" {
			fold.finishReason = *choice.FinishReason
			deltas = append(deltas, Delta{Kind: DeltaFinish, Index: choice.Index, FinishReason: fold.finishReason})
		}
	}

	return deltas, nil
}

// applyPayload decodes one SSE data payload and folds it. A payload carrying
// an "error" object fails the stream.
func (r *OpenAIReconciler) applyPayload(payload string) ([]Delta, error) {
	var envelope struct {
		ChatCompletionChunk
		Error *apiErrorDetail `json:"error"`
	}
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		return nil, r.Fail(malformedChunk(err))
	}
	if envelope.Error != nil {
		return nil, r.failField("error", "%s: %s", envelope.Error.Type, envelope.Error.Message)
	}
	return r.apply(envelope.ChatCompletionChunk)
}

// Finish ends the stream at the [DONE] sentinel or end of body. It fails
// unless every choice has finished and usage has been reported.
func (r *OpenAIReconciler) Finish() error {
	switch r.state {
	case StreamComplete:
		return nil
	case StreamFailed:
		return r.err
	case StreamIdle:
		return r.failField("", "stream ended before any chunk arrived")
	}

	if r.header.ID == "" {
		return r.failField("id", "no chunk carried a completion id")
	}
	if len(r.choices) == 0 {
		return r.failField("choices", "stream ended without any choice")
	}
	for _, index := range r.choiceIndices() {
		if r.choices[index].finishReason == "" {
			return r.failField(fmt.Sprintf("choices[%d].finish_reason", index), "stream ended before the choice finished")
		}
	}
	if r.usage == nil {
		return r.failField("usage", "stream ended without usage")
	}

	r.state = StreamComplete
	return nil
}

// Result returns the folded completion.
func (r *OpenAIReconciler) Result() Folded[ChatCompletion] {
	return Folded[ChatCompletion]{
		State:      r.state,
		Value:      r.value(),
		Incomplete: r.state != StreamComplete,
		Err:        r.err,
	}
}

func (r *OpenAIReconciler) value() ChatCompletion {
	out := r.header
	out.Object = "chat.completion"
	if r.usage != nil {
		out.Usage = *r.usage
	}

	for _, index := range r.choiceIndices() {
		fold := r.choices[index]
		msg := Message{Role: fold.role}
		if msg.Role == "" {
			msg.Role = RoleAssistant
		}
		if fold.hasContent {
			content := fold.content.String()
			msg.Content = &content
		}
		if fold.functionCall != nil {
			msg.FunctionCall = &FunctionCall{
				Name:      fold.functionCall.name,
				Arguments: fold.functionCall.arguments.String(),
			}
		}
		for _, callIndex := range slices.Sorted(maps.Keys(fold.toolCalls)) {
			tool := fold.toolCalls[callIndex]
			typ := tool.typ
			if typ == "" {
				typ = "function"
			}
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{
				ID:       tool.id,
				Type:     typ,
				Function: FunctionCall{Name: tool.name, Arguments: tool.arguments.String()},
			})
		}

		out.Choices = append(out.Choices, ChatCompletionChoice{
			Index:        index,
			Message:      msg,
			FinishReason: fold.finishReason,
		})
	}

	return out
}

func carriesData(delta MessageDelta) bool {
	return (delta.Content != nil && *delta.Content != "") || delta.FunctionCall != nil || len(delta.ToolCalls) > 0
}

func (r *OpenAIReconciler) choiceIndices() []int {
	return slices.Sorted(maps.Keys(r.choices))
}

// AnthropicReconciler folds a message event stream into an
// AnthropicChatCompletion equal to the non-streaming response. Tool input
// fragments are concatenated per block and compacted once the message stops.
type AnthropicReconciler struct {
	lifecycle
	message   AnthropicChatCompletion
	started   bool
	usageSeen bool
	blocks    map[int]*blockFold
}

type blockFold struct {
	block        ContentBlock
	text         strings.Builder
	thinking     strings.Builder
	input        strings.Builder
	initialInput json.RawMessage
	stopped      bool
}

// NewAnthropicReconciler returns an Idle fold.
func NewAnthropicReconciler() *AnthropicReconciler {
	return &AnthropicReconciler{blocks: make(map[int]*blockFold)}
}

// Apply folds one event.
func (r *AnthropicReconciler) Apply(event AnthropicStreamEvent) error {
	_, err := r.apply(event)
	return err
}

func (r *AnthropicReconciler) apply(event AnthropicStreamEvent) ([]Delta, error) {
	if err := r.accept(); err != nil {
		return nil, err
	}

	if event.Type != EventMessageStart && event.Type != EventPing && event.Type != EventError && !r.started {
		return nil, r.failField("type", "%s received before message_start", event.Type)
	}

	switch event.Type {
	case EventPing:
		return nil, nil

	case EventError:
		if event.Error == nil {
			return nil, r.failField("error", "server reported an error")
		}
		return nil, r.failField("error", "%s: %s", event.Error.Type, event.Error.Message)

	case EventMessageStart:
		if r.started {
			return nil, r.failField("type", "duplicate message_start")
		}
		if event.Message == nil {
			return nil, r.failField("message", "message_start without message")
		}
		r.started = true
		r.message = AnthropicChatCompletion{
			ID:           event.Message.ID,
			Type:         event.Message.Type,
			Role:         event.Message.Role,
			Model:        event.Message.Model,
			StopReason:   event.Message.StopReason,
			StopSequence: event.Message.StopSequence,
			Usage:        event.Message.Usage,
		}
		return nil, nil

	case EventContentBlockStart:
		if event.ContentBlock == nil {
			return nil, r.failField("content_block", "content_block_start without content_block")
		}
		if _, exists := r.blocks[event.Index]; exists {
			return nil, r.failField(fmt.Sprintf("content[%d]", event.Index), "block started twice")
		}
		fold := &blockFold{block: ContentBlock{
			Type:      event.ContentBlock.Type,
			ID:        event.ContentBlock.ID,
			Name:      event.ContentBlock.Name,
			Signature: event.ContentBlock.Signature,
		}}
		fold.text.WriteString(event.ContentBlock.Text)
		fold.thinking.WriteString(event.ContentBlock.Thinking)
		fold.initialInput = event.ContentBlock.Input
		r.blocks[event.Index] = fold

		var deltas []Delta
		switch fold.block.Type {
		case BlockText:
			if event.ContentBlock.Text != "" {
				deltas = append(deltas, Delta{Kind: DeltaContent, Index: event.Index, Text: event.ContentBlock.Text})
			}
		case BlockToolUse:
			deltas = append(deltas, Delta{
				Kind:     DeltaToolCall,
				Index:    event.Index,
				ToolCall: &ToolCallFragment{Index: event.Index, ID: fold.block.ID, Name: fold.block.Name},
			})
		case BlockThinking:
		default:
			return nil, r.failField(fmt.Sprintf("content[%d].type", event.Index), "unknown content block type %q", fold.block.Type)
		}
		return deltas, nil

	case EventContentBlockDelta:
		fold, err := r.openBlock(event.Index)
		if err != nil {
			return nil, err
		}
		if event.Delta == nil {
			return nil, r.failField("delta", "content_block_delta without delta")
		}

		d := event.Delta
		switch d.Type {
		case DeltaTypeText:
			fold.text.WriteString(d.Text)
			return []Delta{{Kind: DeltaContent, Index: event.Index, Text: d.Text}}, nil
		case DeltaTypeInputJSON:
			fold.input.WriteString(d.PartialJSON)
			return []Delta{{
				Kind:     DeltaToolCall,
				Index:    event.Index,
				ToolCall: &ToolCallFragment{Index: event.Index, Arguments: d.PartialJSON},
			}}, nil
		case DeltaTypeThinking:
			fold.thinking.WriteString(d.Thinking)
			return []Delta{{Kind: DeltaThinking, Index: event.Index, Text: d.Thinking}}, nil
		case DeltaTypeSignature:
			fold.block.Signature += d.Signature
			return nil, nil
		default:
			// unknown delta types carry data this fold does not model, such as citations
			return nil, nil
		}

	case EventContentBlockStop:
		fold, err := r.openBlock(event.Index)
		if err != nil {
			return nil, err
		}
		fold.stopped = true
		return nil, nil

	case EventMessageDelta:
		var deltas []Delta
		if event.Delta != nil {
			if event.Delta.StopReason != "" {
				r.message.StopReason = event.Delta.StopReason
				deltas = append(deltas, Delta{Kind: DeltaFinish, FinishReason: event.Delta.StopReason})
			}
			if event.Delta.StopSequence != nil {
				stop := *event.Delta.StopSequence
				r.message.StopSequence = &stop
			}
		}
		if u := event.Usage; u != nil {
			r.usageSeen = true
			mergeUsage(&r.message.Usage, u)
		}
		return deltas, nil

	case EventMessageStop:
		return nil, r.complete()

	default:
		// unknown event types are skipped so new server events do not break old clients
		return nil, nil
	}
}

func (r *AnthropicReconciler) openBlock(index int) (*blockFold, error) {
	fold := r.blocks[index]
	if fold == nil {
		return nil, r.failField(fmt.Sprintf("content[%d]", index), "event for a block that was never started")
	}
	if fold.stopped {
		return nil, r.failField(fmt.Sprintf("content[%d]", index), "event for a block that already stopped")
	}
	return fold, nil
}

func (r *AnthropicReconciler) complete() error {
	if r.message.StopReason == "" {
		return r.failField("stop_reason", "message stopped without a stop reason")
	}
	if !r.usageSeen {
		return r.failField("usage", "message stopped without usage")
	}
	for _, index := range r.blockIndices() {
		fold := r.blocks[index]
		if !fold.stopped {
			return r.failField(fmt.Sprintf("content[%d]", index), "block was never stopped")
		}
		if fold.block.Type == BlockToolUse {
			if _, err := compactJSON([]byte(fold.rawInput())); err != nil {
				return r.Fail(&llmerr.StreamError{Field: fmt.Sprintf("content[%d].input", index), Message: "tool input is not valid JSON", Cause: err})
			}
		}
	}

	r.state = StreamComplete
	return nil
}

// applyPayload decodes one SSE data payload and folds it.
func (r *AnthropicReconciler) applyPayload(payload string) ([]Delta, error) {
	var event AnthropicStreamEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return nil, r.Fail(malformedChunk(err))
	}
	return r.apply(event)
}

// Finish is called at end of body. An Anthropic stream is only complete
// after message_stop, so reaching it in any other state fails.
func (r *AnthropicReconciler) Finish() error {
	switch r.state {
	case StreamComplete:
		return nil
	case StreamFailed:
		return r.err
	default:
		return r.failField("", "stream ended before message_stop")
	}
}

// Result returns the folded message. Tool inputs of a partial result hold
// the raw fragments received so far, which may not be valid JSON.
func (r *AnthropicReconciler) Result() Folded[AnthropicChatCompletion] {
	return Folded[AnthropicChatCompletion]{
		State:      r.state,
		Value:      r.value(),
		Incomplete: r.state != StreamComplete,
		Err:        r.err,
	}
}

func (r *AnthropicReconciler) value() AnthropicChatCompletion {
	out := r.message
	out.Content = make([]ContentBlock, 0, len(r.blocks))

	for _, index := range r.blockIndices() {
		fold := r.blocks[index]
		block := fold.block
		switch block.Type {
		case BlockText:
			block.Text = fold.text.String()
		case BlockThinking:
			block.Thinking = fold.thinking.String()
		case BlockToolUse:
			raw := fold.rawInput()
			if compacted, err := compactJSON([]byte(raw)); err == nil {
				block.Input = compacted
			} else {
				block.Input = json.RawMessage(raw)
			}
		}
		out.Content = append(out.Content, block)
	}

	return out
}

// rawInput is the concatenated input fragments, falling back to the input
// sent with content_block_start.
func (f *blockFold) rawInput() string {
	if f.input.Len() > 0 {
		return f.input.String()
	}
	if len(f.initialInput) > 0 {
		return string(f.initialInput)
	}
	return "{}"
}

func (r *AnthropicReconciler) blockIndices() []int {
	return slices.Sorted(maps.Keys(r.blocks))
}

func mergeUsage(usage *AnthropicUsage, delta *AnthropicUsageDelta) {
	if delta.InputTokens != nil {
		usage.InputTokens = *delta.InputTokens
	}
	if delta.OutputTokens != nil {
		usage.OutputTokens = *delta.OutputTokens
	}
	if delta.CacheCreationInputTokens != nil {
		usage.CacheCreationInputTokens = *delta.CacheCreationInputTokens
	}
	if delta.CacheReadInputTokens != nil {
		usage.CacheReadInputTokens = *delta.CacheReadInputTokens
	}
}

func malformedChunk(err error) error {
	streamErr := &llmerr.StreamError{Message: "malformed chunk", Cause: err}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		streamErr.Field = typeErr.Field
	}
	return streamErr
}
