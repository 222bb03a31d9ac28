package chat

import (
	"context"
	"slices"

	"github.com/leofalp/chatwire/core/llmerr"
	"github.com/leofalp/chatwire/internal/utils"
	"github.com/leofalp/chatwire/observability"
)

// call tracks the observability state of one request. All methods are
// no-ops without an observer.
type call struct {
	observer observability.Provider
	span     observability.Span
	timer    *utils.Timer
	attrs    []observability.Attribute
}

func startCall(ctx context.Context, observer observability.Provider, req EncodedRequest, p params) (context.Context, *call) {
	c := &call{
		observer: observer,
		timer:    utils.NewTimer(),
		attrs: []observability.Attribute{
			observability.String(observability.AttrLLMProvider, req.Provider.String()),
			observability.String(observability.AttrLLMModel, p.model),
			observability.Bool(observability.AttrLLMStreaming, p.stream),
		},
	}
	if observer == nil {
		return ctx, c
	}

	spanAttrs := slices.Concat(c.attrs, []observability.Attribute{
		observability.String(observability.AttrLLMEndpoint, req.Path),
		observability.Int(observability.AttrRequestMessagesCount, len(p.messages)),
		observability.Int(observability.AttrRequestFunctionsCount, len(p.functions)),
	})
	if p.maxTokens != nil {
		spanAttrs = append(spanAttrs, observability.Int(observability.AttrLLMMaxTokens, *p.maxTokens))
	}
	if p.temperature != nil {
		spanAttrs = append(spanAttrs, observability.Float64(observability.AttrLLMTemperature, *p.temperature))
	}

	ctx, c.span = observer.StartSpan(ctx, observability.SpanChatCompletion, spanAttrs...)
	ctx = observability.ContextWithObserver(ctx, observer)

	c.span.AddEvent(observability.EventRequestEncoded,
		observability.Int(observability.AttrHTTPRequestBodySize, len(req.Body)),
	)
	observer.Debug(ctx, "sending chat request", c.attrs...)
	observer.Trace(ctx, "chat request body",
		observability.String("body", utils.TruncateString(string(req.Body), utils.DefaultMaxStringLength)),
	)

	return ctx, c
}

// fail records err and ends the call. It returns err unchanged.
func (c *call) fail(ctx context.Context, err error) error {
	if c.observer == nil {
		return err
	}
	c.timer.Stop()

	kind := llmerr.KindOf(err).String()
	c.span.RecordError(err)
	c.span.SetAttributes(observability.String(observability.AttrErrorKind, kind))
	c.span.SetStatus(observability.StatusError, err.Error())
	c.span.End()

	c.observer.Error(ctx, "chat request failed", slices.Concat(c.attrs, []observability.Attribute{
		observability.String(observability.AttrErrorKind, kind),
		observability.Error(err),
		observability.Duration(observability.AttrHTTPDuration, c.timer.GetDuration()),
	})...)
	return err
}

func (c *call) succeed(ctx context.Context, attrs ...observability.Attribute) {
	if c.observer == nil {
		return
	}
	c.timer.Stop()

	c.span.AddEvent(observability.EventResponseDecoded, attrs...)
	c.span.SetAttributes(attrs...)
	c.span.SetStatus(observability.StatusOK, "")
	c.span.End()

	c.observer.Info(ctx, "chat request completed", slices.Concat(c.attrs, attrs, []observability.Attribute{
		observability.Duration(observability.AttrHTTPDuration, c.timer.GetDuration()),
	})...)
}

// resultAttributes summarizes a decoded or reconciled response.
func resultAttributes(result any) []observability.Attribute {
	switch r := result.(type) {
	case *ChatCompletion:
		attrs := []observability.Attribute{
			observability.String(observability.AttrLLMResponseID, r.ID),
			observability.Int(observability.AttrLLMTokensPrompt, r.Usage.PromptTokens),
			observability.Int(observability.AttrLLMTokensCompletion, r.Usage.CompletionTokens),
			observability.Int(observability.AttrLLMTokensTotal, r.Usage.TotalTokens),
		}
		if len(r.Choices) > 0 {
			attrs = append(attrs, observability.String(observability.AttrLLMFinishReason, r.Choices[0].FinishReason))
		}
		return attrs
	case *AnthropicChatCompletion:
		return []observability.Attribute{
			observability.String(observability.AttrLLMResponseID, r.ID),
			observability.String(observability.AttrLLMFinishReason, r.StopReason),
			observability.Int(observability.AttrLLMTokensPrompt, r.Usage.InputTokens),
			observability.Int(observability.AttrLLMTokensCompletion, r.Usage.OutputTokens),
			observability.Int(observability.AttrLLMTokensTotal, r.Usage.InputTokens+r.Usage.OutputTokens),
		}
	default:
		return nil
	}
}

// streamed ends the call of a stream once its body is closed.
func (c *call) streamed(ctx context.Context, state StreamState, chunks int, err error, attrs ...observability.Attribute) {
	if c.observer == nil {
		return
	}

	c.span.AddEvent(observability.EventStreamFinished,
		observability.String(observability.AttrStreamState, state.String()),
		observability.Int(observability.AttrStreamChunks, chunks),
	)

	switch state {
	case StreamComplete:
		c.succeed(ctx, attrs...)
	case StreamFailed:
		_ = c.fail(ctx, err)
	default:
		c.timer.Stop()
		c.span.SetAttributes(observability.String(observability.AttrStreamState, state.String()))
		c.span.End()
		c.observer.Warn(ctx, "chat stream closed before completion", slices.Concat(c.attrs, []observability.Attribute{
			observability.String(observability.AttrStreamState, state.String()),
			observability.Int(observability.AttrStreamChunks, chunks),
		})...)
	}
}
