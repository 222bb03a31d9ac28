package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

type nopSpan struct{ name string }

func (nopSpan) End()                          {}
func (nopSpan) SetAttributes(...Attribute)    {}
func (nopSpan) SetStatus(StatusCode, string)  {}
func (nopSpan) RecordError(error)             {}
func (nopSpan) AddEvent(string, ...Attribute) {}

type nopObserver struct{}

func (nopObserver) StartSpan(ctx context.Context, name string, _ ...Attribute) (context.Context, Span) {
	span := nopSpan{name: name}
	return ContextWithSpan(ctx, span), span
}
func (nopObserver) Trace(context.Context, string, ...Attribute) {}
func (nopObserver) Debug(context.Context, string, ...Attribute) {}
func (nopObserver) Info(context.Context, string, ...Attribute)  {}
func (nopObserver) Warn(context.Context, string, ...Attribute)  {}
func (nopObserver) Error(context.Context, string, ...Attribute) {}

// TestContext_SpanRoundTrip verifies spans stored in a context come back out.
func TestContext_SpanRoundTrip(t *testing.T) {
	if SpanFromContext(context.Background()) != nil {
		t.Error("empty context must not carry a span")
	}
	ctx := ContextWithSpan(context.Background(), nopSpan{name: "a"})
	if got, ok := SpanFromContext(ctx).(nopSpan); !ok || got.name != "a" {
		t.Errorf("unexpected span %v", SpanFromContext(ctx))
	}
}

// TestContext_ObserverRoundTrip verifies observers stored in a context come back out.
func TestContext_ObserverRoundTrip(t *testing.T) {
	if ObserverFromContext(context.Background()) != nil {
		t.Error("empty context must not carry an observer")
	}
	ctx := ContextWithObserver(context.Background(), nopObserver{})
	if _, ok := ObserverFromContext(ctx).(nopObserver); !ok {
		t.Errorf("unexpected observer %v", ObserverFromContext(ctx))
	}

	ctx, span := nopObserver{}.StartSpan(ctx, "child")
	if SpanFromContext(ctx) != span {
		t.Error("StartSpan must attach the span to the returned context")
	}
}

// TestAttributes_Helpers verifies helper constructors keep key and value.
func TestAttributes_Helpers(t *testing.T) {
	cases := []struct {
		attr  Attribute
		key   string
		value any
	}{
		{String(AttrLLMModel, "gpt-4o"), "llm.model", "gpt-4o"},
		{Int(AttrHTTPStatusCode, 200), "http.status_code", 200},
		{Int64("n", 5), "n", int64(5)},
		{Float64(AttrLLMTemperature, 0.5), "llm.temperature", 0.5},
		{Bool(AttrLLMStreaming, true), "llm.streaming", true},
		{Duration(AttrHTTPDuration, time.Second), "http.request.duration", time.Second},
		{Error(errors.New("boom")), "error", "boom"},
		{Error(nil), "error", ""},
	}
	for _, c := range cases {
		if c.attr.Key != c.key || c.attr.Value != c.value {
			t.Errorf("expected %s=%v, got %s=%v", c.key, c.value, c.attr.Key, c.attr.Value)
		}
	}
}
