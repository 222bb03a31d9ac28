// Package observability defines the tracing and structured logging
// interfaces used across chatwire, plus the attribute keys recorded for
// every provider call.
//
// [Provider] composes [Tracer] and [Logger] into one injectable dependency.
// Callers attach an observer and an active [Span] to a [context.Context] with
// [ContextWithObserver] and [ContextWithSpan]; library code retrieves them with
// [ObserverFromContext] and [SpanFromContext] and skips all recording when
// they are absent.
package observability
