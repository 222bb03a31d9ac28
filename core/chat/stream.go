package chat

import (
	"context"
	"errors"
	"io"
	"iter"

	"github.com/leofalp/chatwire/core/credentials"
	"github.com/leofalp/chatwire/core/llmerr"
	"github.com/leofalp/chatwire/internal/utils"
)

// folder is the reconciler behind a Stream[T].
type folder[T Completion] interface {
	applyPayload(payload string) ([]Delta, error)
	Finish() error
	Fail(cause error) error
	State() StreamState
	Chunks() int
	Result() Folded[T]
}

func newFolder[T Completion]() folder[T] {
	var zero T
	if _, ok := any(zero).(AnthropicChatCompletion); ok {
		return any(NewAnthropicReconciler()).(folder[T])
	}
	return any(NewOpenAIReconciler()).(folder[T])
}

// Stream is an in-flight streaming response. It is consumed once, either
// through Iter or Collect, and is not safe for concurrent use.
type Stream[T Completion] struct {
	ctx      context.Context
	provider credentials.Provider
	body     io.ReadCloser
	events   *utils.SSEScanner
	fold     folder[T]
	call     *call
	closed   bool
}

func newStream[T Completion](ctx context.Context, provider credentials.Provider, body io.ReadCloser, fold folder[T], c *call) *Stream[T] {
	return &Stream[T]{
		ctx:      ctx,
		provider: provider,
		body:     body,
		events:   utils.NewSSEScanner(body),
		fold:     fold,
		call:     c,
	}
}

// Iter yields deltas as chunks are folded. The sequence ends after the
// stream completes or after a single error. Breaking out early closes the
// body and leaves the fold partial; so does cancelling the context, which
// is reported as a transport error.
func (s *Stream[T]) Iter() iter.Seq2[Delta, error] {
	return func(yield func(Delta, error) bool) {
		defer utils.CloseWithLog(s)

		for !s.closed {
			state := s.fold.State()
			if state == StreamComplete || state == StreamFailed {
				return
			}

			payload, err := s.events.Next()
			if errors.Is(err, io.EOF) {
				if err := s.fold.Finish(); err != nil {
					yield(Delta{}, err)
				}
				return
			}
			if err != nil {
				if ctxErr := s.ctx.Err(); ctxErr != nil {
					yield(Delta{}, &llmerr.TransportError{Provider: s.provider.String(), Cause: ctxErr})
					return
				}
				yield(Delta{}, s.fold.Fail(err))
				return
			}

			deltas, err := s.fold.applyPayload(payload)
			if err != nil {
				yield(Delta{}, err)
				return
			}
			for _, delta := range deltas {
				if !yield(delta, nil) {
					return
				}
			}
		}
	}
}

// Collect drains the stream. On failure it returns the partial value
// together with the error.
func (s *Stream[T]) Collect() (*T, error) {
	var firstErr error
	for _, err := range s.Iter() {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	result := s.fold.Result()
	if result.State == StreamComplete {
		return &result.Value, nil
	}
	if firstErr == nil {
		firstErr = &llmerr.StreamError{Message: "stream closed before completion"}
	}
	return &result.Value, firstErr
}

// Result returns the current fold.
func (s *Stream[T]) Result() Folded[T] {
	return s.fold.Result()
}

// State returns the reconciler state.
func (s *Stream[T]) State() StreamState {
	return s.fold.State()
}

// Close releases the response body. It is safe to call more than once.
func (s *Stream[T]) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	result := s.fold.Result()
	if s.call != nil {
		value := result.Value
		s.call.streamed(s.ctx, result.State, s.fold.Chunks(), result.Err, resultAttributes(&value)...)
	}
	return s.body.Close()
}
