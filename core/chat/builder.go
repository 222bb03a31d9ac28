package chat

import (
	"context"
	"maps"
	"net/http"
	"slices"

	"github.com/leofalp/chatwire/core/credentials"
	"github.com/leofalp/chatwire/core/llmerr"
	"github.com/leofalp/chatwire/observability"
)

// Completion is the set of response types a Builder can produce. The type
// also selects the provider: ChatCompletion targets OpenAI,
// AnthropicChatCompletion targets Anthropic.
type Completion interface {
	ChatCompletion | AnthropicChatCompletion
}

// params is the request state shared by both providers. Pointer fields are
// nil when unset so an explicit zero is still sent.
type params struct {
	model            string
	system           string
	messages         []Message
	temperature      *float64
	topP             *float64
	topK             *int
	n                *int
	maxTokens        *int
	stop             []string
	seed             *int64
	presencePenalty  *float64
	frequencyPenalty *float64
	logitBias        map[string]float64
	user             *string
	functions        []FunctionDefinition
	functionCall     FunctionCallMode
	responseFormat   *ResponseFormat
	metadataUserID   *string
	stream           bool
}

// Builder accumulates a chat request. Every setter returns an updated copy
// and leaves the receiver untouched, so a builder can be shared and
// specialized freely.
type Builder[T Completion] struct {
	p          params
	creds      *credentials.Credentials
	httpClient *http.Client
	observer   observability.Provider
}

// NewChatCompletion starts an OpenAI request. System prompts are passed as
// RoleSystem messages and keep their position.
func NewChatCompletion(model string, messages ...Message) Builder[ChatCompletion] {
	return Builder[ChatCompletion]{p: params{model: model, messages: slices.Clone(messages)}}
}

// NewAnthropicChatCompletion starts an Anthropic request. An empty system
// means no system prompt. MaxTokens must be set before the request is sent.
func NewAnthropicChatCompletion(model, system string, messages ...Message) Builder[AnthropicChatCompletion] {
	return Builder[AnthropicChatCompletion]{p: params{model: model, system: system, messages: slices.Clone(messages)}}
}

func providerOf[T Completion]() credentials.Provider {
	var zero T
	if _, ok := any(zero).(AnthropicChatCompletion); ok {
		return credentials.Anthropic
	}
	return credentials.OpenAI
}

// Provider returns the provider the builder targets.
func (b Builder[T]) Provider() credentials.Provider { return providerOf[T]() }

// Model sets the model name. It must not be empty when the request is sent.
func (b Builder[T]) Model(model string) Builder[T] {
	b.p.model = model
	return b
}

// System sets the system prompt slot. For OpenAI it is sent as a leading
// system message.
func (b Builder[T]) System(system string) Builder[T] {
	b.p.system = system
	return b
}

// Messages appends messages to the conversation.
func (b Builder[T]) Messages(messages ...Message) Builder[T] {
	b.p.messages = append(slices.Clone(b.p.messages), messages...)
	return b
}

// Temperature sets the sampling temperature. An explicit 0 is sent as 0.
func (b Builder[T]) Temperature(temperature float64) Builder[T] {
	b.p.temperature = &temperature
	return b
}

// TopP sets nucleus sampling.
func (b Builder[T]) TopP(topP float64) Builder[T] {
	b.p.topP = &topP
	return b
}

// TopK is only accepted by Anthropic.
func (b Builder[T]) TopK(topK int) Builder[T] {
	b.p.topK = &topK
	return b
}

// N is only accepted by OpenAI.
func (b Builder[T]) N(n int) Builder[T] {
	b.p.n = &n
	return b
}

// MaxTokens caps the generated tokens. Required for Anthropic.
func (b Builder[T]) MaxTokens(maxTokens int) Builder[T] {
	b.p.maxTokens = &maxTokens
	return b
}

// Stop sets the stop sequences (stop_sequences for Anthropic).
func (b Builder[T]) Stop(sequences ...string) Builder[T] {
	b.p.stop = slices.Clone(sequences)
	return b
}

// Seed is only accepted by OpenAI.
func (b Builder[T]) Seed(seed int64) Builder[T] {
	b.p.seed = &seed
	return b
}

// PresencePenalty is only accepted by OpenAI.
func (b Builder[T]) PresencePenalty(penalty float64) Builder[T] {
	b.p.presencePenalty = &penalty
	return b
}

// FrequencyPenalty is only accepted by OpenAI.
func (b Builder[T]) FrequencyPenalty(penalty float64) Builder[T] {
	b.p.frequencyPenalty = &penalty
	return b
}

// LogitBias is only accepted by OpenAI. Keys are token ids.
func (b Builder[T]) LogitBias(bias map[string]float64) Builder[T] {
	b.p.logitBias = maps.Clone(bias)
	return b
}

// User is only accepted by OpenAI; see Metadata for Anthropic.
func (b Builder[T]) User(user string) Builder[T] {
	b.p.user = &user
	return b
}

// Functions replaces the callable function definitions.
func (b Builder[T]) Functions(functions ...FunctionDefinition) Builder[T] {
	b.p.functions = slices.Clone(functions)
	return b
}

// FunctionCall selects whether and which function the model must call.
func (b Builder[T]) FunctionCall(mode FunctionCallMode) Builder[T] {
	b.p.functionCall = mode
	return b
}

// ResponseFormat is only accepted by OpenAI.
func (b Builder[T]) ResponseFormat(format ResponseFormat) Builder[T] {
	b.p.responseFormat = &format
	return b
}

// Metadata sets the end-user id reported to Anthropic.
func (b Builder[T]) Metadata(userID string) Builder[T] {
	b.p.metadataUserID = &userID
	return b
}

// Credentials overrides the credentials read from the environment. They must
// belong to the builder's provider.
func (b Builder[T]) Credentials(creds credentials.Credentials) Builder[T] {
	b.creds = &creds
	return b
}

// HTTPClient sets the client used to send the request. Defaults to
// http.DefaultClient.
func (b Builder[T]) HTTPClient(client *http.Client) Builder[T] {
	b.httpClient = client
	return b
}

// Observer sets the logger and tracer for the call. Without one the
// observer carried by the context is used, if any.
func (b Builder[T]) Observer(observer observability.Provider) Builder[T] {
	b.observer = observer
	return b
}

// Create sends the request and decodes the complete response. Exactly one
// HTTP request is made, and none when validation or credentials fail.
func (b Builder[T]) Create(ctx context.Context) (*T, error) {
	b.p.stream = false
	req, err := b.Encode()
	if err != nil {
		return nil, err
	}
	creds, err := b.resolveCredentials(req.Provider)
	if err != nil {
		return nil, err
	}

	ctx, c := startCall(ctx, b.resolveObserver(ctx), req, b.p)

	body, err := send(ctx, b.httpClient, creds, req)
	if err != nil {
		return nil, c.fail(ctx, err)
	}

	out, err := decodeAs[T](body)
	if err != nil {
		return nil, c.fail(ctx, err)
	}

	c.succeed(ctx, resultAttributes(out)...)
	return out, nil
}

// Stream sends the request with streaming enabled. The returned stream owns
// the response body and must be drained or closed.
func (b Builder[T]) Stream(ctx context.Context) (*Stream[T], error) {
	b.p.stream = true
	req, err := b.Encode()
	if err != nil {
		return nil, err
	}
	creds, err := b.resolveCredentials(req.Provider)
	if err != nil {
		return nil, err
	}

	ctx, c := startCall(ctx, b.resolveObserver(ctx), req, b.p)

	res, err := sendStream(ctx, b.httpClient, creds, req)
	if err != nil {
		return nil, c.fail(ctx, err)
	}

	return newStream(ctx, req.Provider, res.Body, newFolder[T](), c), nil
}

func (b Builder[T]) resolveCredentials(provider credentials.Provider) (credentials.Credentials, error) {
	if b.creds == nil {
		return credentials.FromEnv(provider)
	}
	if b.creds.IsZero() {
		return credentials.Credentials{}, llmerr.Configuration("credentials", "explicit credentials are empty")
	}
	if b.creds.Provider() != provider {
		return credentials.Credentials{}, llmerr.Configuration("credentials", "credentials are for %s but the request targets %s", b.creds.Provider(), provider)
	}
	return *b.creds, nil
}

func (b Builder[T]) resolveObserver(ctx context.Context) observability.Provider {
	if b.observer != nil {
		return b.observer
	}
	return observability.ObserverFromContext(ctx)
}
