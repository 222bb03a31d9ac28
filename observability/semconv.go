package observability

// Attribute keys and span/event names shared by every component.

const (
	AttrLLMProvider     = "llm.provider"
	AttrLLMModel        = "llm.model"
	AttrLLMEndpoint     = "llm.endpoint"
	AttrLLMResponseID   = "llm.response.id"
	AttrLLMFinishReason = "llm.finish_reason"
	AttrLLMStreaming    = "llm.streaming"
	AttrLLMTemperature  = "llm.temperature"
	AttrLLMMaxTokens    = "llm.max_tokens" // #nosec G101 -- LLM tokens, not a credential

	AttrLLMTokensPrompt     = "llm.tokens.prompt"     // #nosec G101 -- LLM tokens, not a credential
	AttrLLMTokensCompletion = "llm.tokens.completion" // #nosec G101 -- LLM tokens, not a credential
	AttrLLMTokensTotal      = "llm.tokens.total"      // #nosec G101 -- LLM tokens, not a credential
)

const (
	AttrHTTPMethod           = "http.method"
	AttrHTTPURL              = "http.url"
	AttrHTTPStatusCode       = "http.status_code"
	AttrHTTPRequestBodySize  = "http.request.body_size"
	AttrHTTPResponseBodySize = "http.response.body_size"
	AttrHTTPDuration         = "http.request.duration"
)

const (
	AttrRequestMessagesCount  = "request.messages_count"
	AttrRequestFunctionsCount = "request.functions_count"
	AttrStreamState           = "stream.state"
	AttrStreamChunks          = "stream.chunks"
	AttrErrorKind             = "error.kind"
	AttrError                 = "error"
	AttrStatus                = "status"
	AttrStatusDescription     = "status.description"
)

const (
	SpanChatCompletion = "chat.completion"

	EventRequestEncoded  = "llm.request.encoded"
	EventResponseDecoded = "llm.response.decoded"
	EventStreamFinished  = "llm.stream.finished"
)
