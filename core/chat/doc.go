// Package chat builds, sends and decodes chat-completion requests for the
// OpenAI and Anthropic APIs.
//
// A request starts from a typed builder:
//
//	resp, err := chat.NewChatCompletion("gpt-4o", chat.UserMessage("ping")).
//		MaxTokens(16).
//		Create(ctx)
//
// The builder's type parameter fixes the provider and the response shape, so
// a Builder[ChatCompletion] always yields a *ChatCompletion. Streaming
// requests return a Stream whose chunks are folded into the same value a
// non-streaming call would have returned.
package chat
