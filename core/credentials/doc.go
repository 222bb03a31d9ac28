// Package credentials holds the provider-tagged API key and base URL every
// chatwire request is sent with.
//
// A [Credentials] value is immutable and safe to copy; builders take their
// own copy. Construct one explicitly with [New] or [Infer], or resolve it
// from the process environment with [FromEnv] (optionally seeded from dotenv
// files through [Load]):
//
//	OPENAI_KEY / OPENAI_BASE_URL
//	ANTHROPIC_KEY / ANTHROPIC_BASE_URL
//
// The base URL variables are optional and fall back to the public endpoints.
package credentials
