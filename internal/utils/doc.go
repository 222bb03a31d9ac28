// Package utils provides the low-level helpers shared by the chatwire
// packages: JSON-over-HTTP POSTs for synchronous and streaming (SSE) calls,
// a Server-Sent Events scanner, JSON argument parsing with repair, and a few
// generic conveniences.
//
// Key entry points: [DoPost] for a single synchronous round-trip, [DoPostStream]
// together with [SSEScanner] for event streams, [ParseStringAs] for decoding
// model-produced JSON, and [Ptr] for optional fields.
package utils
