// Package slogobs implements [observability.Provider] on top of log/slog.
//
// Spans are logged at debug level when they start and end; log records keep
// their own level, with [LevelTrace] sitting below slog.LevelDebug. Format and
// level default to the CHATWIRE_LOG_FORMAT ("text" or "json") and
// CHATWIRE_LOG_LEVEL ("trace", "debug", "info", "warn", "error") variables.
package slogobs
