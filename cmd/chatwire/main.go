// Command chatwire sends chat requests to OpenAI or Anthropic from the
// command line.
package main

import (
	"errors"
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/leofalp/chatwire/core/llmerr"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error (%s): %v\n", llmerr.KindOf(err), err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to a distinct process status per failure kind.
func exitCode(err error) int {
	switch llmerr.KindOf(err) {
	case llmerr.KindConfiguration:
		return 2
	case llmerr.KindTransport:
		return 3
	case llmerr.KindAPI:
		return 4
	case llmerr.KindDecode:
		return 5
	case llmerr.KindStream:
		return 6
	}
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		return 64
	}
	return 1
}

// usageError reports invalid command-line input.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }
