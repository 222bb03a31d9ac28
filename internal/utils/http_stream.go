package utils

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/leofalp/chatwire/observability"
)

// maxSSELineSize bounds a single SSE line (1 MB). bufio.Scanner defaults to
// 64 KiB which long tool-call arguments can exceed.
const maxSSELineSize = 1 * 1024 * 1024

// DoPostStream sends body as a JSON POST asking for an event stream and
// returns the response with its body still open. The caller owns the body
// and must close it.
//
// Any status other than 200 is answered with a *StatusError after the body has been
// read (size-capped) and closed.
func DoPostStream(ctx context.Context, client *http.Client, url string, body []byte, headers ...HeaderOption) (*http.Response, error) {
	span := observability.SpanFromContext(ctx)

	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if span != nil {
		span.AddEvent("http.stream_request.prepared",
			observability.String(observability.AttrHTTPMethod, http.MethodPost),
			observability.String(observability.AttrHTTPURL, url),
			observability.Int(observability.AttrHTTPRequestBodySize, len(body)),
		)
	}

	req, err := newJSONRequest(ctx, url, body, append([]HeaderOption{{Key: "Accept", Value: "text/event-stream"}}, headers...))
	if err != nil {
		return nil, err
	}

	timer := NewTimer()
	response, err := httpClient.Do(req)
	timer.Stop()
	if err != nil {
		if span != nil {
			span.AddEvent("http.stream_request.error",
				observability.Error(err),
				observability.Duration(observability.AttrHTTPDuration, timer.GetDuration()),
			)
		}
		return nil, fmt.Errorf("error sending stream request: %w", err)
	}

	if response.StatusCode != http.StatusOK {
		defer CloseWithLog(response.Body)
		errorBody, readErr := readLimited(response.Body)
		if readErr != nil {
			return response, fmt.Errorf("status %d (failed to read body: %w)", response.StatusCode, readErr)
		}
		return response, &StatusError{StatusCode: response.StatusCode, Status: response.Status, Body: errorBody}
	}

	if span != nil {
		span.AddEvent("http.stream_response.started",
			observability.Int(observability.AttrHTTPStatusCode, response.StatusCode),
			observability.Duration(observability.AttrHTTPDuration, timer.GetDuration()),
		)
	}

	return response, nil
}

// SSEScanner reads Server-Sent Events from a reader and hands back the data
// payload of each event. Comments and non-data fields are skipped.
type SSEScanner struct {
	scanner *bufio.Scanner
}

// NewSSEScanner wraps reader. Lines longer than 1 MB make Next fail with an
// error wrapping bufio.ErrTooLong.
func NewSSEScanner(reader io.Reader) *SSEScanner {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineSize)
	return &SSEScanner{scanner: scanner}
}

// Next returns the data payload of the next event. Consecutive data lines in
// one event are joined with "\n". It returns io.EOF at the end of the input
// and when the "[DONE]" sentinel is read.
func (s *SSEScanner) Next() (string, error) {
	var dataLines []string

	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			if len(dataLines) > 0 {
				return strings.Join(dataLines, "\n"), nil
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			// event:, id: and retry: carry nothing the decoders need
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			return "", io.EOF
		}
		dataLines = append(dataLines, data)
	}

	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("SSE scanner error: %w", err)
	}

	// a trailing event without its blank line is still delivered
	if len(dataLines) > 0 {
		return strings.Join(dataLines, "\n"), nil
	}
	return "", io.EOF
}
