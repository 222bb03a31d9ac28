package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/leofalp/chatwire/observability"
)

// maxResponseBodySize caps how much of a response body is read (10 MB).
const maxResponseBodySize int64 = 10 * 1024 * 1024

// ErrBodyTooLarge reports a response body over maxResponseBodySize.
var ErrBodyTooLarge = errors.New("response body exceeds limit")

// HeaderOption is a single request header applied after the defaults.
type HeaderOption struct {
	Key   string
	Value string
}

// StatusError is returned when the server answers with any status but 200.
// Body holds the raw (size-capped) response body so callers can parse the
// provider's error payload.
type StatusError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, TruncateString(string(e.Body), DefaultMaxStringLength))
}

// DoPost sends body as a JSON POST to url and returns the raw response body.
//
// Errors:
//   - request construction or network failures are returned wrapped; the
//     caller treats them as transport failures
//   - a status other than 200 returns the body together with a *StatusError
//
// The response body is always closed before returning; close failures are
// logged and never override the primary result.
func DoPost(ctx context.Context, client *http.Client, url string, body []byte, headers ...HeaderOption) (*http.Response, []byte, error) {
	span := observability.SpanFromContext(ctx)

	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if span != nil {
		span.AddEvent("http.request.prepared",
			observability.String(observability.AttrHTTPMethod, http.MethodPost),
			observability.String(observability.AttrHTTPURL, url),
			observability.Int(observability.AttrHTTPRequestBodySize, len(body)),
		)
	}

	req, err := newJSONRequest(ctx, url, body, headers)
	if err != nil {
		return nil, nil, err
	}

	timer := NewTimer()
	res, err := httpClient.Do(req)
	timer.Stop()
	if err != nil {
		if span != nil {
			span.AddEvent("http.request.error",
				observability.Error(err),
				observability.Duration(observability.AttrHTTPDuration, timer.GetDuration()),
			)
		}
		return nil, nil, fmt.Errorf("error sending request: %w", err)
	}
	defer CloseWithLog(res.Body)

	respBody, err := readLimited(res.Body)
	if err != nil {
		return res, nil, err
	}

	if span != nil {
		span.AddEvent("http.response.received",
			observability.Int(observability.AttrHTTPStatusCode, res.StatusCode),
			observability.Int(observability.AttrHTTPResponseBodySize, len(respBody)),
			observability.Duration(observability.AttrHTTPDuration, timer.GetDuration()),
		)
	}

	if res.StatusCode != http.StatusOK {
		return res, respBody, &StatusError{StatusCode: res.StatusCode, Status: res.Status, Body: respBody}
	}
	return res, respBody, nil
}

// readLimited reads body up to maxResponseBodySize bytes. A longer body is
// an ErrBodyTooLarge rather than a silently truncated read.
func readLimited(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxResponseBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	if int64(len(data)) > maxResponseBodySize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, maxResponseBodySize)
	}
	return data, nil
}

// newJSONRequest builds a POST carrying a JSON body. Custom headers are
// applied last so they can override the defaults.
func newJSONRequest(ctx context.Context, url string, body []byte, headers []HeaderOption) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, header := range headers {
		req.Header.Set(header.Key, header.Value)
	}
	return req, nil
}

// CloseWithLog closes closer and logs a warning if that fails.
func CloseWithLog(closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		slog.Warn("failed to close response body", "error", err.Error())
	}
}
