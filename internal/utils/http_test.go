package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestDoPost_Success verifies the body is returned and custom headers override
// the defaults.
func TestDoPost_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("X-Test") != "yes" {
			t.Errorf("missing custom header")
		}
		if r.Header.Get("Content-Type") != "application/json; charset=utf-8" {
			t.Errorf("custom header should override content type, got %q", r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"q":1}` {
			t.Errorf("unexpected body %s", body)
		}
		fmt.Fprint(w, `{"value":42}`)
	}))
	defer server.Close()

	res, body, err := DoPost(context.Background(), server.Client(), server.URL, []byte(`{"q":1}`),
		HeaderOption{Key: "X-Test", Value: "yes"},
		HeaderOption{Key: "Content-Type", Value: "application/json; charset=utf-8"},
	)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.StatusCode != http.StatusOK || string(body) != `{"value":42}` {
		t.Errorf("unexpected response %d %s", res.StatusCode, body)
	}
}

// TestDoPost_ErrorStatus verifies the body comes back with a *StatusError.
func TestDoPost_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "bad request")
	}))
	defer server.Close()

	_, body, err := DoPost(context.Background(), nil, server.URL, []byte(`{}`))

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %T: %v", err, err)
	}
	if statusErr.StatusCode != http.StatusBadRequest || string(statusErr.Body) != "bad request" || string(body) != "bad request" {
		t.Errorf("unexpected status error %+v", statusErr)
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error should mention the status: %v", err)
	}
}

// TestDoPost_Non200SuccessIsStatusError verifies only 200 counts as success.
func TestDoPost_Non200SuccessIsStatusError(t *testing.T) {
	for _, status := range []int{http.StatusCreated, http.StatusAccepted, http.StatusNoContent} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				if status != http.StatusNoContent {
					fmt.Fprint(w, `{"error":{"type":"queued","message":"try later"}}`)
				}
			}))
			defer server.Close()

			_, _, err := DoPost(context.Background(), nil, server.URL, []byte(`{}`))

			var statusErr *StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("expected *StatusError for %d, got %T: %v", status, err, err)
			}
			if statusErr.StatusCode != status {
				t.Errorf("expected status %d, got %d", status, statusErr.StatusCode)
			}
		})
	}
}

// TestDoPost_BodyTooLarge verifies an oversized body is reported instead of
// being truncated.
func TestDoPost_BodyTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("a"), int(maxResponseBodySize)+1))
	}))
	defer server.Close()

	_, body, err := DoPost(context.Background(), nil, server.URL, []byte(`{}`))
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
	if body != nil {
		t.Errorf("expected no body, got %d bytes", len(body))
	}
}

// TestDoPost_BodyAtLimit verifies a body of exactly the limit is accepted.
func TestDoPost_BodyAtLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("a"), int(maxResponseBodySize)))
	}))
	defer server.Close()

	_, body, err := DoPost(context.Background(), nil, server.URL, []byte(`{}`))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if int64(len(body)) != maxResponseBodySize {
		t.Errorf("expected %d bytes, got %d", maxResponseBodySize, len(body))
	}
}

// TestDoPost_NetworkError verifies unreachable servers return a wrapped error
// that is not a *StatusError.
func TestDoPost_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, _, err := DoPost(context.Background(), nil, url, []byte(`{}`))
	if err == nil {
		t.Fatal("expected error")
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		t.Error("network failure must not be a status error")
	}
	if !strings.Contains(err.Error(), "error sending request") {
		t.Errorf("unexpected error %v", err)
	}
}

// TestDoPost_InvalidURL verifies request construction failures are reported.
func TestDoPost_InvalidURL(t *testing.T) {
	_, _, err := DoPost(context.Background(), nil, "://bad", nil)
	if err == nil || !strings.Contains(err.Error(), "error creating request") {
		t.Errorf("expected creation error, got %v", err)
	}
}

type failingCloser struct{ closed bool }

func (c *failingCloser) Close() error {
	c.closed = true
	return errors.New("boom")
}

// TestCloseWithLog_ToleratesFailures verifies close errors are swallowed after logging.
func TestCloseWithLog_ToleratesFailures(t *testing.T) {
	closer := &failingCloser{}
	CloseWithLog(closer)
	if !closer.closed {
		t.Error("expected Close to be called")
	}
	CloseWithLog(nil)
}
