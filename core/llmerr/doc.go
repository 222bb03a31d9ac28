// Package llmerr defines the five failure kinds a chatwire call can end in.
//
// Every error returned by the public API is (or wraps) exactly one of
// [ConfigurationError], [TransportError], [APIError], [DecodeError] or
// [StreamError]. Use [KindOf] to branch on the kind, or errors.As to reach
// the details:
//
//	var apiErr *llmerr.APIError
//	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
//	    // back off; chatwire never retries on its own
//	}
package llmerr
