package chat

import (
	"context"
	"errors"
	"net/http"

	"github.com/leofalp/chatwire/core/credentials"
	"github.com/leofalp/chatwire/core/llmerr"
	"github.com/leofalp/chatwire/internal/utils"
)

// AnthropicVersion is the API version sent with every Anthropic request.
const AnthropicVersion = "2023-06-01"

func requestHeaders(creds credentials.Credentials) []utils.HeaderOption {
	switch creds.Provider() {
	case credentials.Anthropic:
		return []utils.HeaderOption{
			{Key: "x-api-key", Value: creds.APIKey()},
			{Key: "anthropic-version", Value: AnthropicVersion},
		}
	default:
		return []utils.HeaderOption{
			{Key: "Authorization", Value: "Bearer " + creds.APIKey()},
		}
	}
}

func send(ctx context.Context, client *http.Client, creds credentials.Credentials, req EncodedRequest) ([]byte, error) {
	_, body, err := utils.DoPost(ctx, client, creds.Endpoint(req.Path), req.Body, requestHeaders(creds)...)
	if err != nil {
		return nil, classifyTransportError(creds.Provider(), err)
	}
	return body, nil
}

func sendStream(ctx context.Context, client *http.Client, creds credentials.Credentials, req EncodedRequest) (*http.Response, error) {
	res, err := utils.DoPostStream(ctx, client, creds.Endpoint(req.Path), req.Body, requestHeaders(creds)...)
	if err != nil {
		return nil, classifyTransportError(creds.Provider(), err)
	}
	return res, nil
}

// classifyTransportError turns a status failure into an *llmerr.APIError, an
// oversized body into an *llmerr.DecodeError and anything else into an
// *llmerr.TransportError.
func classifyTransportError(provider credentials.Provider, err error) error {
	var statusErr *utils.StatusError
	if errors.As(err, &statusErr) {
		return ParseAPIError(provider, statusErr.StatusCode, statusErr.Body)
	}
	if errors.Is(err, utils.ErrBodyTooLarge) {
		return &llmerr.DecodeError{Cause: err}
	}
	return &llmerr.TransportError{Provider: provider.String(), Cause: err}
}
