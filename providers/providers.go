// Package providers contains the machinery shared by all Relay backends:
// the provider registry and dispatcher, the transport error type, and the
// streaming accumulator that reassembles fragmented tool calls.
package providers

import (
	"fmt"
	"net/http"

	"github.com/deepnoodle-ai/wonton/retry"
)

// ProviderError represents an error returned by an LLM backend API. It
// carries the backend identifier, the HTTP status if one was available, and
// the raw response body. Both streaming and non-streaming paths surface
// transport failures through this one type.
type ProviderError struct {
	backend    string
	statusCode int
	body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %s", e.backend, e.statusCode, e.body)
}

func (e *ProviderError) Backend() string {
	return e.backend
}

func (e *ProviderError) StatusCode() int {
	return e.statusCode
}

func (e *ProviderError) Body() string {
	return e.body
}

// NewError creates a new ProviderError. Non-retryable status codes are
// wrapped with retry.MarkPermanent.
func NewError(backend string, statusCode int, body string) error {
	err := &ProviderError{backend: backend, statusCode: statusCode, body: body}
	if !shouldRetry(statusCode) {
		return retry.MarkPermanent(err)
	}
	return err
}

// shouldRetry determines if the given status code should trigger a retry
func shouldRetry(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || // 429
		statusCode == http.StatusInternalServerError || // 500
		statusCode == http.StatusServiceUnavailable || // 503
		statusCode == http.StatusGatewayTimeout || // 504
		statusCode == 520 // Cloudflare
}
