package reliability

import (
	"errors"
	"time"

	"github.com/lovechat-ai/lovechat/internal/tavus"
)

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsRetryableVendorError reports whether a Tavus API failure is worth another
// attempt. Credential, permission and validation rejections never are.
func IsRetryableVendorError(err error) bool {
	var apiErr *tavus.APIError
	if !errors.As(err, &apiErr) {
		// Transport-level failures (timeouts, refused connections) are retryable.
		return err != nil
	}
	return IsRetryableHTTPStatus(apiErr.Status)
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
