package reliability

import (
	"errors"
	"testing"
	"time"

	"github.com/lovechat-ai/lovechat/internal/tavus"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		if !IsRetryableHTTPStatus(code) {
			t.Fatalf("IsRetryableHTTPStatus(%d) = false, want true", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404} {
		if IsRetryableHTTPStatus(code) {
			t.Fatalf("IsRetryableHTTPStatus(%d) = true, want false", code)
		}
	}
}

func TestIsRetryableVendorError(t *testing.T) {
	if IsRetryableVendorError(&tavus.APIError{Kind: tavus.ErrKindInvalidCredential, Status: 401}) {
		t.Fatalf("credential rejection must not be retryable")
	}
	if !IsRetryableVendorError(&tavus.APIError{Kind: tavus.ErrKindGeneric, Status: 503}) {
		t.Fatalf("503 should be retryable")
	}
	if !IsRetryableVendorError(errors.New("dial tcp: connection refused")) {
		t.Fatalf("transport failure should be retryable")
	}
	if IsRetryableVendorError(nil) {
		t.Fatalf("nil error is not retryable")
	}
}

func TestExponentialBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	cap := time.Second
	if got := ExponentialBackoff(0, base, cap); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := ExponentialBackoff(2, base, cap); got != 400*time.Millisecond {
		t.Fatalf("attempt 2 = %v, want 400ms", got)
	}
	if got := ExponentialBackoff(10, base, cap); got != cap {
		t.Fatalf("attempt 10 = %v, want cap %v", got, cap)
	}
}
