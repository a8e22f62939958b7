package oracle

import (
	"context"
	"errors"
	"net"
	"strings"

	"google.golang.org/genai"
)

// FailureReason categorizes an oracle failure for logs and metrics.
type FailureReason string

const (
	ReasonTimeout    FailureReason = "timeout"
	ReasonQuota      FailureReason = "quota"
	ReasonInvalidKey FailureReason = "invalid_key"
	ReasonNetwork    FailureReason = "network"
	ReasonMalformed  FailureReason = "malformed"
	ReasonEmpty      FailureReason = "empty"
	ReasonDisabled   FailureReason = "disabled"
	ReasonUnknown    FailureReason = "unknown"
)

var (
	// ErrMalformed is returned when a response is not the expected JSON shape.
	ErrMalformed = errors.New("oracle returned malformed response")
	// ErrEmpty is returned when a response has no text.
	ErrEmpty = errors.New("oracle returned empty response")
	// ErrDisabled is returned when no API key is configured.
	ErrDisabled = errors.New("oracle not configured")
)

// Classify maps an oracle error to a FailureReason.
func Classify(err error) FailureReason {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDisabled):
		return ReasonDisabled
	case errors.Is(err, ErrMalformed):
		return ReasonMalformed
	case errors.Is(err, ErrEmpty):
		return ReasonEmpty
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	}

	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ReasonTimeout
		}
		return ReasonNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key not valid") ||
		strings.Contains(msg, "invalid api key") ||
		strings.Contains(msg, "api_key_invalid") ||
		strings.Contains(msg, "permission denied"):
		return ReasonInvalidKey
	case strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource exhausted") ||
		strings.Contains(msg, "rate limit"):
		return ReasonQuota
	case strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded"):
		return ReasonTimeout
	case strings.Contains(msg, "connection") ||
		strings.Contains(msg, "network") ||
		strings.Contains(msg, "dial") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "unreachable"):
		return ReasonNetwork
	default:
		return ReasonUnknown
	}
}

func classifyAPIError(err *genai.APIError) FailureReason {
	switch err.Code {
	case 400, 401, 403:
		return ReasonInvalidKey
	case 429:
		return ReasonQuota
	case 408, 504:
		return ReasonTimeout
	case 500, 502, 503:
		return ReasonNetwork
	default:
		return ReasonUnknown
	}
}
