// Package common provides shared utilities used across all features
package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hxuan190/swap-engine/internal/domain"
)

// HttpError represents an HTTP error with status code and message
type HttpError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter int
}

func (e *HttpError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s %s", e.StatusCode, e.Code, e.Message)
}

func messageOrDefault(msg string, defaultMsg string) string {
	if msg != "" {
		return msg
	}
	return defaultMsg
}

func HTTPErrorBadRequest(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusBadRequest,
		Code:       "BAD_REQUEST",
		Message:    messageOrDefault(msg, "Bad request"),
	}
}

func HTTPErrorNotFound(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    messageOrDefault(msg, "Not found"),
	}
}

func HTTPErrorInternalError(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    messageOrDefault(msg, "Internal server error"),
	}
}

func HTTPErrorGone(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusGone,
		Code:       "GONE",
		Message:    messageOrDefault(msg, "Gone"),
	}
}

func HTTPErrorBadGateway(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusBadGateway,
		Code:       "BAD_GATEWAY",
		Message:    messageOrDefault(msg, "Upstream service failed"),
	}
}

func HTTPErrorTooManyRequests(msg string, retryAfter int) *HttpError {
	return &HttpError{
		StatusCode: http.StatusTooManyRequests,
		Code:       "RATE_LIMITED",
		Message:    messageOrDefault(msg, "Too many requests"),
		RetryAfter: retryAfter,
	}
}

func HTTPErrorResourceConflict(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusConflict,
		Code:       "RESOURCE_CONFLICT",
		Message:    messageOrDefault(msg, "Resource conflict"),
	}
}

// HTTPErrorFromDomain maps the pipeline error taxonomy onto HTTP statuses.
func HTTPErrorFromDomain(err error) *HttpError {
	var httpErr *HttpError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	msg := domain.UserMessage(err)
	switch domain.KindOf(err) {
	case domain.KindUnknownToken, domain.KindInvalidAmount, domain.KindInvalidSlippage, domain.KindInvalidMode,
		domain.KindInvalidAddress, domain.KindInvalidRecipient:
		return HTTPErrorBadRequest(msg)
	case domain.KindNoRoute, domain.KindNotFound:
		return HTTPErrorNotFound(msg)
	case domain.KindQuoteExpired, domain.KindTransactionExpired:
		return HTTPErrorGone(msg)
	case domain.KindNetworkError:
		return HTTPErrorBadGateway(msg)
	case domain.KindRateLimited:
		var se *domain.SwapError
		retry := 1
		if errors.As(err, &se) && se.RetryAfter.Seconds() >= 1 {
			retry = int(se.RetryAfter.Seconds())
		}
		return HTTPErrorTooManyRequests(msg, retry)
	case domain.KindTransactionRejectedOnChain, domain.KindUserRejected:
		return HTTPErrorResourceConflict(msg)
	default:
		return HTTPErrorInternalError(msg)
	}
}
