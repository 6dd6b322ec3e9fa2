package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind is the taxonomy tag surfaced with every pipeline failure.
type ErrorKind string

const (
	KindUnknownToken               ErrorKind = "UnknownToken"
	KindInvalidAmount              ErrorKind = "InvalidAmount"
	KindInvalidSlippage            ErrorKind = "InvalidSlippage"
	KindInvalidMode                ErrorKind = "InvalidMode"
	KindInvalidAddress             ErrorKind = "InvalidAddress"
	KindInvalidRecipient           ErrorKind = "InvalidRecipient"
	KindNoRoute                    ErrorKind = "NoRoute"
	KindNetworkError               ErrorKind = "NetworkError"
	KindQuoteExpired               ErrorKind = "QuoteExpired"
	KindUserRejected               ErrorKind = "UserRejected"
	KindTransactionExpired         ErrorKind = "TransactionExpired"
	KindTransactionRejectedOnChain ErrorKind = "TransactionRejectedOnChain"
	KindPersistenceError           ErrorKind = "PersistenceError"
	KindRateLimited                ErrorKind = "RateLimited"
	KindNotFound                   ErrorKind = "NotFound"
	KindInternal                   ErrorKind = "Internal"
)

// Recoverable reports whether the user can retry (possibly after re-quoting).
func (k ErrorKind) Recoverable() bool {
	switch k {
	case KindNoRoute, KindNetworkError, KindQuoteExpired, KindUserRejected,
		KindTransactionExpired, KindRateLimited, KindPersistenceError:
		return true
	}
	return false
}

// RequiresRequote reports whether a fresh quote is needed before retrying.
func (k ErrorKind) RequiresRequote() bool {
	return k == KindQuoteExpired || k == KindTransactionExpired || k == KindNoRoute
}

type SwapError struct {
	Kind       ErrorKind
	Message    string
	RetryAfter time.Duration
	Err        error
}

func NewError(kind ErrorKind, msg string, err error) *SwapError {
	return &SwapError{Kind: kind, Message: msg, Err: err}
}

func (e *SwapError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = defaultMessages[e.Kind]
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *SwapError) Unwrap() error {
	return e.Err
}

// Is matches any SwapError of the same kind, so the Err* sentinels below work
// with errors.Is.
func (e *SwapError) Is(target error) bool {
	t, ok := target.(*SwapError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnknownToken               = &SwapError{Kind: KindUnknownToken}
	ErrInvalidAmount              = &SwapError{Kind: KindInvalidAmount}
	ErrInvalidSlippage            = &SwapError{Kind: KindInvalidSlippage}
	ErrInvalidMode                = &SwapError{Kind: KindInvalidMode}
	ErrInvalidAddress             = &SwapError{Kind: KindInvalidAddress}
	ErrInvalidRecipient           = &SwapError{Kind: KindInvalidRecipient}
	ErrNoRoute                    = &SwapError{Kind: KindNoRoute}
	ErrNetwork                    = &SwapError{Kind: KindNetworkError}
	ErrQuoteExpired               = &SwapError{Kind: KindQuoteExpired}
	ErrUserRejected               = &SwapError{Kind: KindUserRejected}
	ErrTransactionExpired         = &SwapError{Kind: KindTransactionExpired}
	ErrTransactionRejectedOnChain = &SwapError{Kind: KindTransactionRejectedOnChain}
	ErrPersistence                = &SwapError{Kind: KindPersistenceError}
	ErrRateLimited                = &SwapError{Kind: KindRateLimited}
	ErrNotFound                   = &SwapError{Kind: KindNotFound}
)

var defaultMessages = map[ErrorKind]string{
	KindUnknownToken:               "unknown token",
	KindInvalidAmount:              "invalid amount",
	KindInvalidSlippage:            "slippage must be between 0 and 10000 bps",
	KindInvalidMode:                "swap mode must be ExactIn or ExactOut",
	KindInvalidAddress:             "invalid address",
	KindInvalidRecipient:           "recipient cannot receive this token",
	KindNoRoute:                    "no routes found",
	KindNetworkError:               "network error, please retry",
	KindQuoteExpired:               "quote expired, please refresh the quote",
	KindUserRejected:               "transaction was rejected in the wallet",
	KindTransactionExpired:         "transaction expired before confirmation",
	KindTransactionRejectedOnChain: "transaction failed on chain",
	KindPersistenceError:           "failed to save transaction",
	KindRateLimited:                "too many requests",
	KindNotFound:                   "not found",
	KindInternal:                   "internal error",
}

// KindOf returns the taxonomy tag of err, or KindInternal.
func KindOf(err error) ErrorKind {
	var se *SwapError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// UserMessage is the single human-readable line shown in notifications.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *SwapError
	if !errors.As(err, &se) {
		return defaultMessages[KindInternal]
	}
	msg := se.Message
	if msg == "" {
		msg = defaultMessages[se.Kind]
	}
	if se.Kind == KindRateLimited && se.RetryAfter > 0 {
		msg = fmt.Sprintf("%s, retry in %s", msg, se.RetryAfter.Round(time.Second))
	}
	return msg
}
