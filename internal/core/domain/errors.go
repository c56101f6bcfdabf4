package domain

import (
	"errors"
	"strings"
)

// ErrorKind classifies a failure by how the user can recover from it.
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindProviderUnavailable ErrorKind = "provider_unavailable"
	KindUserRejected        ErrorKind = "user_rejected"
	KindNetwork             ErrorKind = "network"
	KindAPI                 ErrorKind = "api"
	KindChainMismatch       ErrorKind = "chain_mismatch"
	KindInvalidAddress      ErrorKind = "invalid_address"
	KindMissingCredential   ErrorKind = "missing_credential"
	KindInsufficientFunds   ErrorKind = "insufficient_funds"
	KindBusy                ErrorKind = "busy"
)

// WalletInstallURL is where users without a wallet provider are sent.
const WalletInstallURL = "https://metamask.io/download.html"

// Error is the typed failure returned by adapters and services.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

// Sentinels for errors.Is matching on kind only.
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrProviderUnavailable = &Error{Kind: KindProviderUnavailable}
	ErrUserRejected        = &Error{Kind: KindUserRejected}
	ErrNetwork             = &Error{Kind: KindNetwork}
	ErrAPI                 = &Error{Kind: KindAPI}
	ErrChainMismatch       = &Error{Kind: KindChainMismatch}
	ErrInvalidAddress      = &Error{Kind: KindInvalidAddress}
	ErrMissingCredential   = &Error{Kind: KindMissingCredential}
	ErrInsufficientFunds   = &Error{Kind: KindInsufficientFunds}
	ErrBusy                = &Error{Kind: KindBusy}
)

// ErrConfirmationTimeout reports a transaction still unmined when the
// confirmation window closed. Its outcome is unknown, not failed.
var ErrConfirmationTimeout = errors.New("transaction not confirmed within the confirmation window")

// NewError builds an Error of the given kind.
func NewError(kind ErrorKind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: cause}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Msg != "":
		b.WriteString(e.Msg)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(string(e.Kind))
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels (no Op, Msg or cause) by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op == "" && t.Msg == "" && t.Err == nil {
		return t.Kind == e.Kind
	}
	return t == e
}

// KindOf returns the kind of the first *Error in err's chain, or "" when
// there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the user-facing message of err: the Msg of the first
// *Error in its chain, else err.Error().
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// StatusFor converts a pipeline failure into the status shown to the user.
func StatusFor(err error) Status {
	if err == nil {
		return Status{}
	}
	msg := MessageOf(err)
	if KindOf(err) == KindProviderUnavailable {
		return ActionPrompt(msg, WalletInstallURL)
	}
	return Text(msg)
}
