// Package errs holds the failure taxonomy shared by the ledger core and the
// command layer. Every core operation returns either a value or one *Error.
package errs

import (
	"errors"
	"fmt"
)

// Kind groups codes by how the command layer should react to them.
type Kind string

const (
	KindUnauthorized       Kind = "UNAUTHORIZED"
	KindAccessFeeRequired  Kind = "ACCESS_FEE_REQUIRED"
	KindNotFound           Kind = "NOT_FOUND"
	KindInvalidState       Kind = "INVALID_STATE"
	KindInvalidInput       Kind = "INVALID_INPUT"
	KindStorageUnavailable Kind = "STORAGE_UNAVAILABLE"
)

// Code identifies a specific failure.
type Code string

const (
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeAccessFeeRequired   Code = "ACCESS_FEE_REQUIRED"
	CodeNotFound            Code = "NOT_FOUND"
	CodeNotPending          Code = "NOT_PENDING"
	CodeNotApproved         Code = "NOT_APPROVED"
	CodeAlreadyPaid         Code = "ALREADY_PAID"
	CodeLoanInFlight        Code = "LOAN_IN_FLIGHT"
	CodeDuplicateSubmission Code = "DUPLICATE_SUBMISSION"
	CodeUnknownTier         Code = "UNKNOWN_TIER"
	CodeAmountExceedsLimit  Code = "AMOUNT_EXCEEDS_LIMIT"
	CodeInvalidAmount       Code = "INVALID_AMOUNT"
	CodeSelfGrant           Code = "SELF_GRANT"
	CodeTierLocked          Code = "TIER_LOCKED"
	CodeInvalidReference    Code = "INVALID_REFERENCE"
	CodeStorageUnavailable  Code = "STORAGE_UNAVAILABLE"
)

var codeKinds = map[Code]Kind{
	CodeUnauthorized:        KindUnauthorized,
	CodeAccessFeeRequired:   KindAccessFeeRequired,
	CodeNotFound:            KindNotFound,
	CodeNotPending:          KindInvalidState,
	CodeNotApproved:         KindInvalidState,
	CodeAlreadyPaid:         KindInvalidState,
	CodeLoanInFlight:        KindInvalidState,
	CodeDuplicateSubmission: KindInvalidState,
	CodeUnknownTier:         KindInvalidInput,
	CodeAmountExceedsLimit:  KindInvalidInput,
	CodeInvalidAmount:       KindInvalidInput,
	CodeSelfGrant:           KindInvalidInput,
	CodeTierLocked:          KindInvalidInput,
	CodeInvalidReference:    KindInvalidInput,
	CodeStorageUnavailable:  KindStorageUnavailable,
}

// Error is a typed failure of a core operation.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Code so that sentinels work with errors.Is regardless of
// the message or cause attached to a particular failure.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Withf returns a copy of e carrying a more specific message.
func (e *Error) Withf(format string, args ...interface{}) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

func New(code Code, message string) *Error {
	return &Error{Kind: codeKinds[code], Code: code, Message: message}
}

var (
	ErrUnauthorized        = New(CodeUnauthorized, "admin rights required")
	ErrAccessFeeRequired   = New(CodeAccessFeeRequired, "access fee has not been paid")
	ErrNotFound            = New(CodeNotFound, "not found")
	ErrNotPending          = New(CodeNotPending, "not pending")
	ErrNotApproved         = New(CodeNotApproved, "loan is not approved")
	ErrAlreadyPaid         = New(CodeAlreadyPaid, "access fee already paid")
	ErrLoanInFlight        = New(CodeLoanInFlight, "a loan is already pending or active")
	ErrDuplicateSubmission = New(CodeDuplicateSubmission, "this transaction reference is already under review")
	ErrUnknownTier         = New(CodeUnknownTier, "unknown loan tier")
	ErrAmountExceedsLimit  = New(CodeAmountExceedsLimit, "amount exceeds the tier limit")
	ErrInvalidAmount       = New(CodeInvalidAmount, "amount must be positive")
	ErrSelfGrant           = New(CodeSelfGrant, "cannot grant reputation to yourself")
	ErrTierLocked          = New(CodeTierLocked, "reputation level too low for this tier")
	ErrInvalidReference    = New(CodeInvalidReference, "transaction reference is empty or too long")
	ErrStorageUnavailable  = New(CodeStorageUnavailable, "storage unavailable")
)

// Storage wraps an infrastructure failure. Typed errors pass through untouched.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	cp := *ErrStorageUnavailable
	cp.Cause = err
	return &cp
}

// KindOf reports the kind of err. Untyped errors count as storage failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorageUnavailable
}

func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeStorageUnavailable
}

// IsRetryable is true only for transient storage failures.
func IsRetryable(err error) bool {
	return err != nil && KindOf(err) == KindStorageUnavailable
}
