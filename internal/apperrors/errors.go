// Package apperrors defines the recoverable failures the clinic services report.
// Anything that is not an *Error (store unavailable, driver errors) is an unexpected
// failure and is rendered as an internal error.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind groups codes into the categories the API layer maps to status codes.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthorization  Kind = "authorization"
	KindState          Kind = "state"
	KindNotFound       Kind = "not_found"
	KindAuthentication Kind = "authentication"
)

// Code identifies a single failure reason.
type Code string

const (
	CodePastTime           Code = "past_time"
	CodeConflict           Code = "conflict"
	CodeSlotBusy           Code = "slot_busy"
	CodeBadRole            Code = "bad_role"
	CodeFileTooLarge       Code = "file_too_large"
	CodeUnsupportedType    Code = "unsupported_type"
	CodePasswordMismatch   Code = "password_mismatch"
	CodeRoleMismatch       Code = "role_mismatch"
	CodeNotOwner           Code = "not_owner"
	CodeAlreadyCancelled   Code = "already_cancelled"
	CodeInvalidTransition  Code = "invalid_transition"
	CodeInvalidStatus      Code = "invalid_status"
	CodeNotFound           Code = "not_found"
	CodeInvalidInput       Code = "invalid_input"
	CodeAlreadyExists      Code = "already_exists"
	CodeInvalidCredentials Code = "invalid_credentials"
	CodeInvalidToken       Code = "invalid_token"
	CodeAccountDisabled    Code = "account_disabled"
	CodeUserInUse          Code = "user_in_use"
)

// Error is a structured, human-readable rejection.
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code, so callers can compare against
// the sentinels below regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinels for errors.Is.
var (
	ErrPastTime          = &Error{Kind: KindValidation, Code: CodePastTime, Message: "cannot schedule appointments in the past"}
	ErrConflict          = &Error{Kind: KindValidation, Code: CodeConflict, Message: "doctor already has an appointment at this time"}
	ErrSlotBusy          = &Error{Kind: KindValidation, Code: CodeSlotBusy, Message: "slot is currently being booked, please retry shortly"}
	ErrBadRole           = &Error{Kind: KindValidation, Code: CodeBadRole, Message: "user has the wrong role for this operation"}
	ErrFileTooLarge      = &Error{Kind: KindValidation, Code: CodeFileTooLarge, Message: "file size cannot exceed 10MB"}
	ErrUnsupportedType   = &Error{Kind: KindValidation, Code: CodeUnsupportedType, Message: "file type not allowed"}
	ErrPasswordMismatch  = &Error{Kind: KindValidation, Code: CodePasswordMismatch, Message: "passwords don't match"}
	ErrRoleMismatch      = &Error{Kind: KindAuthorization, Code: CodeRoleMismatch, Message: "your role does not permit this operation"}
	ErrNotOwner          = &Error{Kind: KindAuthorization, Code: CodeNotOwner, Message: "you do not own this resource"}
	ErrAlreadyCancelled  = &Error{Kind: KindState, Code: CodeAlreadyCancelled, Message: "appointment is already cancelled"}
	ErrInvalidTransition = &Error{Kind: KindState, Code: CodeInvalidTransition, Message: "invalid status transition"}
	ErrInvalidStatus     = &Error{Kind: KindState, Code: CodeInvalidStatus, Message: "status must be either APPROVED or DENIED"}
	ErrNotFound          = &Error{Kind: KindNotFound, Code: CodeNotFound, Message: "resource not found"}
	ErrInvalidInput      = &Error{Kind: KindValidation, Code: CodeInvalidInput, Message: "invalid input"}
	ErrAlreadyExists     = &Error{Kind: KindValidation, Code: CodeAlreadyExists, Message: "a user with this username or email already exists"}
	ErrUserInUse         = &Error{Kind: KindState, Code: CodeUserInUse, Message: "user still has appointments or medical records"}

	ErrInvalidCredentials = &Error{Kind: KindAuthentication, Code: CodeInvalidCredentials, Message: "invalid credentials"}
	ErrInvalidToken       = &Error{Kind: KindAuthentication, Code: CodeInvalidToken, Message: "refresh token not found, expired, or revoked"}
	ErrAccountDisabled    = &Error{Kind: KindAuthentication, Code: CodeAccountDisabled, Message: "user account is disabled"}
)

// New builds an error of the given kind and code.
func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Validation builds a validation error.
func Validation(code Code, message string) *Error {
	return New(KindValidation, code, message)
}

// Authorization builds an authorization error.
func Authorization(code Code, message string) *Error {
	return New(KindAuthorization, code, message)
}

// State builds a state error.
func State(code Code, message string) *Error {
	return New(KindState, code, message)
}

// NotFound builds a not-found error for the named resource.
func NotFound(resource string) *Error {
	return New(KindNotFound, CodeNotFound, resource+" not found")
}

// Wrap attaches a cause to a copy of e.
func Wrap(e *Error, cause error) *Error {
	c := *e
	c.Cause = cause
	return &c
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the kind of err, or "" for unexpected failures.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}
