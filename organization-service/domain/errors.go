package domain

import (
	"fmt"
	"strings"
)

// Application codes carried by replies and lifecycle events
const (
	CodeSuccess          = "SUCCESS"
	CodeInternalError    = "INTERNAL_SERVER_ERROR"
	CodeInvalidPlan      = "INVALID_PLAN"
	CodeDuplicateUser    = "DUPLICATE_USER"
	CodeOwnerInUsers     = "OWNER_IN_USERS"
	CodeNotFound         = "NOT_FOUND"
	CodeNotExistUser     = "NOT_EXIST_USER"
	CodeAlreadyExistUser = "ALREADY_EXIST_USER"
	CodeSagaTimeout      = "SAGA_TIMEOUT"
	CodeSagaUndone       = "SAGA_UNDONE"
)

// Error is a business error with a stable application code
type Error struct {
	code    string
	message string
}

func newError(code, message string) *Error {
	return &Error{code: code, message: message}
}

func (e *Error) Error() string {
	return e.message
}

// Code returns the application code
func (e *Error) Code() string {
	return e.code
}

var (
	ErrInvalidPlan              = newError(CodeInvalidPlan, "invalid organization plan")
	ErrDuplicateUsers           = newError(CodeDuplicateUser, "duplicate users")
	ErrOwnerInUsers             = newError(CodeOwnerInUsers, "owner must not be listed in users")
	ErrOrganizationNotFound     = newError(CodeNotFound, "organization not found")
	ErrOrganizationUserNotFound = newError(CodeNotExistUser, "organization user not found")
	ErrUserAlreadyMember        = newError(CodeAlreadyExistUser, "users already added")
)

// IDsError attaches the offending ids to a business error. errors.Is
// matches the wrapped sentinel.
type IDsError struct {
	Err *Error
	IDs []string
}

// WithIDs wraps sentinel with the ids that caused it
func WithIDs(sentinel *Error, ids ...string) *IDsError {
	return &IDsError{Err: sentinel, IDs: ids}
}

func (e *IDsError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.message, strings.Join(e.IDs, ", "))
}

func (e *IDsError) Code() string {
	return e.Err.code
}

func (e *IDsError) Unwrap() error {
	return e.Err
}
