// services/errors.go
package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type ErrorKind string

const (
	KindNotFound        ErrorKind = "not_found"
	KindInvalidState    ErrorKind = "invalid_state"
	KindIneligible      ErrorKind = "ineligible"
	KindInvalidArgument ErrorKind = "invalid_argument"
)

// DomainError is returned synchronously to the caller and never retried.
type DomainError struct {
	Kind ErrorKind
	Msg  string
}

func (e *DomainError) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return e.Msg
}

// Is matches the exact sentinel, or any error of the same kind when the
// target is a class sentinel (empty Msg).
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

// Class sentinels.
var (
	ErrNotFound        = &DomainError{Kind: KindNotFound}
	ErrInvalidState    = &DomainError{Kind: KindInvalidState}
	ErrIneligible      = &DomainError{Kind: KindIneligible}
	ErrInvalidArgument = &DomainError{Kind: KindInvalidArgument}
)

var (
	ErrActivityNotFound = &DomainError{Kind: KindNotFound, Msg: "activity not found"}
	ErrContestNotFound  = &DomainError{Kind: KindNotFound, Msg: "contest not found"}

	ErrContestEnded      = &DomainError{Kind: KindInvalidState, Msg: "contest already ended"}
	ErrResultNotRecorded = &DomainError{Kind: KindInvalidState, Msg: "contest result not recorded"}
	ErrActivityDraft     = &DomainError{Kind: KindInvalidState, Msg: "activity is not published"}
	ErrOutsideWindow     = &DomainError{Kind: KindInvalidState, Msg: "activity is not open for participation"}
	ErrActivityEnded     = &DomainError{Kind: KindInvalidState, Msg: "activity already ended"}
	ErrAlreadyPlayed     = &DomainError{Kind: KindInvalidState, Msg: "activity already played"}
	ErrInviteeClaimed    = &DomainError{Kind: KindInvalidState, Msg: "invitee already credited"}

	ErrInsufficientBalance = &DomainError{Kind: KindIneligible, Msg: "balance below eligibility threshold"}
	ErrSelfReferral        = &DomainError{Kind: KindIneligible, Msg: "cannot refer yourself"}
	ErrOutOfRange          = &DomainError{Kind: KindIneligible, Msg: "outside check-in radius"}
)

func invalidArgument(format string, args ...interface{}) error {
	return &DomainError{Kind: KindInvalidArgument, Msg: fmt.Sprintf(format, args...)}
}

// KindOf classifies err, or returns "" for infrastructure errors.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// notFoundOr maps gorm's not-found onto the given domain error.
func notFoundOr(err error, nf *DomainError, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nf
	}
	return fmt.Errorf("%s: %w", op, err)
}
