// Package errorx 定义领域错误分类：NotFound / PermissionDenied / Conflict / Invalid。
package errorx

import (
	"errors"
	"fmt"
)

// Kind 错误大类
type Kind string

const (
	KindNotFound         Kind = "NOT_FOUND"
	KindPermissionDenied Kind = "PERMISSION_DENIED"
	KindConflict         Kind = "CONFLICT"
	KindInvalid          Kind = "INVALID"
)

// Reason 权限拒绝的细分原因，面向调用方
type Reason string

const (
	ReasonEmailNotVerified Reason = "EMAIL_NOT_VERIFIED"
	ReasonPremiumRequired  Reason = "PREMIUM_REQUIRED"
	ReasonLimitReached     Reason = "LIMIT_REACHED"
	ReasonNotOwner         Reason = "NOT_OWNER"
)

// Error 领域错误
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches on Kind, and on Reason when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// Sentinels for errors.Is.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrInvalid          = &Error{Kind: KindInvalid}

	ErrEmailNotVerified = &Error{Kind: KindPermissionDenied, Reason: ReasonEmailNotVerified}
	ErrPremiumRequired  = &Error{Kind: KindPermissionDenied, Reason: ReasonPremiumRequired}
	ErrLimitReached     = &Error{Kind: KindPermissionDenied, Reason: ReasonLimitReached}
	ErrNotOwner         = &Error{Kind: KindPermissionDenied, Reason: ReasonNotOwner}
)

func NotFound(format string, a ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, a...)}
}

func Invalid(format string, a ...any) error {
	return &Error{Kind: KindInvalid, Message: fmt.Sprintf(format, a...)}
}

func Conflict(format string, a ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, a...)}
}

// Denied builds a permission error with the user-facing message for reason.
func Denied(reason Reason) error {
	return &Error{Kind: KindPermissionDenied, Reason: reason, Message: Message(reason)}
}

// LimitReached is returned by stores when the conditional increment is rejected.
func LimitReached() error { return Denied(ReasonLimitReached) }

// Message returns the actionable text shown to users for a denial reason.
func Message(reason Reason) string {
	switch reason {
	case ReasonEmailNotVerified:
		return "verify your email to continue"
	case ReasonPremiumRequired:
		return "upgrade required"
	case ReasonLimitReached:
		return "activity limit reached, upgrade to create more"
	case ReasonNotOwner:
		return "only the author or a moderator can do this"
	default:
		return "permission denied"
	}
}

// As extracts the domain error from err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
