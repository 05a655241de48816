package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies where in the submission pipeline a failure originated
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindValidation
	KindSpamCheck
	KindPersistence
	KindCrmWrite
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindValidation:
		return "validation"
	case KindSpamCheck:
		return "spam_check"
	case KindPersistence:
		return "persistence"
	case KindCrmWrite:
		return "crm_write"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Error is a classified pipeline failure. Msg is what the caller sees;
// Err, when set, is the underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Configuration reports a deployment problem, such as a form with no field mapping
func Configuration(format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Msg: fmt.Sprintf(format, args...)}
}

// Validation reports bad client input
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// SpamCheck reports a rejected challenge token. cause may be nil.
func SpamCheck(msg string, cause error) error {
	return &Error{Kind: KindSpamCheck, Msg: msg, Err: cause}
}

// Persistence reports a failed backup write
func Persistence(msg string, cause error) error {
	return &Error{Kind: KindPersistence, Msg: msg, Err: cause}
}

// CrmWrite reports a create call that returned no usable entity
func CrmWrite(msg string, cause error) error {
	return &Error{Kind: KindCrmWrite, Msg: msg, Err: cause}
}

// Upstream reports a failed call to an external service
func Upstream(msg string, cause error) error {
	return &Error{Kind: KindUpstream, Msg: msg, Err: cause}
}

// KindOf returns the Kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind to a response status code
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindSpamCheck:
		return http.StatusForbidden
	case KindCrmWrite, KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
