package model

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can decide between retrying, rejecting
// and logging.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransport
	KindParse
	KindPersistence
	KindEvaluation
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindParse:
		return "parse"
	case KindPersistence:
		return "persistence"
	case KindEvaluation:
		return "evaluation"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// Error carries a Kind, the operation that failed and the cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error. A nil cause yields nil.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation is shorthand for a KindValidation error with a formatted message.
func Validation(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
