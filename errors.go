package snvindex

import (
	"errors"
	"fmt"
)

// Kind classifies the errors the core returns to callers. Callers that
// need to react to a particular failure mode should use errors.As to
// recover an *Error and inspect Kind, rather than matching error text.
type Kind uint8

const (
	// KindInternal marks a violated programming invariant.
	KindInternal Kind = iota
	// KindInvalidInput marks malformed caller input: wrong length,
	// a non-IUPAC character, a duplicate guid on insert.
	KindInvalidInput
	// KindNotFound marks an unknown guid or cluster id.
	KindNotFound
	// KindQualityTooLow marks a sequence that was stored but excluded
	// from edges and clusters because it is invalid.
	KindQualityTooLow
	// KindPersistenceFailure marks a transient or fatal failure at the
	// PersistencePort boundary.
	KindPersistenceFailure
	// KindConfigError marks a bad mask position or an impossible
	// threshold in configuration.
	KindConfigError
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindQualityTooLow:
		return "quality_too_low"
	case KindPersistenceFailure:
		return "persistence_failure"
	case KindConfigError:
		return "config_error"
	default:
		return "internal"
	}
}

// Error is the concrete error type returned across the core's public
// API. Op names the failing operation, Guid identifies the sequence
// involved when relevant, and Err optionally wraps an underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Guid string
	Err  error
}

func (e *Error) Error() string {
	if e.Guid != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s (guid=%s): %v", e.Op, e.Kind, e.Guid, e.Err)
		}
		return fmt.Sprintf("%s: %s (guid=%s)", e.Op, e.Kind, e.Guid)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(op string, kind Kind, guid string, err error) *Error {
	return &Error{Op: op, Kind: kind, Guid: guid, Err: err}
}

// IsKind reports whether err is an *Error of the given Kind anywhere in
// its wrap chain.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
