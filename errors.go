package valuation

import (
	"errors"
	"fmt"
)

var (
	// ErrStalePatch is reported when a patch targets a location that no longer
	// exists (e.g. editing a tranche that was just removed). The model is left
	// unchanged.
	ErrStalePatch = errors.New("stale patch")
	// ErrInvalidPatch is reported when a patch does not fit the shape of the
	// model (a key step on a list, a collection operation on an object...).
	ErrInvalidPatch = errors.New("invalid patch")
	// ErrInvalidPath is reported for unparsable paths.
	ErrInvalidPath = errors.New("invalid path")
	// ErrMalformedNumber is reported when a user input is not a number.
	ErrMalformedNumber = errors.New("malformed numeric input")
	// ErrSourceUnavailable is reported when an external data fetch failed.
	ErrSourceUnavailable = errors.New("source unavailable")
)

// StalePatchError tells which location of the model was missing.
type StalePatchError struct {
	Path Path
}

func (e *StalePatchError) Error() string {
	return fmt.Sprintf("stale patch: %s does not exist", e.Path)
}

func (e *StalePatchError) Is(target error) bool { return target == ErrStalePatch }

func stale(p Path) error { return &StalePatchError{Path: p} }

// MalformedNumberError is returned by ParseNumber.
type MalformedNumberError struct {
	Input string
}

func (e *MalformedNumberError) Error() string {
	return fmt.Sprintf("malformed numeric input %q", e.Input)
}

func (e *MalformedNumberError) Is(target error) bool { return target == ErrMalformedNumber }

// UnavailableError wraps the failure of an external source.
type UnavailableError struct {
	Source SourceID
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *UnavailableError) Is(target error) bool { return target == ErrSourceUnavailable }
func (e *UnavailableError) Unwrap() error        { return e.Err }
