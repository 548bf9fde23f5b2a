package kpi

import (
	"errors"
	"fmt"
)

// ErrSourceUnavailable marks the failure of a required metric source
// (event analytics or commerce). Requests fail whole rather than
// returning partially-populated reports.
var ErrSourceUnavailable = errors.New("metric source unavailable")

// SourceUnavailableError carries which source failed and why.
type SourceUnavailableError struct {
	Source string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("%s source unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// Is reports true for ErrSourceUnavailable so callers can match the
// sentinel without knowing the source.
func (e *SourceUnavailableError) Is(target error) bool {
	return target == ErrSourceUnavailable
}
