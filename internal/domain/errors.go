package domain

import (
	"errors"
	"fmt"
)

// ErrPreconditionMissing marks a run aborted before any I/O.
var ErrPreconditionMissing = errors.New("precondition missing")

// PreconditionError names the missing setting.
type PreconditionError struct {
	Field string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s is not configured", ErrPreconditionMissing, e.Field)
}

func (e *PreconditionError) Unwrap() error { return ErrPreconditionMissing }

// Stage names used in StageError and log records.
const (
	StageLibrary  = "library"
	StageScrape   = "scrape"
	StageResolve  = "resolve"
	StageCrossRef = "crossref"
	StageLookup   = "lookup"
	StageSubmit   = "submit"
)

// StageError is a per-item or per-country failure; it is logged and counted, never propagated out of a run.
type StageError struct {
	Stage   string
	Subject string
	Err     error
}

func (e *StageError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("stage=%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage=%s subject=%q: %v", e.Stage, e.Subject, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
