package types

import (
	"errors"
	"fmt"
)

// SourceError marks a single source as unavailable for this run. The
// remaining sources keep going.
type SourceError struct {
	SourceID string
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.SourceID, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

func NewSourceError(sourceID string, err error) *SourceError {
	return &SourceError{SourceID: sourceID, Err: err}
}

func IsSourceError(err error) bool {
	var se *SourceError
	return errors.As(err, &se)
}

// OracleError marks one failed oracle call. Recoverable at item
// granularity; fatal for the run only when every call in the stage
// failed.
type OracleError struct {
	Oracle  string
	ItemKey string
	Err     error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("%s oracle failed for %s: %v", e.Oracle, e.ItemKey, e.Err)
}

func (e *OracleError) Unwrap() error { return e.Err }

func NewOracleError(oracle, itemKey string, err error) *OracleError {
	return &OracleError{Oracle: oracle, ItemKey: itemKey, Err: err}
}

func IsOracleError(err error) bool {
	var oe *OracleError
	return errors.As(err, &oe)
}

// FormatError reports generated content that violates the configured
// length or language constraints.
type FormatError struct {
	ItemKey string
	Field   string
	Reason  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format violation on %s (%s): %s", e.ItemKey, e.Field, e.Reason)
}

func NewFormatError(itemKey, field, reason string) *FormatError {
	return &FormatError{ItemKey: itemKey, Field: field, Reason: reason}
}

func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// FatalError aborts the whole run: no sources yielded content, or no
// relevance classification was possible at all.
type FatalError struct {
	Stage  Stage
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal pipeline failure at %s: %s: %v", e.Stage, e.Reason, e.Err)
	}
	return fmt.Sprintf("fatal pipeline failure at %s: %s", e.Stage, e.Reason)
}

func (e *FatalError) Unwrap() error { return e.Err }

func NewFatalError(stage Stage, reason string, err error) *FatalError {
	return &FatalError{Stage: stage, Reason: reason, Err: err}
}

func IsFatalError(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
