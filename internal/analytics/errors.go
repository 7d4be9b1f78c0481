package analytics

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a campaign or report id does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned for malformed query or report input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPartialSourceUnavailable is returned when one of the source families
	// could not be read. It is distinct from a source having no rows.
	ErrPartialSourceUnavailable = errors.New("source unavailable")

	// ErrUpsertConflict is returned when the cache row could not be written.
	// Nothing is committed; the next cycle retries.
	ErrUpsertConflict = errors.New("analytics cache write failed")
)

// Source family names used in SourceError.
const (
	SourceLedger        = "posting_ledger"
	SourcePlatformStats = "platform_stats"
	SourceSnapshots     = "interval_snapshots"
	SourceCampaigns     = "campaigns"
)

// SourceError names the source family that failed to read.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: read %s: %v", ErrPartialSourceUnavailable, e.Source, e.Err)
}

func (e *SourceError) Unwrap() []error {
	return []error{ErrPartialSourceUnavailable, e.Err}
}

func sourceErr(source string, err error) error {
	return &SourceError{Source: source, Err: err}
}
