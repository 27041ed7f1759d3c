package ingestion

import (
	"errors"
	"fmt"

	"github.com/corvid-labs/sectra/core"
	"github.com/corvid-labs/sectra/sectionindex"
)

// RecordError is one rejected extraction record. Seq is the record's position
// in its batch list, so callers can correlate rejections with their input.
type RecordError struct {
	Kind core.ResultKind
	Seq  int
	Err  error
}

func (e RecordError) Error() string {
	kind := "entity"
	if e.Kind == core.KindRelationship {
		kind = "relationship"
	}
	return fmt.Sprintf("%s record %d: %v", kind, e.Seq, e.Err)
}

func (e RecordError) Unwrap() error {
	return e.Err
}

// Report is the structured outcome of one source ingestion. Per-record
// failures land in Rejected while the rest of the batch commits; a non-empty
// Rejected list is partial success, not failure.
type Report struct {
	SourceId      core.ID
	Sections      int
	Entities      int
	Relationships int
	Unsectioned   int // records attached to the synthetic unsectioned root
	Rejected      []RecordError
	Warnings      []sectionindex.Warning
}

// Err aggregates the per-record errors, or nil when every record ingested.
func (r *Report) Err() error {
	if len(r.Rejected) == 0 {
		return nil
	}
	errs := make([]error, len(r.Rejected))
	for i, re := range r.Rejected {
		errs[i] = re
	}
	return errors.Join(errs...)
}

func (r *Report) reject(kind core.ResultKind, seq int, err error) {
	r.Rejected = append(r.Rejected, RecordError{Kind: kind, Seq: seq, Err: err})
}
