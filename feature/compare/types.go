package compare

import (
	"time"

	"booksync/feature/book"
)

// ChangeType classifies a single field-level difference.
type ChangeType string

const (
	ChangeAdded       ChangeType = "ADDED"
	ChangeRemoved     ChangeType = "REMOVED"
	ChangeTypeChanged ChangeType = "TYPE_CHANGED"
	ChangeValue       ChangeType = "VALUE_CHANGED"
)

// Severity grades how impactful a field change is.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// FieldChange describes one differing field between source and target.
type FieldChange struct {
	Field    string     `json:"field"`
	Source   any        `json:"source"`
	Target   any        `json:"target"`
	Type     ChangeType `json:"type"`
	Severity Severity   `json:"severity"`
}

// ModifiedRecord is one record present on both sides with differences.
type ModifiedRecord struct {
	ID           string                 `json:"id"`
	Source       *book.Record           `json:"source"`
	Target       *book.Record           `json:"target"`
	FieldChanges map[string]FieldChange `json:"fieldChanges"`
}

// ChangeSet is the result of diffing a source collection against a
// target collection. The four lists are disjoint by record id.
type ChangeSet struct {
	Added     []*book.Record   `json:"added"`
	Modified  []ModifiedRecord `json:"modified"`
	Deleted   []*book.Record   `json:"deleted"`
	Unchanged []*book.Record   `json:"unchanged"`
	Summary   Summary          `json:"summary"`
}

// Summary aggregates per-chunk timings for large inputs.
type Summary struct {
	SourceCount int           `json:"source_count"`
	TargetCount int           `json:"target_count"`
	Chunks      int           `json:"chunks"`
	Elapsed     time.Duration `json:"elapsed"`
	SlowestChunk time.Duration `json:"slowest_chunk"`
}
