package conflict

import (
	"time"

	"booksync/feature/book"
	"booksync/feature/compare"
)

// Type is the coarse classification of a detected conflict, assigned by
// priority order: status > progress > timestamp > generic data.
type Type string

const (
	TypeProgress  Type = "progress_conflict"
	TypeStatus    Type = "status_conflict"
	TypeTimestamp Type = "timestamp_conflict"
	TypeData      Type = "data_conflict"
)

// Conflict is one local/remote record pair needing a resolution decision.
type Conflict struct {
	ID       string                         `json:"id"`
	Type     Type                           `json:"conflictType"`
	Severity compare.Severity               `json:"severity"`
	Local    *book.Record                   `json:"local"`
	Remote   *book.Record                   `json:"remote"`
	Fields   map[string]compare.FieldChange `json:"fields"`
}

// Resolution records one strategy decision for a conflict. Unresolved
// resolutions (manual strategy) carry both versions for an external
// decision.
type Resolution struct {
	ID         string       `json:"id"`
	Strategy   string       `json:"strategy"`
	Resolved   bool         `json:"resolved"`
	Winner     *book.Record `json:"winner,omitempty"`
	Local      *book.Record `json:"local,omitempty"`
	Remote     *book.Record `json:"remote,omitempty"`
	Reason     string       `json:"reason"`
	ResolvedAt time.Time    `json:"resolvedAt"`
}

// Strategy decides one conflict. Strategies are pure: same conflict,
// same decision.
type Strategy func(Conflict) Resolution

// Built-in strategy names.
const (
	StrategyKeepLatest          = "keep_latest"
	StrategyKeepHighestProgress = "keep_highest_progress"
	StrategyMergeBestAttributes = "merge_best_attributes"
	StrategyManualResolve       = "manual_resolve"
)
