package conflict

import (
	"fmt"

	"go.uber.org/zap"

	"booksync/feature/book"
	"booksync/feature/compare"
)

// timestampSkewMillis is the extraction-time gap beyond which two
// records of the same book are considered out of sync (24h).
const timestampSkewMillis = 24 * 60 * 60 * 1000

// progress deltas above these points raise the conflict severity.
const (
	progressDeltaHigh   = 20
	progressDeltaMedium = 5
)

// Detector finds conflicting local/remote record pairs by diffing the
// fields a resolution strategy can act on.
type Detector struct {
	engine *compare.Engine
	logger *zap.Logger
}

func NewDetector(logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := compare.Config{
		Fields: []string{"title", "progress", "status", "lastUpdated"},
	}
	return &Detector{
		engine: compare.NewEngine(cfg, logger),
		logger: logger,
	}
}

// Detect diffs local against remote and promotes each modified pair into
// a typed conflict. A nil slice is an empty record set. Records present
// on only one side are not conflicts, they are handled by the sync
// strategy.
func (d *Detector) Detect(local, remote []*book.Record) ([]Conflict, error) {
	set, err := d.engine.Diff(local, remote)
	if err != nil {
		return nil, err
	}

	conflicts := make([]Conflict, 0, len(set.Modified))
	for _, mod := range set.Modified {
		c, ok := classify(mod)
		if !ok {
			continue
		}
		conflicts = append(conflicts, c)
	}

	d.logger.Debug("conflict detection finished",
		zap.Int("pairs", len(set.Modified)),
		zap.Int("conflicts", len(conflicts)))
	return conflicts, nil
}

// classify assigns the conflict type by priority and the severity from
// the dominant field change. Pairs whose changes fall outside the
// watched fields produce no conflict.
func classify(mod compare.ModifiedRecord) (Conflict, bool) {
	changes := mod.FieldChanges

	c := Conflict{
		ID:     fmt.Sprintf("conflict_%s", mod.ID),
		Local:  mod.Source,
		Remote: mod.Target,
		Fields: changes,
	}

	if _, ok := changes["status"]; ok {
		c.Type = TypeStatus
		c.Severity = compare.SeverityHigh
		return c, true
	}
	if _, ok := changes["progress"]; ok {
		c.Type = TypeProgress
		c.Severity = progressConflictSeverity(mod.Source, mod.Target)
		return c, true
	}
	if _, ok := changes["lastUpdated"]; ok {
		if skew(mod.Source, mod.Target) <= timestampSkewMillis {
			// A fresher extraction alone is not a conflict.
			if len(changes) == 1 {
				return Conflict{}, false
			}
		} else {
			c.Type = TypeTimestamp
			c.Severity = compare.SeverityLow
			return c, true
		}
	}
	if len(changes) == 0 {
		return Conflict{}, false
	}

	c.Type = TypeData
	c.Severity = maxSeverity(changes)
	return c, true
}

func progressConflictSeverity(a, b *book.Record) compare.Severity {
	delta := a.Progress.Percentage - b.Progress.Percentage
	if delta < 0 {
		delta = -delta
	}
	switch {
	case delta > progressDeltaHigh:
		return compare.SeverityHigh
	case delta > progressDeltaMedium:
		return compare.SeverityMedium
	default:
		return compare.SeverityLow
	}
}

func skew(a, b *book.Record) int64 {
	d := a.ExtractedAt - b.ExtractedAt
	if d < 0 {
		d = -d
	}
	return d
}

func maxSeverity(changes map[string]compare.FieldChange) compare.Severity {
	max := compare.SeverityLow
	for _, fc := range changes {
		if rank(fc.Severity) > rank(max) {
			max = fc.Severity
		}
	}
	return max
}

func rank(s compare.Severity) int {
	switch s {
	case compare.SeverityHigh:
		return 2
	case compare.SeverityMedium:
		return 1
	default:
		return 0
	}
}
