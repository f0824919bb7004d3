package compare

import (
	"time"

	"booksync/feature/book"

	"go.uber.org/zap"
)

// Config holds the tunable comparison behavior.
type Config struct {
	// Fields is the subset of record fields compared for modification.
	Fields []string
	// CaseInsensitive compares string fields without case.
	CaseInsensitive bool
	// NumericTolerance treats numeric deltas at or below it as equal.
	NumericTolerance float64
	// ChunkSize processes source records in fixed-size chunks when > 0,
	// aggregating per-chunk timings into the summary.
	ChunkSize int
}

// DefaultFields is the field subset compared when none is configured.
var DefaultFields = []string{"title", "progress", "lastUpdated"}

// Engine diffs two record collections into a ChangeSet.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// NewEngine creates a comparison engine.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if len(cfg.Fields) == 0 {
		cfg.Fields = DefaultFields
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Diff computes the change set that would turn target into source.
// Records only in source are added, only in target deleted; records on
// both sides are compared field by field. A nil slice is an empty
// collection. Ordering follows the input slices, so the result is
// deterministic.
func (e *Engine) Diff(source, target []*book.Record) (*ChangeSet, error) {
	start := time.Now()

	// Index the target once; lookups are O(1) per source record.
	targetIndex := make(map[string]*book.Record, len(target))
	for _, r := range target {
		targetIndex[r.ID] = r
	}

	cs := &ChangeSet{
		Added:     []*book.Record{},
		Modified:  []ModifiedRecord{},
		Deleted:   []*book.Record{},
		Unchanged: []*book.Record{},
	}

	seen := make(map[string]struct{}, len(source))
	chunkSize := e.cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = len(source)
	}

	var slowest time.Duration
	chunks := 0
	for from := 0; from < len(source); from += chunkSize {
		to := from + chunkSize
		if to > len(source) {
			to = len(source)
		}
		chunkStart := time.Now()
		for _, src := range source[from:to] {
			seen[src.ID] = struct{}{}
			tgt, exists := targetIndex[src.ID]
			if !exists {
				cs.Added = append(cs.Added, src)
				continue
			}

			changes := e.compareFields(src, tgt)
			if len(changes) == 0 {
				cs.Unchanged = append(cs.Unchanged, src)
				continue
			}
			cs.Modified = append(cs.Modified, ModifiedRecord{
				ID:           src.ID,
				Source:       src,
				Target:       tgt,
				FieldChanges: changes,
			})
		}
		if d := time.Since(chunkStart); d > slowest {
			slowest = d
		}
		chunks++
	}

	// Target records never seen in source are deletions.
	for _, tgt := range target {
		if _, ok := seen[tgt.ID]; !ok {
			cs.Deleted = append(cs.Deleted, tgt)
		}
	}

	cs.Summary = Summary{
		SourceCount:  len(source),
		TargetCount:  len(target),
		Chunks:       chunks,
		Elapsed:      time.Since(start),
		SlowestChunk: slowest,
	}

	e.logger.Debug("diff computed",
		zap.Int("added", len(cs.Added)),
		zap.Int("modified", len(cs.Modified)),
		zap.Int("deleted", len(cs.Deleted)),
		zap.Int("unchanged", len(cs.Unchanged)),
		zap.Duration("elapsed", cs.Summary.Elapsed))
	return cs, nil
}

// compareFields runs the configured comparators and collects differences.
func (e *Engine) compareFields(source, target *book.Record) map[string]FieldChange {
	var changes map[string]FieldChange
	for _, field := range e.cfg.Fields {
		if change, differs := e.compareField(field, source, target); differs {
			if changes == nil {
				changes = make(map[string]FieldChange, len(e.cfg.Fields))
			}
			changes[field] = change
		}
	}
	return changes
}
