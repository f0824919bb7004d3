package compare

import (
	"math"
	"strings"

	"booksync/feature/book"
)

// fieldValue extracts the comparable value of a configured field.
// Unknown fields compare as nil on both sides and never differ.
func fieldValue(r *book.Record, field string) any {
	switch field {
	case "title":
		return r.Title
	case "progress":
		return r.Progress.Percentage
	case "lastUpdated":
		return r.ExtractedAt
	case "status":
		return string(r.Status)
	case "rating":
		return r.Rating
	case "isbn":
		return r.ISBN
	default:
		return nil
	}
}

// compareField returns the change for one field, or ok=false when the
// values are considered equal under the configured comparators.
func (e *Engine) compareField(field string, source, target *book.Record) (FieldChange, bool) {
	sv := fieldValue(source, field)
	tv := fieldValue(target, field)

	change := FieldChange{Field: field, Source: sv, Target: tv, Severity: SeverityLow}

	switch s := sv.(type) {
	case string:
		tstr, ok := tv.(string)
		if !ok {
			change.Type = ChangeTypeChanged
			change.Severity = SeverityHigh
			return change, true
		}
		a, b := s, tstr
		if e.cfg.CaseInsensitive {
			a, b = strings.ToLower(a), strings.ToLower(b)
		}
		if a == b {
			return FieldChange{}, false
		}
		change.Type = changeTypeFor(s == "", tstr == "")
		if field == "title" {
			change.Severity = titleSeverity(a, b)
		}
		return change, true

	case int:
		tnum, ok := tv.(int)
		if !ok {
			change.Type = ChangeTypeChanged
			change.Severity = SeverityHigh
			return change, true
		}
		delta := math.Abs(float64(s - tnum))
		if delta <= e.cfg.NumericTolerance {
			return FieldChange{}, false
		}
		change.Type = ChangeValue
		if field == "progress" {
			change.Severity = progressSeverity(delta)
		}
		return change, true

	case int64:
		tnum, ok := tv.(int64)
		if !ok {
			change.Type = ChangeTypeChanged
			change.Severity = SeverityHigh
			return change, true
		}
		if math.Abs(float64(s-tnum)) <= e.cfg.NumericTolerance {
			return FieldChange{}, false
		}
		change.Type = ChangeValue
		return change, true

	case float64:
		tnum, ok := tv.(float64)
		if !ok {
			change.Type = ChangeTypeChanged
			change.Severity = SeverityHigh
			return change, true
		}
		if math.Abs(s-tnum) <= e.cfg.NumericTolerance {
			return FieldChange{}, false
		}
		change.Type = ChangeValue
		return change, true

	default:
		return FieldChange{}, false
	}
}

func changeTypeFor(sourceEmpty, targetEmpty bool) ChangeType {
	switch {
	case targetEmpty && !sourceEmpty:
		return ChangeAdded
	case sourceEmpty && !targetEmpty:
		return ChangeRemoved
	default:
		return ChangeValue
	}
}

// progressSeverity grades a progress delta by magnitude.
func progressSeverity(delta float64) Severity {
	switch {
	case delta >= 50:
		return SeverityHigh
	case delta >= 20:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// titleSeverity grades a title change by normalized edit similarity.
func titleSeverity(a, b string) Severity {
	sim := similarity(a, b)
	switch {
	case sim < 0.5:
		return SeverityHigh
	case sim < 0.8:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
