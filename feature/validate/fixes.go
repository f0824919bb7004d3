package validate

import (
	"strings"

	"booksync/core/utils"
	"booksync/feature/book"
	"booksync/feature/platform"
)

// applyPreFixes runs the corrections that must happen before any check:
// whitespace cleanup, author hoisting, and progress container mapping.
// It returns the canonical progress extracted from the raw record.
func (v *Validator) applyPreFixes(work map[string]any, spec platform.Spec, outcome *Outcome) (book.Progress, bool) {
	if v.cfg.AutoFix {
		if title, ok := work["title"].(string); ok {
			cleaned := collapseWhitespace(title)
			if cleaned != title {
				outcome.addFix("title", title, cleaned)
				work["title"] = cleaned
			}
		}

		// Hoist a single author field into the authors list.
		if _, hasAuthors := work["authors"]; !hasAuthors {
			if single, hasSingle := work["author"]; hasSingle && single != nil {
				hoisted := []any{single}
				outcome.addFix("authors", single, hoisted)
				work["authors"] = hoisted
				delete(work, "author")
			}
		}
	}

	progress, ok := spec.MapProgress(work)
	if ok {
		// Record the coercion when the raw shape was not already canonical.
		if _, structured := work["progress"].(map[string]any); !structured {
			if v.cfg.AutoFix {
				outcome.addFix("progress", work["progress"], progress)
			}
		}
	}
	return progress, ok
}

// applyPostFixes runs the corrections applied after all checks: ISBN
// character stripping and progress clamping.
func (v *Validator) applyPostFixes(record *book.Record, clampNeeded bool, outcome *Outcome) {
	if !v.cfg.AutoFix {
		return
	}

	if record.ISBN != "" {
		stripped := stripISBN(record.ISBN)
		if stripped != record.ISBN {
			outcome.addFix("isbn", record.ISBN, stripped)
			record.ISBN = stripped
		}
	}

	if clampNeeded {
		before := record.Progress.Percentage
		record.Progress.Percentage = clampPercent(before)
		outcome.addFix("progress.percentage", before, record.Progress.Percentage)
	}
}

// buildRecord maps the working raw fields into the canonical record.
func (v *Validator) buildRecord(work map[string]any, spec platform.Spec, progress book.Progress, hasProgress bool) *book.Record {
	record := &book.Record{
		ID:       utils.ToString(valueOrEmpty(work["id"])),
		Platform: string(spec.Platform),
		Title:    utils.ToString(valueOrEmpty(work["title"])),
		ISBN:     utils.ToString(valueOrEmpty(work["isbn"])),
	}

	if authors, ok := extractAuthors(work["authors"]); ok {
		record.Authors = book.StringList(authors)
	}
	if hasProgress {
		record.Progress = progress
	}

	if rating, ok := utils.ToFloat(work["rating"]); ok {
		record.Rating = rating
	}
	if tags, ok := extractAuthors(work["tags"]); ok {
		record.Tags = book.StringList(tags)
	}

	record.Status = deriveStatus(record.Progress.Percentage)
	if rawStatus, present := work["status"]; present {
		if status := book.Status(utils.ToString(rawStatus)); status.IsValid() {
			record.Status = status
		}
	}

	record.Cover = extractCover(work["cover"])
	record.ExtractedAt = int64(utils.ToInt(firstPresent(work, "extractedAt", "extracted_at")))

	meta := make(book.Metadata)
	for _, field := range spec.MetadataFields {
		if value, present := work[field]; present {
			meta[field] = value
		}
	}
	if len(meta) > 0 {
		record.PlatformMetadata = meta
	}

	return record
}

func cloneRaw(raw map[string]any) map[string]any {
	work := make(map[string]any, len(raw))
	for k, v := range raw {
		work[k] = v
	}
	return work
}

// extractAuthors accepts the relaxed author shapes: a single string, a
// string array, or an array of {name} objects.
func extractAuthors(value any) ([]string, bool) {
	switch v := value.(type) {
	case nil:
		return nil, true
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, true
		}
		return []string{collapseWhitespace(v)}, true
	case []string:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				out = append(out, collapseWhitespace(s))
			}
		}
		return out, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			switch a := item.(type) {
			case string:
				if strings.TrimSpace(a) != "" {
					out = append(out, collapseWhitespace(a))
				}
			case map[string]any:
				name := utils.ToString(valueOrEmpty(a["name"]))
				if strings.TrimSpace(name) == "" {
					return nil, false
				}
				out = append(out, collapseWhitespace(name))
			default:
				return nil, false
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func extractCover(value any) book.Cover {
	switch v := value.(type) {
	case string:
		return book.Cover{Thumbnail: v}
	case map[string]any:
		return book.Cover{
			Thumbnail: utils.ToString(valueOrEmpty(v["thumbnail"])),
			Medium:    utils.ToString(valueOrEmpty(v["medium"])),
			Large:     utils.ToString(valueOrEmpty(v["large"])),
		}
	default:
		return book.Cover{}
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripISBN keeps digits and letters only (ISBN-10 check digits may be X).
func stripISBN(isbn string) string {
	var b strings.Builder
	for _, r := range isbn {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func isNumeric(value any) bool {
	_, ok := utils.ToFloat(value)
	if _, isString := value.(string); isString {
		return false
	}
	return ok
}

func isScalar(value any) bool {
	switch value.(type) {
	case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	default:
		return false
	}
}

func valueOrEmpty(value any) any {
	if value == nil {
		return ""
	}
	return value
}

func firstPresent(work map[string]any, keys ...string) any {
	for _, key := range keys {
		if value, present := work[key]; present && value != nil {
			return value
		}
	}
	return ""
}
