package platform

import (
	"math"

	"booksync/core/utils"
	"booksync/feature/book"
)

// readmooSpec maps Readmoo exports. Progress arrives either as a bare
// percentage number or as an already structured container.
var readmooSpec = Spec{
	Platform:       Readmoo,
	RequiredFields: []string{"id", "title"},
	FieldTypes: map[string]string{
		"id":      "string",
		"title":   "string",
		"authors": "authors",
		"isbn":    "string",
		"rating":  "number",
	},
	MapProgress:    mapPercentageProgress("progress"),
	MetadataFields: []string{"reading_progress", "highlights_count", "shelf"},
}

// koboSpec maps Kobo exports. Progress is a fractional position 0..1.
var koboSpec = Spec{
	Platform:       Kobo,
	RequiredFields: []string{"id", "title"},
	FieldTypes: map[string]string{
		"id":      "string",
		"title":   "string",
		"authors": "authors",
		"isbn":    "string",
		"rating":  "number",
	},
	MapProgress: func(raw map[string]any) (book.Progress, bool) {
		frac, ok := utils.ToFloat(raw["position"])
		if !ok {
			return mapPercentageProgress("progress")(raw)
		}
		p := book.Progress{
			Percentage:  int(math.Round(frac * 100)),
			CurrentPage: utils.ToInt(raw["current_page"]),
			TotalPages:  utils.ToInt(raw["total_pages"]),
		}
		p.LastPosition = utils.ToString(raw["last_position"])
		if raw["last_position"] == nil {
			p.LastPosition = ""
		}
		return p, true
	},
	MetadataFields: []string{"reading_state", "position", "store_id"},
}

// bookwalkerSpec maps Bookwalker exports. Progress is percent_complete.
var bookwalkerSpec = Spec{
	Platform:       Bookwalker,
	RequiredFields: []string{"id", "title"},
	FieldTypes: map[string]string{
		"id":      "string",
		"title":   "string",
		"authors": "authors",
		"isbn":    "string",
		"rating":  "number",
	},
	MapProgress:    mapPercentageProgress("percent_complete"),
	MetadataFields: []string{"percent_complete", "series", "volume"},
}

// mapPercentageProgress builds a mapper for platforms whose progress is a
// plain percentage under field, or a structured container.
func mapPercentageProgress(field string) func(raw map[string]any) (book.Progress, bool) {
	return func(raw map[string]any) (book.Progress, bool) {
		value, present := raw[field]
		if !present {
			return book.Progress{}, false
		}

		// Structured container: pick the canonical keys out of it.
		if container, ok := value.(map[string]any); ok {
			p := book.Progress{
				Percentage:   utils.ToInt(container["percentage"]),
				CurrentPage:  utils.ToInt(container["currentPage"]),
				TotalPages:   utils.ToInt(container["totalPages"]),
				LastPosition: utils.ToString(container["lastPosition"]),
			}
			if container["lastPosition"] == nil {
				p.LastPosition = ""
			}
			return p, true
		}

		percent, ok := utils.ToFloat(value)
		if !ok {
			return book.Progress{}, false
		}
		return book.Progress{Percentage: int(math.Round(percent))}, true
	}
}
