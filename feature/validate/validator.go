package validate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"booksync/core/cache"
	"booksync/core/errs"
	"booksync/core/events"
	"booksync/feature/book"
	"booksync/feature/platform"

	v10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Validator normalizes and validates raw platform records into canonical
// book records. Outcomes are cached by (platform, content hash) when a
// cache manager is provided.
type Validator struct {
	cfg    Config
	cache  *cache.Manager
	bus    *events.Bus
	logger *zap.Logger
	check  *v10.Validate
}

// NewValidator creates a validator. cache and bus may be nil.
func NewValidator(cfg Config, cacheMgr *cache.Manager, bus *events.Bus, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		cfg:    cfg,
		cache:  cacheMgr,
		bus:    bus,
		logger: logger,
		check:  v10.New(),
	}
}

// businessRules declares the range constraints once as validator tags.
type businessRules struct {
	Percentage  int     `validate:"gte=0,lte=100"`
	CurrentPage int     `validate:"gte=0,ltefield=TotalPages"`
	TotalPages  int     `validate:"gte=0"`
	Rating      float64 `validate:"gte=0,lte=5"`
}

// Validate runs the full pipeline for one raw record and returns its
// outcome. The outcome is immutable once returned.
func (v *Validator) Validate(ctx context.Context, raw map[string]any, platformName string) (*Outcome, error) {
	p, err := platform.Parse(platformName)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errs.Input(errs.CodeValidation, "record must not be nil")
	}
	spec, _ := platform.Lookup(p)

	_, outcome := v.validateOne(ctx, raw, spec)

	if v.bus != nil && len(outcome.Warnings) > 0 {
		v.bus.Publish(events.TopicQualityWarning, map[string]any{
			"platform": string(p),
			"count":    len(outcome.Warnings),
		})
	}
	return outcome, nil
}

// validateOne runs the pipeline for one record, serving both the outcome
// and the normalized record from cache when possible.
func (v *Validator) validateOne(ctx context.Context, raw map[string]any, spec platform.Spec) (*book.Record, *Outcome) {
	key := string(spec.Platform) + ":" + contentHash(raw)
	if v.cache != nil {
		var cachedOutcome Outcome
		var cachedRecord book.Record
		outcomeHit, _ := v.cache.Get(ctx, cache.TypeValidation, key, &cachedOutcome)
		recordHit, _ := v.cache.Get(ctx, cache.TypeNormalized, key, &cachedRecord)
		if outcomeHit && recordHit {
			return &cachedRecord, &cachedOutcome
		}
	}

	record, outcome := v.run(raw, spec)

	if v.cache != nil {
		if err := v.cache.Set(ctx, cache.TypeValidation, key, outcome); err != nil {
			v.logger.Warn("caching validation outcome failed", zap.Error(err))
		}
		if err := v.cache.Set(ctx, cache.TypeNormalized, key, record); err != nil {
			v.logger.Warn("caching normalized record failed", zap.Error(err))
		}
	}
	return record, outcome
}

// Normalize maps a raw record into the canonical shape, applying the same
// fix pipeline as Validate. The returned record has fresh hashes; running
// Normalize on an already-normalized record yields an identical
// fingerprint.
func (v *Validator) Normalize(ctx context.Context, raw map[string]any, platformName string) (*book.Record, error) {
	p, err := platform.Parse(platformName)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errs.Input(errs.CodeValidation, "record must not be nil")
	}
	spec, _ := platform.Lookup(p)

	record, _ := v.validateOne(ctx, raw, spec)
	return record, nil
}

// run executes the six-phase pipeline: pre-fixes, required fields, type
// checks, business rules, quality checks, post-fixes.
func (v *Validator) run(raw map[string]any, spec platform.Spec) (*book.Record, *Outcome) {
	outcome := &Outcome{}
	work := cloneRaw(raw)

	progress, hasProgress := v.applyPreFixes(work, spec, outcome)
	v.checkRequired(work, spec, outcome)
	v.checkTypes(work, spec, outcome)

	record := v.buildRecord(work, spec, progress, hasProgress)
	clampNeeded := v.checkBusinessRules(record, work, outcome)
	v.checkQuality(record, outcome)
	v.applyPostFixes(record, clampNeeded, outcome)

	record.RecomputeHashes()
	outcome.IsValid = len(outcome.Errors) == 0
	return record, outcome
}

func (v *Validator) checkRequired(work map[string]any, spec platform.Spec, outcome *Outcome) {
	for _, field := range spec.RequiredFields {
		value, present := work[field]
		if !present || value == nil {
			outcome.addError(CodeMissingRequiredField, field, fmt.Sprintf("required field %q is missing", field))
			continue
		}
		if s, ok := value.(string); ok && s == "" {
			outcome.addError(CodeMissingRequiredField, field, fmt.Sprintf("required field %q is empty", field))
		}
	}
}

func (v *Validator) checkTypes(work map[string]any, spec platform.Spec, outcome *Outcome) {
	for field, want := range spec.FieldTypes {
		value, present := work[field]
		if !present || value == nil {
			continue
		}
		switch want {
		case "string":
			if _, ok := value.(string); !ok {
				if v.cfg.AutoFix && !v.cfg.StrictMode && isScalar(value) {
					coerced := fmt.Sprintf("%v", value)
					outcome.addFix(field, value, coerced)
					work[field] = coerced
				} else {
					outcome.addError(CodeInvalidFieldType, field, fmt.Sprintf("field %q must be a string", field))
				}
			}
		case "number":
			if !isNumeric(value) {
				outcome.addError(CodeInvalidFieldType, field, fmt.Sprintf("field %q must be numeric", field))
			}
		case "authors":
			// Relaxed rule: a string, a string array, or a {name} object
			// array are all accepted.
			if _, ok := extractAuthors(value); !ok {
				outcome.addError(CodeInvalidFieldType, field, "authors must be strings or objects with a name")
			}
		}
	}
}

// checkBusinessRules validates ranges through the declared tags and
// reports whether an out-of-range progress should be clamped later.
func (v *Validator) checkBusinessRules(record *book.Record, work map[string]any, outcome *Outcome) bool {
	rules := businessRules{
		Percentage:  record.Progress.Percentage,
		CurrentPage: record.Progress.CurrentPage,
		TotalPages:  record.Progress.TotalPages,
		Rating:      record.Rating,
	}

	clampNeeded := false
	if err := v.check.Struct(rules); err != nil {
		var fieldErrs v10.ValidationErrors
		if !asValidationErrors(err, &fieldErrs) {
			outcome.addError(CodeInvalidFieldType, "", err.Error())
			return false
		}
		for _, fe := range fieldErrs {
			switch fe.StructField() {
			case "Percentage":
				if v.cfg.AutoFix && !v.cfg.StrictMode {
					clampNeeded = true
				} else {
					outcome.addError(CodeProgressOutOfRange, "progress",
						fmt.Sprintf("progress percentage %d is outside 0-100", rules.Percentage))
				}
			case "CurrentPage":
				if fe.Tag() == "ltefield" {
					outcome.addError(CodePagesInconsistent, "progress",
						fmt.Sprintf("currentPage %d exceeds totalPages %d", rules.CurrentPage, rules.TotalPages))
				} else {
					outcome.addError(CodeProgressOutOfRange, "progress", "currentPage must not be negative")
				}
			case "TotalPages":
				outcome.addError(CodeProgressOutOfRange, "progress", "totalPages must not be negative")
			case "Rating":
				outcome.addError(CodeRatingOutOfRange, "rating",
					fmt.Sprintf("rating %.1f is outside 0-5", rules.Rating))
			}
		}
	}

	// Status must be one of the known reading states when supplied.
	if rawStatus, present := work["status"]; present && rawStatus != nil {
		status := book.Status(fmt.Sprintf("%v", rawStatus))
		if !status.IsValid() {
			if v.cfg.AutoFix && !v.cfg.StrictMode {
				derived := deriveStatus(record.Progress.Percentage)
				outcome.addFix("status", rawStatus, string(derived))
				record.Status = derived
			} else {
				outcome.addError(CodeInvalidStatus, "status", fmt.Sprintf("unknown status %q", rawStatus))
			}
		}
	}

	return clampNeeded
}

func (v *Validator) checkQuality(record *book.Record, outcome *Outcome) {
	if title := record.Title; title != "" && len([]rune(title)) < 3 {
		outcome.addWarning(WarnShortTitle, "title",
			fmt.Sprintf("title %q is suspiciously short", title),
			"verify the title was extracted completely")
	}
	if len(record.Authors) == 0 {
		outcome.addWarning(WarnEmptyAuthors, "authors",
			"record has no authors",
			"check the source page for an author field")
	}
	if record.ISBN != "" {
		stripped := stripISBN(record.ISBN)
		if n := len(stripped); n != 10 && n != 13 {
			outcome.addWarning(WarnMalformedISBN, "isbn",
				fmt.Sprintf("isbn %q does not normalize to 10 or 13 characters", record.ISBN),
				"confirm the ISBN against the publisher listing")
		}
	}
	for field, url := range map[string]string{
		"cover.thumbnail": record.Cover.Thumbnail,
		"cover.medium":    record.Cover.Medium,
		"cover.large":     record.Cover.Large,
	} {
		if url != "" && !isHTTPURL(url) {
			outcome.addWarning(WarnMalformedCoverURL, field,
				fmt.Sprintf("cover URL %q is not a valid http(s) URI", url),
				"re-extract the cover image URL")
		}
	}
}

func contentHash(raw map[string]any) string {
	// json.Marshal sorts map keys, so equal records hash equally.
	data, err := json.Marshal(raw)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", raw))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:32]
}

func asValidationErrors(err error, out *v10.ValidationErrors) bool {
	fieldErrs, ok := err.(v10.ValidationErrors)
	if ok {
		*out = fieldErrs
	}
	return ok
}

func deriveStatus(percentage int) book.Status {
	switch {
	case percentage >= 100:
		return book.StatusFinished
	case percentage > 0:
		return book.StatusReading
	default:
		return book.StatusNotStarted
	}
}
