package validate

// ErrorCode identifies one class of record-level validation failure.
type ErrorCode string

const (
	CodeMissingRequiredField ErrorCode = "MISSING_REQUIRED_FIELD"
	CodeInvalidFieldType     ErrorCode = "INVALID_FIELD_TYPE"
	CodeProgressOutOfRange   ErrorCode = "PROGRESS_OUT_OF_RANGE"
	CodeRatingOutOfRange     ErrorCode = "RATING_OUT_OF_RANGE"
	CodePagesInconsistent    ErrorCode = "PAGES_INCONSISTENT"
	CodeInvalidStatus        ErrorCode = "INVALID_STATUS"
)

// WarningCode identifies one class of non-fatal quality issue.
type WarningCode string

const (
	WarnShortTitle        WarningCode = "SHORT_TITLE"
	WarnEmptyAuthors      WarningCode = "EMPTY_AUTHORS"
	WarnMalformedISBN     WarningCode = "MALFORMED_ISBN"
	WarnMalformedCoverURL WarningCode = "MALFORMED_COVER_URL"
)

// FieldError is one fatal validation failure, tagged with the raw field.
type FieldError struct {
	Code    ErrorCode `json:"code"`
	Field   string    `json:"field"`
	Message string    `json:"message"`
}

// Warning is a non-fatal quality issue with a suggested remedy.
// Warnings never flip validity.
type Warning struct {
	Code       WarningCode `json:"code"`
	Field      string      `json:"field"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
}

// Fix is the audit trail of one automatic correction.
type Fix struct {
	Field  string `json:"field"`
	Before any    `json:"before"`
	After  any    `json:"after"`
}

// Outcome is the immutable result of validating one record.
type Outcome struct {
	IsValid  bool         `json:"isValid"`
	Errors   []FieldError `json:"errors,omitempty"`
	Warnings []Warning    `json:"warnings,omitempty"`
	Fixes    []Fix        `json:"fixes,omitempty"`
}

func (o *Outcome) addError(code ErrorCode, field, message string) {
	o.Errors = append(o.Errors, FieldError{Code: code, Field: field, Message: message})
}

func (o *Outcome) addWarning(code WarningCode, field, message, suggestion string) {
	o.Warnings = append(o.Warnings, Warning{Code: code, Field: field, Message: message, Suggestion: suggestion})
}

func (o *Outcome) addFix(field string, before, after any) {
	o.Fixes = append(o.Fixes, Fix{Field: field, Before: before, After: after})
}
