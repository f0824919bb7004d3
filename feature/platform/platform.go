package platform

import (
	"booksync/core/errs"
	"booksync/feature/book"
)

// Platform identifies one supported e-reading source.
type Platform string

const (
	Readmoo    Platform = "readmoo"
	Kobo       Platform = "kobo"
	Bookwalker Platform = "bookwalker"
)

// Parse validates a platform tag coming from the outside.
func Parse(name string) (Platform, error) {
	switch Platform(name) {
	case Readmoo, Kobo, Bookwalker:
		return Platform(name), nil
	case "":
		return "", errs.Input(errs.CodeValidation, "empty platform name")
	default:
		return "", errs.Input(errs.CodeValidation, "unsupported platform %q", name)
	}
}

// Supported lists all known platforms in registration order.
func Supported() []Platform {
	return []Platform{Readmoo, Kobo, Bookwalker}
}

// Spec describes how raw records from one platform map into the canonical
// shape. Each platform is a pure normalization table entry; there is no
// field sniffing outside these specs.
type Spec struct {
	// Platform is the source this spec belongs to.
	Platform Platform
	// RequiredFields must be present on every raw record.
	RequiredFields []string
	// FieldTypes declares the expected dynamic type per raw field
	// ("string", "number", "authors" for the relaxed author rule).
	FieldTypes map[string]string
	// MapProgress converts the platform's native progress container into
	// the canonical shape. Returns false when the raw record carries no
	// usable progress.
	MapProgress func(raw map[string]any) (book.Progress, bool)
	// MetadataFields are original fields preserved in PlatformMetadata.
	MetadataFields []string
}

// specs is the adapter table, keyed by platform.
var specs = map[Platform]Spec{
	Readmoo:    readmooSpec,
	Kobo:       koboSpec,
	Bookwalker: bookwalkerSpec,
}

// Lookup returns the spec for a platform.
func Lookup(p Platform) (Spec, bool) {
	spec, ok := specs[p]
	return spec, ok
}
