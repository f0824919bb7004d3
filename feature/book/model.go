package book

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Status is the reading state of a book.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusReading    Status = "READING"
	StatusFinished   Status = "FINISHED"
)

// IsValid checks if the status is one of the known reading states.
func (s Status) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusReading, StatusFinished:
		return true
	default:
		return false
	}
}

// Progress is the canonical reading progress shape. Platform-specific
// containers (fractional position, percent-complete) are mapped into this
// during normalization.
type Progress struct {
	Percentage   int    `gorm:"column:percentage;default:0" json:"percentage"`
	CurrentPage  int    `gorm:"column:current_page;default:0" json:"currentPage"`
	TotalPages   int    `gorm:"column:total_pages;default:0" json:"totalPages"`
	LastPosition string `gorm:"column:last_position;type:varchar(255)" json:"lastPosition,omitempty"`
}

// Cover holds the thumbnail URIs for a book.
type Cover struct {
	Thumbnail string `gorm:"column:thumbnail;type:varchar(512)" json:"thumbnail,omitempty"`
	Medium    string `gorm:"column:medium;type:varchar(512)" json:"medium,omitempty"`
	Large     string `gorm:"column:large;type:varchar(512)" json:"large,omitempty"`
}

// SyncState tracks how and when a record was last synchronized.
type SyncState struct {
	LastSyncAt    int64      `gorm:"column:last_sync_at;default:0" json:"lastSyncTimestamp"`
	MergeStrategy string     `gorm:"column:merge_strategy;type:varchar(32)" json:"mergeStrategy,omitempty"`
	Sources       StringList `gorm:"column:sources;type:json" json:"syncSources,omitempty"`
	PendingSync   bool       `gorm:"column:pending;default:0" json:"pendingSync"`
}

// StringList stores an ordered list of strings as a JSON column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *StringList) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
}

// Metadata stores the per-platform original fields as a JSON column.
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (m *Metadata) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into Metadata", value)
	}
}

// Record is the canonical book entity reconciled across platforms.
type Record struct {
	ID               string     `gorm:"primaryKey;column:id;type:varchar(128)" json:"id"`
	CrossPlatformID  string     `gorm:"column:cross_platform_id;type:varchar(64);index" json:"crossPlatformId"`
	Platform         string     `gorm:"column:platform;type:varchar(32)" json:"platform"`
	Title            string     `gorm:"column:title;type:varchar(512)" json:"title"`
	Authors          StringList `gorm:"column:authors;type:json" json:"authors"`
	ISBN             string     `gorm:"column:isbn;type:varchar(32)" json:"isbn,omitempty"`
	Cover            Cover      `gorm:"embedded;embeddedPrefix:cover_" json:"cover"`
	Progress         Progress   `gorm:"embedded;embeddedPrefix:progress_" json:"progress"`
	Status           Status     `gorm:"column:status;type:varchar(16);default:NOT_STARTED" json:"status"`
	Rating           float64    `gorm:"column:rating;default:0" json:"rating"`
	Tags             StringList `gorm:"column:tags;type:json" json:"tags,omitempty"`
	DataFingerprint  string     `gorm:"column:data_fingerprint;type:varchar(64)" json:"dataFingerprint"`
	PlatformMetadata Metadata   `gorm:"column:platform_metadata;type:json" json:"platformMetadata,omitempty"`
	Sync             SyncState  `gorm:"embedded;embeddedPrefix:sync_" json:"syncStatus"`
	ExtractedAt      int64      `gorm:"column:extracted_at;default:0" json:"extractedAt"`
}

func (Record) TableName() string {
	return "books"
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Authors = append(StringList(nil), r.Authors...)
	clone.Tags = append(StringList(nil), r.Tags...)
	clone.Sync.Sources = append(StringList(nil), r.Sync.Sources...)
	if r.PlatformMetadata != nil {
		clone.PlatformMetadata = make(Metadata, len(r.PlatformMetadata))
		for k, v := range r.PlatformMetadata {
			clone.PlatformMetadata[k] = v
		}
	}
	return &clone
}
