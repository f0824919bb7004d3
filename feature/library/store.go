package library

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"booksync/core/errs"
	"booksync/feature/book"
)

// Store persists the canonical book library in MySQL through GORM. It
// is the write target of a sync run and the read side for comparisons.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// AutoMigrate creates or updates the books table.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&book.Record{}); err != nil {
		return errs.Fatal(errs.CodeStorage, err, "migrating books table")
	}
	return nil
}

// InsertBatch writes new records in one statement. Records that already
// exist make the whole batch fail.
func (s *Store) InsertBatch(ctx context.Context, records []*book.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(records).Error; err != nil {
		return classify(err, "inserting record batch")
	}
	return nil
}

// UpdateBatch saves full rows for existing records inside one
// transaction, so a failing record rolls back the whole batch.
func (s *Store) UpdateBatch(ctx context.Context, records []*book.Record) error {
	if len(records) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range records {
			if err := tx.Save(r).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return classify(err, "updating record batch")
	}
	return nil
}

// UpsertBatch inserts records, replacing existing rows on id collision.
func (s *Store) UpsertBatch(ctx context.Context, records []*book.Record) error {
	if len(records) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(records).Error
	if err != nil {
		return classify(err, "upserting record batch")
	}
	return nil
}

// RemoveBatch deletes the given record ids in one statement.
func (s *Store) RemoveBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Delete(&book.Record{}, "id IN ?", ids).Error; err != nil {
		return classify(err, "removing record batch")
	}
	return nil
}

// List returns every record in the library, ordered by id for
// deterministic comparisons.
func (s *Store) List(ctx context.Context) ([]*book.Record, error) {
	records := []*book.Record{}
	if err := s.db.WithContext(ctx).Order("id").Find(&records).Error; err != nil {
		return nil, classify(err, "listing records")
	}
	return records, nil
}

// ListByPlatform returns the records extracted from one platform.
func (s *Store) ListByPlatform(ctx context.Context, platform string) ([]*book.Record, error) {
	records := []*book.Record{}
	err := s.db.WithContext(ctx).
		Where("platform = ?", platform).
		Order("id").
		Find(&records).Error
	if err != nil {
		return nil, classify(err, "listing records for platform %s", platform)
	}
	return records, nil
}

// Get loads one record by id.
func (s *Store) Get(ctx context.Context, id string) (*book.Record, error) {
	var record book.Record
	err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.Record(errs.CodeBook, "id", "record %s not found", id)
	}
	if err != nil {
		return nil, classify(err, "loading record %s", id)
	}
	return &record, nil
}

// Count returns the number of records in the library.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&book.Record{}).Count(&n).Error; err != nil {
		return 0, classify(err, "counting records")
	}
	return n, nil
}

// classify wraps a GORM error with the kind retry logic keys on.
// Context expiry is a timeout, everything else from the driver is a
// transient storage failure.
func classify(err error, format string, args ...any) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Transient(errs.CodeTimeout, err, format, args...)
	}
	return errs.Transient(errs.CodeStorage, err, format, args...)
}
