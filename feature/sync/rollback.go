package sync

import (
	"context"
	"sync"

	"booksync/feature/book"
	"booksync/feature/compare"
)

// recorder wraps the library for one sync run and tracks every write
// that lands, so a cancelled job can undo its partial work.
type recorder struct {
	store Library

	mu       sync.Mutex
	previous map[string]*book.Record // id -> pre-update version
	deleted  map[string]*book.Record // id -> record planned for removal
	inserted []string
	updated  []*book.Record // pre-update versions actually overwritten
	removed  []*book.Record // records actually removed
}

func newRecorder(store Library) *recorder {
	return &recorder{
		store:    store,
		previous: map[string]*book.Record{},
		deleted:  map[string]*book.Record{},
	}
}

// prime captures the pre-apply versions the rollback restores from.
// It must run before the change set is applied through this recorder.
func (r *recorder) prime(set *compare.ChangeSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, mod := range set.Modified {
		if mod.Target != nil {
			r.previous[mod.ID] = mod.Target.Clone()
		}
	}
	for _, rec := range set.Deleted {
		r.deleted[rec.ID] = rec.Clone()
	}
}

func (r *recorder) InsertBatch(ctx context.Context, records []*book.Record) error {
	if err := r.store.InsertBatch(ctx, records); err != nil {
		return err
	}
	r.mu.Lock()
	for _, rec := range records {
		r.inserted = append(r.inserted, rec.ID)
	}
	r.mu.Unlock()
	return nil
}

func (r *recorder) UpdateBatch(ctx context.Context, records []*book.Record) error {
	if err := r.store.UpdateBatch(ctx, records); err != nil {
		return err
	}
	r.mu.Lock()
	for _, rec := range records {
		if prev, ok := r.previous[rec.ID]; ok {
			r.updated = append(r.updated, prev)
		}
	}
	r.mu.Unlock()
	return nil
}

func (r *recorder) RemoveBatch(ctx context.Context, ids []string) error {
	if err := r.store.RemoveBatch(ctx, ids); err != nil {
		return err
	}
	r.mu.Lock()
	for _, id := range ids {
		if prev, ok := r.deleted[id]; ok {
			r.removed = append(r.removed, prev)
		}
	}
	r.mu.Unlock()
	return nil
}

// rollback undoes the recorded writes in reverse order: removed records
// come back, overwritten records get their previous version, inserted
// records are deleted.
func (r *recorder) rollback(ctx context.Context) error {
	r.mu.Lock()
	inserted := append([]string(nil), r.inserted...)
	updated := append([]*book.Record(nil), r.updated...)
	removed := append([]*book.Record(nil), r.removed...)
	r.mu.Unlock()

	if len(removed) > 0 {
		if err := r.store.InsertBatch(ctx, removed); err != nil {
			return err
		}
	}
	if len(updated) > 0 {
		if err := r.store.UpdateBatch(ctx, updated); err != nil {
			return err
		}
	}
	if len(inserted) > 0 {
		if err := r.store.RemoveBatch(ctx, inserted); err != nil {
			return err
		}
	}
	return nil
}
