package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/coursekit/coursekit/internal/course"
)

// Reserved keys inside a course tree. Every other key is a test identity.
const (
	keyTimeLastModified = "time_last_modified"
	keyTests            = "tests"
	keyStaggered        = "staggered"
	keyMetadata         = "metadata"
)

var reservedKeys = map[string]struct{}{
	keyTimeLastModified: {},
	keyTests:            {},
	keyStaggered:        {},
	keyMetadata:         {},
}

// Registry is the durable, identity-keyed view of one course's tests.
type Registry struct {
	tree *Tree
}

// NewRegistry wraps the tree holding one course's state.
func NewRegistry(tree *Tree) *Registry {
	return &Registry{tree: tree}
}

// KeyedRecord pairs a record with the identity it is stored under.
type KeyedRecord struct {
	Key    string
	Record course.TestRecord
}

// ShouldReconcile compares the course file's modification time against the
// stored watermark. The watermark is rewritten on every call, making the
// refresh at-most-once per invocation rather than idempotent: callers must
// reconcile immediately when this returns true.
func (r *Registry) ShouldReconcile(ctx context.Context, coursePath string) (bool, error) {
	info, err := os.Stat(coursePath)
	if err != nil {
		return false, &Error{Code: CodeIO, Key: coursePath, Err: fmt.Errorf("stat course file: %w", err)}
	}
	modified := info.ModTime().Unix()

	stored, found := int64(0), false
	value, err := r.tree.Get(ctx, keyTimeLastModified)
	switch {
	case err == nil:
		stored, err = unmarshalInt(keyTimeLastModified, value)
		if err != nil {
			return false, err
		}
		found = true
	case !errors.Is(err, ErrKeyNotFound):
		return false, err
	}

	if err := r.tree.Put(ctx, keyTimeLastModified, marshalInt(modified)); err != nil {
		return false, err
	}

	return !found || modified > stored, nil
}

// Reconcile aligns the stored tests with a freshly parsed course
// definition. Identities present only in the stored index are deleted,
// identities present only in the plan are inserted fresh, and identities
// present in both keep their stored record untouched, validation state
// included. The index is rewritten to exactly the plan's identity set in
// plan order, and the resume cursor is reset.
//
// Writes are sequential single-key operations: a failure part-way leaves
// some keys reconciled and some not, but never a corrupt value.
func (r *Registry) Reconcile(ctx context.Context, plan []course.PlanEntry, md course.Metadata) error {
	value, err := marshalMetadata(md)
	if err != nil {
		return &Error{Code: CodeWrite, Key: keyMetadata, Err: err}
	}
	if err := r.tree.Put(ctx, keyMetadata, value); err != nil {
		return err
	}

	oldIndex, err := r.index(ctx)
	if err != nil {
		return err
	}

	inPlan := make(map[string]struct{}, len(plan))
	newIndex := make([]string, 0, len(plan))
	for _, entry := range plan {
		inPlan[entry.Key] = struct{}{}
		newIndex = append(newIndex, entry.Key)
	}

	for _, key := range oldIndex {
		if _, ok := inPlan[key]; !ok {
			if err := r.tree.Delete(ctx, key); err != nil {
				return err
			}
		}
	}

	stored := make(map[string]struct{}, len(oldIndex))
	for _, key := range oldIndex {
		stored[key] = struct{}{}
	}
	for _, entry := range plan {
		if _, ok := stored[entry.Key]; ok {
			continue
		}
		value, err := marshalRecord(entry.Record)
		if err != nil {
			return &Error{Code: CodeWrite, Key: entry.Key, Err: err}
		}
		if err := r.tree.Put(ctx, entry.Key, value); err != nil {
			return err
		}
	}

	indexValue, err := marshalIndex(newIndex)
	if err != nil {
		return &Error{Code: CodeWrite, Key: keyTests, Err: err}
	}
	if err := r.tree.Put(ctx, keyTests, indexValue); err != nil {
		return err
	}

	return r.SetResumeCursor(ctx, 1)
}

// FetchAll returns every test in index order. A record that fails to
// decode aborts the whole fetch: running a subset around a corrupt record
// would be meaningless.
func (r *Registry) FetchAll(ctx context.Context) ([]KeyedRecord, error) {
	index, err := r.index(ctx)
	if err != nil {
		return nil, err
	}
	return r.fetchKeys(ctx, index)
}

// FetchWindow returns the first n index entries, for resumable staggered
// execution.
func (r *Registry) FetchWindow(ctx context.Context, n int) ([]KeyedRecord, error) {
	index, err := r.index(ctx)
	if err != nil {
		return nil, err
	}
	if n < len(index) {
		index = index[:n]
	}
	return r.fetchKeys(ctx, index)
}

// FetchMatching returns every test whose identity starts with prefix, in
// key order. Reserved keys are never candidates.
func (r *Registry) FetchMatching(ctx context.Context, prefix string) ([]KeyedRecord, error) {
	entries, err := r.tree.ScanPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var records []KeyedRecord
	for _, kv := range entries {
		if _, ok := reservedKeys[kv.Key]; ok {
			continue
		}
		rec, err := unmarshalRecord(kv.Key, kv.Value)
		if err != nil {
			return nil, err
		}
		records = append(records, KeyedRecord{Key: kv.Key, Record: rec})
	}
	return records, nil
}

// RecordOutcome updates a single record's validation state. A record that
// vanished between fetch and update is a hard error, not a retry: the
// store is not expected to be shared.
func (r *Registry) RecordOutcome(ctx context.Context, key string, passed bool) error {
	return r.tree.Update(ctx, key, func(value []byte) ([]byte, error) {
		rec, err := unmarshalRecord(key, value)
		if err != nil {
			return nil, err
		}
		if passed {
			rec.Passed = course.StatePass
		} else {
			rec.Passed = course.StateFail
		}
		next, err := marshalRecord(rec)
		if err != nil {
			return nil, &Error{Code: CodeWrite, Key: key, Err: err}
		}
		return next, nil
	})
}

// ResumeCursor returns the persisted staggered cursor, defaulting to 1
// when none is stored yet.
func (r *Registry) ResumeCursor(ctx context.Context) (int, error) {
	value, err := r.tree.Get(ctx, keyStaggered)
	if errors.Is(err, ErrKeyNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := unmarshalInt(keyStaggered, value)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// SetResumeCursor persists the staggered cursor.
func (r *Registry) SetResumeCursor(ctx context.Context, n int) error {
	return r.tree.Put(ctx, keyStaggered, marshalInt(int64(n)))
}

// Metadata returns the cached course metadata.
func (r *Registry) Metadata(ctx context.Context) (course.Metadata, error) {
	value, err := r.tree.Get(ctx, keyMetadata)
	if err != nil {
		return course.Metadata{}, err
	}
	return unmarshalMetadata(value)
}

// index reads the stored test index; a missing index reads as empty,
// which is the first-ever-reconciliation case.
func (r *Registry) index(ctx context.Context) ([]string, error) {
	value, err := r.tree.Get(ctx, keyTests)
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return unmarshalIndex(value)
}

func (r *Registry) fetchKeys(ctx context.Context, keys []string) ([]KeyedRecord, error) {
	records := make([]KeyedRecord, 0, len(keys))
	for _, key := range keys {
		value, err := r.tree.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		rec, err := unmarshalRecord(key, value)
		if err != nil {
			return nil, err
		}
		records = append(records, KeyedRecord{Key: key, Record: rec})
	}
	return records, nil
}
