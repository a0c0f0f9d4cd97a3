package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Tree is one logical key-value namespace inside the store. Keys are
// ordered lexicographically, which ScanPrefix relies on.
type Tree struct {
	db   *sql.DB
	name string
}

// ErrKeyNotFound is returned by Get for absent keys.
var ErrKeyNotFound = errors.New("key not found")

// Get returns the value stored at key, or ErrKeyNotFound wrapped in a
// read error if the key is absent.
func (t *Tree) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := t.db.QueryRowContext(ctx, `
		SELECT value FROM kv WHERE tree = ? AND key = ?
	`, t.name, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &Error{Code: CodeRead, Key: key, Err: ErrKeyNotFound}
	}
	if err != nil {
		return nil, &Error{Code: CodeRead, Key: key, Err: err}
	}
	return value, nil
}

// Put inserts or replaces the value at key.
func (t *Tree) Put(ctx context.Context, key string, value []byte) error {
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO kv (tree, key, value) VALUES (?, ?, ?)
		ON CONFLICT(tree, key) DO UPDATE SET value = excluded.value
	`, t.name, key, value)
	if err != nil {
		return &Error{Code: CodeWrite, Key: key, Err: err}
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (t *Tree) Delete(ctx context.Context, key string) error {
	_, err := t.db.ExecContext(ctx, `
		DELETE FROM kv WHERE tree = ? AND key = ?
	`, t.name, key)
	if err != nil {
		return &Error{Code: CodeWrite, Key: key, Err: err}
	}
	return nil
}

// KV is one scanned entry.
type KV struct {
	Key   string
	Value []byte
}

// ScanPrefix returns every entry whose key starts with prefix, in key
// order.
func (t *Tree) ScanPrefix(ctx context.Context, prefix string) ([]KV, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT key, value FROM kv
		WHERE tree = ? AND key >= ? AND key < ?
		ORDER BY key ASC
	`, t.name, prefix, prefix+"￿")
	if err != nil {
		return nil, &Error{Code: CodeRead, Key: prefix, Err: err}
	}
	defer rows.Close()

	var entries []KV
	for rows.Next() {
		var kv KV
		if err := rows.Scan(&kv.Key, &kv.Value); err != nil {
			return nil, &Error{Code: CodeRead, Key: prefix, Err: err}
		}
		entries = append(entries, kv)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Code: CodeRead, Key: prefix, Err: fmt.Errorf("iterate scan: %w", err)}
	}
	return entries, nil
}

// Update performs a transactional read-modify-write of a single key. The
// mutator receives the current value and returns the replacement. A
// missing key surfaces as CodeMissingRecord: the caller fetched this key
// earlier, so absence means concurrent external mutation.
func (t *Tree) Update(ctx context.Context, key string, mutate func([]byte) ([]byte, error)) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return &Error{Code: CodeWrite, Key: key, Err: err}
	}
	defer tx.Rollback()

	var value []byte
	err = tx.QueryRowContext(ctx, `
		SELECT value FROM kv WHERE tree = ? AND key = ?
	`, t.name, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return &Error{Code: CodeMissingRecord, Key: key, Err: ErrKeyNotFound}
	}
	if err != nil {
		return &Error{Code: CodeRead, Key: key, Err: err}
	}

	next, err := mutate(value)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE kv SET value = ? WHERE tree = ? AND key = ?
	`, next, t.name, key); err != nil {
		return &Error{Code: CodeWrite, Key: key, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &Error{Code: CodeWrite, Key: key, Err: err}
	}
	return nil
}
