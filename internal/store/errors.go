package store

import (
	"errors"
	"fmt"
)

// Code categorizes store failures. The taxonomy is deliberately small:
// nothing in the store is retried, so a code only needs to tell the caller
// whether the problem is the environment (IO), the data (decode), or a
// record that vanished under us.
type Code string

const (
	// CodeIO marks open/stat failures. Fatal before any test runs.
	CodeIO Code = "store_io"

	// CodeRead marks failed reads of existing keys.
	CodeRead Code = "store_read"

	// CodeWrite marks failed inserts or deletes.
	CodeWrite Code = "store_write"

	// CodeDecode marks a stored value that no longer deserializes. A
	// corrupt record aborts the whole fetch that found it.
	CodeDecode Code = "store_decode"

	// CodeMissingRecord marks a record that disappeared between fetch and
	// update, which means something else mutated the store.
	CodeMissingRecord Code = "store_missing_record"
)

// Error is a store failure tagged with its category and the key involved.
type Error struct {
	Code Code
	Key  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: key %q: %v", e.Code, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: key %q", e.Code, e.Key)
}

func (e *Error) Unwrap() error { return e.Err }

// HasCode reports whether err is a store error with the given code.
// Handles wrapped errors via errors.As.
func HasCode(err error, code Code) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsDecodeError reports whether err is a corrupt-record failure.
func IsDecodeError(err error) bool { return HasCode(err, CodeDecode) }

// IsMissingRecord reports whether err is a vanished-record failure.
func IsMissingRecord(err error) bool { return HasCode(err, CodeMissingRecord) }
