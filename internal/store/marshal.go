package store

import (
	"encoding/json"
	"strconv"

	"github.com/coursekit/coursekit/internal/course"
)

// Values are stored as JSON text. Struct definitions fix the field order
// and the ValidationState string fixes the enum discriminants, so encoded
// records are stable across releases of the same schema.

func marshalRecord(rec course.TestRecord) ([]byte, error) {
	return json.Marshal(rec)
}

func unmarshalRecord(key string, value []byte) (course.TestRecord, error) {
	var rec course.TestRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return course.TestRecord{}, &Error{Code: CodeDecode, Key: key, Err: err}
	}
	return rec, nil
}

func marshalIndex(keys []string) ([]byte, error) {
	return json.Marshal(keys)
}

func unmarshalIndex(value []byte) ([]string, error) {
	var keys []string
	if err := json.Unmarshal(value, &keys); err != nil {
		return nil, &Error{Code: CodeDecode, Key: keyTests, Err: err}
	}
	return keys, nil
}

func marshalMetadata(md course.Metadata) ([]byte, error) {
	return json.Marshal(md)
}

func unmarshalMetadata(value []byte) (course.Metadata, error) {
	var md course.Metadata
	if err := json.Unmarshal(value, &md); err != nil {
		return course.Metadata{}, &Error{Code: CodeDecode, Key: keyMetadata, Err: err}
	}
	return md, nil
}

// Integers (the watermark and the resume cursor) are stored as decimal
// text.

func marshalInt(n int64) []byte {
	return []byte(strconv.FormatInt(n, 10))
}

func unmarshalInt(key string, value []byte) (int64, error) {
	n, err := strconv.ParseInt(string(value), 10, 64)
	if err != nil {
		return 0, &Error{Code: CodeDecode, Key: key, Err: err}
	}
	return n, nil
}
