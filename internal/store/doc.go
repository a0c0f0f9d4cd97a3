// Package store is the persistent test registry. It keeps a keyed,
// durable record of every known test and its last outcome in an embedded
// SQLite database laid out as a key-value namespace: one logical tree per
// course-definition path, test identities as keys, plus a handful of
// reserved keys for the index, the reconciliation watermark, the resume
// cursor and the cached course metadata.
package store
