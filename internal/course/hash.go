package course

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// slugSize is the digest length kept for slugs. Slugs are meant to be
// short enough to eyeball in a course file, not collision-proof.
const slugSize = 2

// normalize applies NFC so that visually identical names hash and key
// identically regardless of how the editor encoded them.
func normalize(s string) string {
	return norm.NFC.String(s)
}

// Hash computes the identity hash over a name path given in root-to-leaf
// order: the hex form of the first slugSize bytes of SHA-256 over the
// NFC-normalized concatenation.
func Hash(names ...string) string {
	var phrase strings.Builder
	for _, name := range names {
		phrase.WriteString(normalize(name))
	}
	sum := sha256.Sum256([]byte(phrase.String()))
	return hex.EncodeToString(sum[:slugSize])
}

// SlugFor returns the declared-slug form of Hash.
func SlugFor(names ...string) string {
	return "0x" + Hash(names...)
}

// IdentityKey builds a store key from a name path given in leaf-to-root
// order. Keys are the literal lowercase concatenation of the normalized
// names: two tests are the same entity iff their full name paths are
// identical, and leaf-first keys make "run everything under this path" a
// plain prefix scan.
func IdentityKey(leafToRoot ...string) string {
	var key strings.Builder
	for _, name := range leafToRoot {
		key.WriteString(strings.ToLower(normalize(name)))
	}
	return key.String()
}

// MatchPrefix converts a user-supplied slash-separated name path (given
// root-to-leaf, e.g. "lesson/suite/test") into the key prefix that selects
// every test under that path.
func MatchPrefix(path string) string {
	parts := strings.Split(path, "/")
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return IdentityKey(parts...)
}
