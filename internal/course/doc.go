// Package course defines the course-definition model shared by the store,
// runner, validator and CLI: the parsed course tree, the durable test
// record types, identity keys and slug hashes, and the loader that
// validates definitions before decoding them.
package course
