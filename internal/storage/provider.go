// Package storage defines the term meta key-value abstraction that schemas
// and document types are persisted through.
package storage

// Provider stores opaque values keyed by (term id, meta key).
type Provider interface {
	// Get returns the value stored under key for termID, or nil when absent.
	Get(termID int64, key string) ([]byte, error)
	// Set writes value under key for termID, replacing any previous value.
	Set(termID int64, key string, value []byte) error
	// Delete removes key for termID. Deleting an absent key is not an error.
	Delete(termID int64, key string) error
	// Find returns every term that holds key, with its value.
	Find(key string) (map[int64][]byte, error)
}
