package state

import "sync"

// Store owns the current State of one run and serializes every write.
type Store struct {
	mu      sync.Mutex
	schema  *Schema
	current State
}

// NewStore returns a store seeded by schema.
func NewStore(schema *Schema) *Store {
	return &Store{schema: schema, current: schema.Seed()}
}

// Schema returns the schema used for merges.
func (s *Store) Schema() *Schema {
	return s.schema
}

// Snapshot returns the current state. The returned value never changes.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Merge applies update. On error the current state is left unchanged.
func (s *Store) Merge(update Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.schema.Merge(s.current, update)
	if err != nil {
		return err
	}
	s.current = next
	return nil
}

// AppendError appends one entry to the error log.
func (s *Store) AppendError(entry ErrorEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The error log is always declared, so this merge cannot fail.
	next, _ := s.schema.Merge(s.current, Update{ErrorsField: entry})
	s.current = next
}
