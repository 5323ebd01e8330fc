package store // committed key-value projection served by a replica.

import (
	"errors" // package for creating and handling error values.
)

var ErrorNotFound = errors.New("key not found") // returned when a get misses.

// Store holds the key-value map a replica's log projects onto. On the
// leader it reflects every accepted write, including uncommitted ones; on
// followers it reflects only committed entries (spec.md 3). The consensus
// event loop is single-threaded, so unlike the teacher's store this one
// carries no mutex - there is never a second goroutine touching it.
type Store struct {
	data map[string]string
}

func NewStore() *Store {
	return &Store{
		data: make(map[string]string),
	}
}

func (s *Store) Set(key string, value string) {
	s.data[key] = value
}

func (s *Store) Get(key string) (string, error) {
	val, ok := s.data[key]
	if !ok {
		return "", ErrorNotFound
	}
	return val, nil
}

// Len reports how many keys are currently held, used by the observability
// sidecar's /status endpoint.
func (s *Store) Len() int {
	return len(s.data)
}
