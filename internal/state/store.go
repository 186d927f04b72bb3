package state

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"unicode/utf8"
)

const (
	// MaxKeyLen is the longest key the store accepts, in characters.
	MaxKeyLen = 64
	// MaxValueLen is the longest value the store accepts, in characters.
	MaxValueLen = 1000
)

var (
	ErrInvalidKey   = errors.New("Key must be between 1 and 64 characters")
	ErrInvalidValue = errors.New("Value must be less than 1000 characters")

	// ErrLock matches any *LockError via errors.Is.
	ErrLock = errors.New("state lock error")
)

// LockError reports that the store can no longer be locked safely because a
// panic escaped while a previous caller held the lock.
type LockError struct {
	Cause any
}

func (e *LockError) Error() string {
	return fmt.Sprintf("State lock error: poisoned lock: %v", e.Cause)
}

func (e *LockError) Is(target error) bool { return target == ErrLock }

// Store is a process-wide string->string map. Every operation takes the same
// mutex for its whole duration, so readers never observe a partial update.
// The store enforces length limits only; key charset is a caller policy.
type Store struct {
	mu       sync.Mutex
	data     map[string]string
	poisoned *LockError
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{data: make(map[string]string)}
}

// lock acquires the mutex, failing if the store has been poisoned.
func (s *Store) lock() error {
	s.mu.Lock()
	if s.poisoned != nil {
		err := s.poisoned
		s.mu.Unlock()
		return err
	}
	return nil
}

// Set inserts or overwrites key.
func (s *Store) Set(key, value string) error {
	if n := utf8.RuneCountInString(key); n == 0 || n > MaxKeyLen {
		return ErrInvalidKey
	}
	if utf8.RuneCountInString(value) > MaxValueLen {
		return ErrInvalidValue
	}

	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	s.data[key] = value
	return nil
}

// Get returns the value for key and whether it was present.
func (s *Store) Get(key string) (string, bool, error) {
	if err := s.lock(); err != nil {
		return "", false, err
	}
	defer s.mu.Unlock()

	v, ok := s.data[key]
	return v, ok, nil
}

// List returns a copy of the whole map. Later mutations do not affect it.
func (s *Store) List() (map[string]string, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	return maps.Clone(s.data), nil
}

// Remove deletes key and reports whether it existed.
func (s *Store) Remove(key string) (bool, error) {
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		return false, nil
	}
	delete(s.data, key)
	return true, nil
}

// Clear removes every entry.
func (s *Store) Clear() error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	clear(s.data)
	return nil
}

// Size returns the number of entries.
func (s *Store) Size() (int, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	return len(s.data), nil
}

// Update runs fn with exclusive access to the underlying map. Limits are not
// checked. If fn panics the store is poisoned: the panic is re-raised and every
// later call fails with a *LockError.
func (s *Store) Update(fn func(m map[string]string)) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			s.poisoned = &LockError{Cause: r}
			s.mu.Unlock()
			panic(r)
		}
		s.mu.Unlock()
	}()

	fn(s.data)
	return nil
}
