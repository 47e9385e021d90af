package session

import (
	"strconv"
	"strings"
	"sync"

	"github.com/Digital-Defiance/walletsession/storage"
)

// Setting is a key/value pair synchronized with durable storage. The stored
// value is read once at construction; a missing or unparsable entry falls
// back to the default without being written back. Every Set updates the
// in-memory value and writes through to storage.
type Setting[T any] struct {
	store  storage.Store
	key    string
	def    T
	format func(T) string

	mu    sync.Mutex
	value T
}

func newSetting[T any](store storage.Store, key string, def T, parse func(string) (T, error), format func(T) string) *Setting[T] {
	s := &Setting[T]{store: store, key: key, def: def, format: format}
	s.value = def
	if raw, err := store.Get(key); err == nil {
		if v, err := parse(raw); err == nil {
			s.value = v
		}
	}
	return s
}

// NewIntSetting creates a numeric setting. Corrupt stored strings fall back
// to the default rather than failing.
func NewIntSetting(store storage.Store, key string, def int) *Setting[int] {
	return newSetting(store, key, def,
		func(raw string) (int, error) { return strconv.Atoi(strings.TrimSpace(raw)) },
		strconv.Itoa,
	)
}

// NewStringSetting creates a string setting.
func NewStringSetting(store storage.Store, key string, def string) *Setting[string] {
	return newSetting(store, key, def,
		func(raw string) (string, error) { return raw, nil },
		func(v string) string { return v },
	)
}

// Value returns the current in-memory value.
func (s *Setting[T]) Value() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Default returns the fallback value used when storage has no entry.
func (s *Setting[T]) Default() T {
	return s.def
}

// Set updates the in-memory value and synchronously writes through to storage.
func (s *Setting[T]) Set(v T) error {
	s.mu.Lock()
	s.value = v
	s.mu.Unlock()
	return s.store.Set(s.key, s.format(v))
}
