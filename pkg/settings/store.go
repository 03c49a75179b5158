package settings

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Provider gives read access to render settings. Version increases whenever
// any setting changes.
type Provider interface {
	Version() int
	Lookup(key string) (any, bool)
	Keys() []string
}

// Store is a versioned render settings store backed by viper. Lookups are case
// insensitive; Keys reports keys set through Set or SetAll with their
// original spelling. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	v       *viper.Viper
	names   map[string]string // lower case key -> key as set
	version int
}

// NewStore creates an empty settings store
func NewStore() *Store {
	return &Store{v: viper.New(), names: make(map[string]string)}
}

func (s *Store) setLocked(key string, value any) {
	s.v.Set(key, value)
	s.names[strings.ToLower(key)] = key
}

// Version implements Provider
func (s *Store) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Set changes a single setting
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value)
	s.version++
}

// SetAll changes several settings as one update
func (s *Store) SetAll(values map[string]any) {
	if len(values) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, value := range values {
		s.setLocked(key, value)
	}
	s.version++
}

// MergeFile merges a settings file (any format viper understands, by extension)
func (s *Store) MergeFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.v.SetConfigFile(path)
	if err := s.v.MergeInConfig(); err != nil {
		return fmt.Errorf("failed to read settings file %s: %w", path, err)
	}
	s.version++
	return nil
}

// MergeYAML merges YAML encoded settings
func (s *Store) MergeYAML(r io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.v.SetConfigType("yaml")
	if err := s.v.MergeConfig(r); err != nil {
		return fmt.Errorf("failed to parse settings: %w", err)
	}
	s.version++
	return nil
}

// Lookup implements Provider. Unset keys and explicit nil values report false.
func (s *Store) Lookup(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.v.IsSet(key) {
		return nil, false
	}
	value := s.v.Get(key)
	return value, value != nil
}

// Keys implements Provider. Nested maps are flattened with '.' and the
// result is sorted. Keys only read from files are lower case.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.v.AllKeys()
	for i, key := range keys {
		if name, ok := s.names[key]; ok {
			keys[i] = name
		}
	}
	sort.Strings(keys)
	return keys
}

// WithPrefix returns the settings whose keys start with prefix, ignoring
// case, keyed by the remainder of the key as it was set
func WithPrefix(p Provider, prefix string) map[string]any {
	values := make(map[string]any)
	for _, key := range p.Keys() {
		if len(key) < len(prefix) || !strings.EqualFold(key[:len(prefix)], prefix) {
			continue
		}
		if value, ok := p.Lookup(key); ok {
			values[key[len(prefix):]] = value
		}
	}
	return values
}
