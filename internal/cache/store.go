package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	ErrInvalidKey = errors.New("invalid cache key")
	ErrNotFound   = errors.New("cache entry not found")
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Store keeps JSON documents as <dir>/<key>.json. Entries never expire.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) path(key string) (string, error) {
	if !keyPattern.MatchString(key) || strings.Trim(key, ".") == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

// Save writes v under key, creating the cache directory when needed.
func (s *Store) Save(key string, v any) error {
	filePath, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache entry %s: %w", key, err)
	}

	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filePath)
}

// Load decodes the entry for key into v.
func (s *Store) Load(key string, v any) error {
	filePath, err := s.path(key)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// LoadRaw returns the stored JSON document for key.
func (s *Store) LoadRaw(key string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := s.Load(key, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Keys lists stored keys in lexical order.
func (s *Store) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(keys)
	return keys, nil
}
