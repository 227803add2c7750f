// Package fixtures serves the demo data files behind the status, alerts,
// alternatives and bulletins endpoints.
package fixtures

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bluele/gcache"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when the fixture file does not exist.
var ErrNotFound = errors.New("fixture not found")

// Repository reads fixture documents from a directory. Files may be JSON or
// YAML; both are decoded with the YAML decoder.
type Repository struct {
	dir   string
	cache gcache.Cache
}

func NewRepository(dir string, ttl time.Duration) *Repository {
	r := &Repository{dir: dir}
	b := gcache.New(64).LRU().LoaderFunc(func(key interface{}) (interface{}, error) {
		return r.read(key.(string))
	})
	if ttl > 0 {
		b = b.Expiration(ttl)
	}
	r.cache = b.Build()
	return r
}

// Load returns the named fixture's top-level object. Every call returns a
// fresh document, so callers may modify it.
func (r *Repository) Load(name string) (map[string]any, error) {
	doc := map[string]any{}
	if err := r.Decode(name, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadIfExists is Load that reports a missing file as ok=false instead of an error.
func (r *Repository) LoadIfExists(name string) (map[string]any, bool, error) {
	doc, err := r.Load(name)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// Decode unmarshals the named fixture into v. Struct fields need yaml tags.
func (r *Repository) Decode(name string, v any) error {
	if filepath.Base(name) != name || name == "." || name == ".." {
		return fmt.Errorf("invalid fixture name %q", name)
	}
	raw, err := r.cache.Get(name)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(raw.([]byte), v); err != nil {
		return fmt.Errorf("decode fixture %s: %w", name, err)
	}
	return nil
}

func (r *Repository) read(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(r.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return data, err
}
