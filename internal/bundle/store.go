package bundle

import (
	"fmt"
)

// Store is an opaque key-value blob store. Put replaces any prior value at
// key; Get returns ErrNotFound when the key is empty.
type Store interface {
	Put(key string, blob []byte) error
	Get(key string) ([]byte, error)
}

// Save encodes b and overwrites the slot at key.
func Save(s Store, key string, b *Bundle) error {
	blob, err := Encode(b)
	if err != nil {
		return err
	}
	if err := s.Put(key, blob); err != nil {
		return fmt.Errorf("save bundle %q: %w", key, err)
	}
	return nil
}

// Load reads and decodes the bundle at key.
func Load(s Store, key string) (*Bundle, error) {
	blob, err := s.Get(key)
	if err != nil {
		return nil, fmt.Errorf("load bundle %q: %w", key, err)
	}
	return Decode(blob)
}

// MemoryStore is an in-process Store used by tests and dry runs.
type MemoryStore map[string][]byte

func (m MemoryStore) Put(key string, blob []byte) error {
	m[key] = append([]byte(nil), blob...)
	return nil
}

func (m MemoryStore) Get(key string) ([]byte, error) {
	blob, ok := m[key]
	if !ok {
		return nil, ErrNotFound
	}
	return blob, nil
}
