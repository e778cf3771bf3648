package blob

import (
	"context"
	"fmt"
	"sync"
)

// memVersion is a single stored revision of a key in the in-memory store.
type memVersion struct {
	id           string
	data         []byte
	contentType  string
	deleteMarker bool
}

// MemoryStore implements the Store interface with in-process version chains.
// Every Put appends a version and reads return the newest non-marker
// version, mirroring a versioning-enabled object store. Used for tests and
// local development.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]memVersion
	seq     int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]memVersion)}
}

// nextVersionID returns a monotonically increasing version id.
// Caller must hold mu.
func (s *MemoryStore) nextVersionID() string {
	s.seq++
	return fmt.Sprintf("v%06d", s.seq)
}

// Put appends a new version under key.
func (s *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append(s.objects[key], memVersion{
		id:          s.nextVersionID(),
		data:        cp,
		contentType: contentType,
	})
	return nil
}

// PutDeleteMarker appends a delete marker under key, simulating what a plain
// (non-purging) delete leaves behind in a versioned store.
func (s *MemoryStore) PutDeleteMarker(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append(s.objects[key], memVersion{
		id:           s.nextVersionID(),
		deleteMarker: true,
	})
}

// Get returns the newest version of key, or ErrNotFound if the key has no
// versions or its newest version is a delete marker.
func (s *MemoryStore) Get(ctx context.Context, key string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := s.objects[key]
	if len(chain) == 0 {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	newest := chain[len(chain)-1]
	if newest.deleteMarker {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}

	data := make([]byte, len(newest.data))
	copy(data, newest.data)
	return &Object{Data: data, ContentType: newest.contentType}, nil
}

// ListVersions enumerates every version under prefix, oldest first per key.
func (s *MemoryStore) ListVersions(ctx context.Context, prefix string) ([]Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Version
	for key, chain := range s.objects {
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		for _, v := range chain {
			out = append(out, Version{
				Key:          key,
				VersionID:    v.id,
				DeleteMarker: v.deleteMarker,
			})
		}
	}
	return out, nil
}

// DeleteVersions removes the named versions. Unknown versions are ignored.
func (s *MemoryStore) DeleteVersions(ctx context.Context, versions []Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, target := range versions {
		chain := s.objects[target.Key]
		for i, v := range chain {
			if v.id == target.VersionID {
				chain = append(chain[:i], chain[i+1:]...)
				break
			}
		}
		if len(chain) == 0 {
			delete(s.objects, target.Key)
		} else {
			s.objects[target.Key] = chain
		}
	}
	return nil
}

// HealthCheck always succeeds.
func (s *MemoryStore) HealthCheck(ctx context.Context) error {
	return nil
}

// Ensure MemoryStore implements Store at compile time.
var _ Store = (*MemoryStore)(nil)
