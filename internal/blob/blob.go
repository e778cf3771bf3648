// Package blob defines the interface and implementations for Invoicedeck's
// image blob storage layer.
//
// The backing object stores are versioned: a plain delete only writes a
// delete marker and old versions stay retrievable by version id. Every
// delete in this package therefore follows enumerate-then-purge: list all
// versions under the target, then issue one batched delete naming every
// key+versionId pair. An empty listing counts as success, which makes
// purges idempotent.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no live (non-delete-marker) version.
var ErrNotFound = errors.New("blob not found")

// Version identifies a single stored revision of a key, including delete
// markers. A key is only fully gone once every version under it is deleted.
type Version struct {
	Key          string
	VersionID    string
	DeleteMarker bool
}

// Object holds the data and content type of a retrieved blob.
type Object struct {
	Data        []byte
	ContentType string
}

// Store defines the operations the coordinator needs from a versioned object
// store. Implementations must be safe for concurrent use and stateless
// between calls; retries are left to the backend SDK.
type Store interface {
	// Put writes data under key with the given content type, creating a new
	// version if the key already exists.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get retrieves the newest live version of key. Returns ErrNotFound if
	// the key does not exist or its newest version is a delete marker.
	Get(ctx context.Context, key string) (*Object, error)

	// ListVersions enumerates every version (including delete markers) whose
	// key starts with prefix.
	ListVersions(ctx context.Context, prefix string) ([]Version, error)

	// DeleteVersions permanently removes the named versions in one batched
	// call. Versions that no longer exist are ignored.
	DeleteVersions(ctx context.Context, versions []Version) error

	// HealthCheck verifies that the backing store is reachable.
	HealthCheck(ctx context.Context) error
}

// PurgeKey removes every version stored under exactly key. Returns the number
// of versions deleted; zero with a nil error means the key was already gone.
func PurgeKey(ctx context.Context, s Store, key string) (int, error) {
	versions, err := s.ListVersions(ctx, key)
	if err != nil {
		return 0, err
	}
	// Prefix listing also matches longer keys (Banner1.png vs Banner10.png);
	// keep only exact matches.
	exact := versions[:0]
	for _, v := range versions {
		if v.Key == key {
			exact = append(exact, v)
		}
	}
	if len(exact) == 0 {
		return 0, nil
	}
	if err := s.DeleteVersions(ctx, exact); err != nil {
		return 0, err
	}
	return len(exact), nil
}

// PurgePrefix removes every version stored under the given key prefix.
// Returns the number of versions deleted.
func PurgePrefix(ctx context.Context, s Store, prefix string) (int, error) {
	versions, err := s.ListVersions(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return 0, nil
	}
	if err := s.DeleteVersions(ctx, versions); err != nil {
		return 0, err
	}
	return len(versions), nil
}
