// GCS blob store backend.
//
// Object generations serve as versions: the bucket must have object
// versioning enabled so that deletes retain noncurrent generations, and
// purges enumerate generations with a Versions listing and delete each one
// by generation number. GCS has no multi-object batch delete, so
// DeleteVersions issues one generation-conditioned delete per version; the
// loop is still treated as a single logical batch by callers.
//
// Credentials are resolved via Application Default Credentials
// (GOOGLE_APPLICATION_CREDENTIALS, gcloud auth, metadata server).

package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSVersion holds the identifying fields of one object generation.
type GCSVersion struct {
	Name        string
	Generation  int64
	ContentType string
	// Noncurrent is true when this generation has been superseded or
	// soft-deleted; it maps to a delete marker in Store terms.
	Noncurrent bool
}

// GCSAPI defines the subset of the GCS client interface that the blob store
// uses. This allows mocking in tests.
type GCSAPI interface {
	// Write stores data under the named object with the given content type.
	Write(ctx context.Context, name string, data []byte, contentType string) error
	// Read returns the data and content type of the live generation of the
	// named object.
	Read(ctx context.Context, name string) ([]byte, string, error)
	// ListGenerations lists every generation (live and noncurrent) under prefix.
	ListGenerations(ctx context.Context, prefix string) ([]GCSVersion, error)
	// DeleteGeneration permanently deletes one generation of the named object.
	DeleteGeneration(ctx context.Context, name string, generation int64) error
	// BucketAttrs probes the bucket for reachability.
	BucketAttrs(ctx context.Context) error
}

// realGCSClient wraps the official GCS client to satisfy GCSAPI.
type realGCSClient struct {
	client *gcs.Client
	bucket string
}

func (c *realGCSClient) Write(ctx context.Context, name string, data []byte, contentType string) error {
	w := c.client.Bucket(c.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (c *realGCSClient) Read(ctx context.Context, name string) ([]byte, string, error) {
	r, err := c.client.Bucket(c.bucket).Object(name).NewReader(ctx)
	if err != nil {
		return nil, "", err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", err
	}
	return data, r.Attrs.ContentType, nil
}

func (c *realGCSClient) ListGenerations(ctx context.Context, prefix string) ([]GCSVersion, error) {
	it := c.client.Bucket(c.bucket).Objects(ctx, &gcs.Query{
		Prefix:   prefix,
		Versions: true,
	})
	var out []GCSVersion
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, GCSVersion{
			Name:        attrs.Name,
			Generation:  attrs.Generation,
			ContentType: attrs.ContentType,
			Noncurrent:  !attrs.Deleted.IsZero(),
		})
	}
	return out, nil
}

func (c *realGCSClient) DeleteGeneration(ctx context.Context, name string, generation int64) error {
	return c.client.Bucket(c.bucket).Object(name).Generation(generation).Delete(ctx)
}

func (c *realGCSClient) BucketAttrs(ctx context.Context) error {
	_, err := c.client.Bucket(c.bucket).Attrs(ctx)
	return err
}

// GCSStore implements the Store interface against a versioned GCS bucket.
type GCSStore struct {
	// Bucket is the GCS bucket name.
	Bucket string
	// client is the GCS client (satisfying the GCSAPI interface).
	client GCSAPI
}

// NewGCSStore creates a GCSStore for the given bucket and verifies the
// bucket is reachable.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}

	s := &GCSStore{
		Bucket: bucket,
		client: &realGCSClient{client: client, bucket: bucket},
	}

	if err := s.client.BucketAttrs(ctx); err != nil {
		return nil, fmt.Errorf("cannot access GCS bucket %q: %w", bucket, err)
	}

	slog.Info("GCS blob store initialized", "bucket", bucket)
	return s, nil
}

// NewGCSStoreWithClient creates a GCSStore with a pre-configured client.
// This is primarily used for testing with mock clients.
func NewGCSStoreWithClient(bucket string, client GCSAPI) *GCSStore {
	return &GCSStore{Bucket: bucket, client: client}
}

// Put uploads data under key, creating a new generation.
func (s *GCSStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.client.Write(ctx, key, data, contentType); err != nil {
		return fmt.Errorf("uploading %s to GCS: %w", key, err)
	}
	return nil
}

// Get retrieves the live generation of key.
func (s *GCSStore) Get(ctx context.Context, key string) (*Object, error) {
	data, contentType, err := s.client.Read(ctx, key)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("getting %s from GCS: %w", key, err)
	}
	return &Object{Data: data, ContentType: contentType}, nil
}

// ListVersions enumerates every generation under prefix. Generation numbers
// become version ids.
func (s *GCSStore) ListVersions(ctx context.Context, prefix string) ([]Version, error) {
	gens, err := s.client.ListGenerations(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing generations under %q: %w", prefix, err)
	}
	out := make([]Version, 0, len(gens))
	for _, g := range gens {
		out = append(out, Version{
			Key:          g.Name,
			VersionID:    strconv.FormatInt(g.Generation, 10),
			DeleteMarker: g.Noncurrent,
		})
	}
	return out, nil
}

// DeleteVersions permanently removes the named generations one by one.
// Generations that no longer exist are skipped.
func (s *GCSStore) DeleteVersions(ctx context.Context, versions []Version) error {
	for _, v := range versions {
		gen, err := strconv.ParseInt(v.VersionID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid GCS generation %q for %s: %w", v.VersionID, v.Key, err)
		}
		if err := s.client.DeleteGeneration(ctx, v.Key, gen); err != nil {
			if errors.Is(err, gcs.ErrObjectNotExist) {
				continue
			}
			return fmt.Errorf("deleting %s generation %d: %w", v.Key, gen, err)
		}
	}
	return nil
}

// HealthCheck verifies that the bucket is accessible.
func (s *GCSStore) HealthCheck(ctx context.Context) error {
	return s.client.BucketAttrs(ctx)
}

// Ensure GCSStore implements Store at compile time.
var _ Store = (*GCSStore)(nil)
