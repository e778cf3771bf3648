package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// mockVersion is one stored revision in the mock S3 client.
type mockVersion struct {
	versionID    string
	data         []byte
	contentType  string
	deleteMarker bool
}

// mockS3Client implements S3API with full version chains, the way a
// versioning-enabled bucket behaves.
type mockS3Client struct {
	versions map[string][]mockVersion
	nextID   int

	// listPageSize forces ListObjectVersions pagination when > 0.
	listPageSize int
	// failDelete makes DeleteObjects return an error.
	failDelete bool
	// deleteObjectsCalls counts DeleteObjects invocations.
	deleteObjectsCalls int
}

func newMockS3Client() *mockS3Client {
	return &mockS3Client{versions: make(map[string][]mockVersion)}
}

func (m *mockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(params.Key)
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.nextID++
	m.versions[key] = append(m.versions[key], mockVersion{
		versionID:   fmt.Sprintf("ver%04d", m.nextID),
		data:        data,
		contentType: aws.ToString(params.ContentType),
	})
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(params.Key)
	chain := m.versions[key]
	if len(chain) == 0 || chain[len(chain)-1].deleteMarker {
		return nil, &mockAPIError{code: "NoSuchKey", message: "The specified key does not exist.", httpStatus: 404}
	}
	newest := chain[len(chain)-1]
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(string(newest.data))),
		ContentLength: aws.Int64(int64(len(newest.data))),
		ContentType:   aws.String(newest.contentType),
	}, nil
}

func (m *mockS3Client) ListObjectVersions(ctx context.Context, params *s3.ListObjectVersionsInput, optFns ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error) {
	prefix := aws.ToString(params.Prefix)

	type flat struct {
		key string
		v   mockVersion
	}
	var all []flat
	keys := make([]string, 0, len(m.versions))
	for k := range m.versions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		for _, v := range m.versions[k] {
			all = append(all, flat{key: k, v: v})
		}
	}

	// Resume after the marker pair, if set.
	start := 0
	if params.KeyMarker != nil {
		marker := aws.ToString(params.KeyMarker) + "/" + aws.ToString(params.VersionIdMarker)
		for i, f := range all {
			if f.key+"/"+f.v.versionID == marker {
				start = i + 1
				break
			}
		}
	}

	end := len(all)
	truncated := false
	if m.listPageSize > 0 && start+m.listPageSize < end {
		end = start + m.listPageSize
		truncated = true
	}

	out := &s3.ListObjectVersionsOutput{IsTruncated: aws.Bool(truncated)}
	for _, f := range all[start:end] {
		if f.v.deleteMarker {
			out.DeleteMarkers = append(out.DeleteMarkers, types.DeleteMarkerEntry{
				Key:       aws.String(f.key),
				VersionId: aws.String(f.v.versionID),
			})
		} else {
			out.Versions = append(out.Versions, types.ObjectVersion{
				Key:       aws.String(f.key),
				VersionId: aws.String(f.v.versionID),
			})
		}
	}
	if truncated {
		last := all[end-1]
		out.NextKeyMarker = aws.String(last.key)
		out.NextVersionIdMarker = aws.String(last.v.versionID)
	}
	return out, nil
}

func (m *mockS3Client) DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	m.deleteObjectsCalls++
	if m.failDelete {
		return nil, &mockAPIError{code: "InternalError", message: "boom", httpStatus: 500}
	}
	for _, obj := range params.Delete.Objects {
		key := aws.ToString(obj.Key)
		vid := aws.ToString(obj.VersionId)
		chain := m.versions[key]
		for i, v := range chain {
			if v.versionID == vid {
				chain = append(chain[:i], chain[i+1:]...)
				break
			}
		}
		if len(chain) == 0 {
			delete(m.versions, key)
		} else {
			m.versions[key] = chain
		}
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func (m *mockS3Client) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

// markDeleted appends a delete marker, simulating a plain DeleteObject call.
func (m *mockS3Client) markDeleted(key string) {
	m.nextID++
	m.versions[key] = append(m.versions[key], mockVersion{
		versionID:    fmt.Sprintf("ver%04d", m.nextID),
		deleteMarker: true,
	})
}

// mockAPIError implements smithy.APIError for testing.
type mockAPIError struct {
	code       string
	message    string
	httpStatus int
}

func (e *mockAPIError) Error() string                 { return fmt.Sprintf("%s: %s", e.code, e.message) }
func (e *mockAPIError) ErrorCode() string             { return e.code }
func (e *mockAPIError) ErrorMessage() string          { return e.message }
func (e *mockAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }
func (e *mockAPIError) HTTPStatusCode() int           { return e.httpStatus }

func TestS3PutGet(t *testing.T) {
	mock := newMockS3Client()
	store := NewS3StoreWithClient("test-bucket", mock)
	ctx := context.Background()

	if err := store.Put(ctx, "Clients/c1/2026-01/1/Banner1.png", []byte("data"), "image/png"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	obj, err := store.Get(ctx, "Clients/c1/2026-01/1/Banner1.png")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(obj.Data) != "data" {
		t.Errorf("Data = %q, want %q", obj.Data, "data")
	}
	if obj.ContentType != "image/png" {
		t.Errorf("ContentType = %q, want image/png", obj.ContentType)
	}
}

func TestS3GetNotFound(t *testing.T) {
	store := NewS3StoreWithClient("test-bucket", newMockS3Client())

	_, err := store.Get(context.Background(), "missing.png")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}
}

func TestS3ListVersionsIncludesDeleteMarkers(t *testing.T) {
	mock := newMockS3Client()
	store := NewS3StoreWithClient("test-bucket", mock)
	ctx := context.Background()

	if err := store.Put(ctx, "p/a.png", []byte("1"), "image/png"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(ctx, "p/a.png", []byte("2"), "image/png"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	mock.markDeleted("p/a.png")

	versions, err := store.ListVersions(ctx, "p/")
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("len(versions) = %d, want 3", len(versions))
	}
	markers := 0
	for _, v := range versions {
		if v.DeleteMarker {
			markers++
		}
	}
	if markers != 1 {
		t.Errorf("delete markers = %d, want 1", markers)
	}
}

func TestS3ListVersionsPaginates(t *testing.T) {
	mock := newMockS3Client()
	mock.listPageSize = 2
	store := NewS3StoreWithClient("test-bucket", mock)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		key := fmt.Sprintf("p/Banner%d.png", i)
		if err := store.Put(ctx, key, []byte("x"), "image/png"); err != nil {
			t.Fatalf("Put(%s): %v", key, err)
		}
	}

	versions, err := store.ListVersions(ctx, "p/")
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 5 {
		t.Errorf("len(versions) = %d, want 5 across pages", len(versions))
	}
}

// Enumerate-then-purge: after PurgeKey, nothing under the key survives, not
// even delete markers, and a fresh upload reads back cleanly.
func TestS3PurgeKeyRemovesEverything(t *testing.T) {
	mock := newMockS3Client()
	store := NewS3StoreWithClient("test-bucket", mock)
	ctx := context.Background()
	const key = "Clients/c1/2026-01/1/Banner1.png"

	if err := store.Put(ctx, key, []byte("old"), "image/png"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	mock.markDeleted(key)
	if err := store.Put(ctx, key, []byte("stale"), "image/png"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	n, err := PurgeKey(ctx, store, key)
	if err != nil {
		t.Fatalf("PurgeKey: %v", err)
	}
	if n != 3 {
		t.Errorf("purged = %d, want 3", n)
	}
	if len(mock.versions[key]) != 0 {
		t.Errorf("versions survived purge: %d", len(mock.versions[key]))
	}

	if err := store.Put(ctx, key, []byte("new"), "image/png"); err != nil {
		t.Fatalf("Put after purge: %v", err)
	}
	obj, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after purge: %v", err)
	}
	if string(obj.Data) != "new" {
		t.Errorf("Data = %q, want %q", obj.Data, "new")
	}
}

func TestS3DeleteVersionsBatches(t *testing.T) {
	mock := newMockS3Client()
	store := NewS3StoreWithClient("test-bucket", mock)
	ctx := context.Background()

	versions := make([]Version, 0, 2400)
	for i := 0; i < 2400; i++ {
		key := fmt.Sprintf("p/img%04d.png", i)
		if err := store.Put(ctx, key, []byte("x"), "image/png"); err != nil {
			t.Fatalf("Put: %v", err)
		}
		vs, err := store.ListVersions(ctx, key)
		if err != nil {
			t.Fatalf("ListVersions: %v", err)
		}
		versions = append(versions, vs...)
	}

	mock.deleteObjectsCalls = 0
	if err := store.DeleteVersions(ctx, versions); err != nil {
		t.Fatalf("DeleteVersions: %v", err)
	}
	// 2400 versions at 1000 per DeleteObjects call.
	if mock.deleteObjectsCalls != 3 {
		t.Errorf("DeleteObjects calls = %d, want 3", mock.deleteObjectsCalls)
	}
	if len(mock.versions) != 0 {
		t.Errorf("versions left = %d, want 0", len(mock.versions))
	}
}

func TestS3DeleteVersionsError(t *testing.T) {
	mock := newMockS3Client()
	mock.failDelete = true
	store := NewS3StoreWithClient("test-bucket", mock)
	ctx := context.Background()

	if err := store.Put(ctx, "p/a.png", []byte("x"), "image/png"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	versions, err := store.ListVersions(ctx, "p/")
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if err := store.DeleteVersions(ctx, versions); err == nil {
		t.Error("DeleteVersions succeeded, want error")
	}
}
