package blob

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestMemoryPutGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Put(ctx, "Clients/c1/2026-01/1/Banner1.png", []byte("png-bytes"), "image/png"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	obj, err := s.Get(ctx, "Clients/c1/2026-01/1/Banner1.png")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(obj.Data, []byte("png-bytes")) {
		t.Errorf("Data = %q, want %q", obj.Data, "png-bytes")
	}
	if obj.ContentType != "image/png" {
		t.Errorf("ContentType = %q, want image/png", obj.ContentType)
	}
}

func TestMemoryGetMissing(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get(context.Background(), "no/such/key.png")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}
}

func TestMemoryGetDeleteMarkerTop(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Put(ctx, "k", []byte("old"), "image/png"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	s.PutDeleteMarker("k")

	_, err := s.Get(ctx, "k")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(marker-topped) = %v, want ErrNotFound", err)
	}

	// The old bytes are still a retrievable version until purged.
	versions, err := s.ListVersions(ctx, "k")
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("len(versions) = %d, want 2", len(versions))
	}
}

// Uploading to a key, purging it, then re-uploading must return only the
// newest content -- no prior version bleeds through.
func TestMemoryPurgeThenReupload(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	const key = "Clients/c1/2026-01/1/Banner1.png"

	if err := s.Put(ctx, key, []byte("first"), "image/png"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	n, err := PurgeKey(ctx, s, key)
	if err != nil {
		t.Fatalf("PurgeKey: %v", err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}

	if err := s.Put(ctx, key, []byte("second"), "image/png"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	obj, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after re-upload: %v", err)
	}
	if string(obj.Data) != "second" {
		t.Errorf("Data = %q, want %q", obj.Data, "second")
	}

	versions, err := s.ListVersions(ctx, key)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 1 {
		t.Errorf("len(versions) = %d, want 1 (old versions must not survive)", len(versions))
	}
}

func TestPurgeKeyIsExact(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// Banner1.png and Banner10.png share a prefix; purging the former must
	// not touch the latter.
	if err := s.Put(ctx, "p/Banner1.png", []byte("a"), "image/png"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "p/Banner1.png", []byte("b"), "image/png"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "p/Banner1.png2", []byte("c"), "image/png"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	n, err := PurgeKey(ctx, s, "p/Banner1.png")
	if err != nil {
		t.Fatalf("PurgeKey: %v", err)
	}
	if n != 2 {
		t.Errorf("purged = %d, want 2", n)
	}

	if _, err := s.Get(ctx, "p/Banner1.png2"); err != nil {
		t.Errorf("neighbor key was purged: %v", err)
	}
}

func TestPurgePrefix(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	keys := []string{
		"Clients/c1/2026-01/7/Banner1.png",
		"Clients/c1/2026-01/7/Banner2.jpg",
		"Clients/c1/2026-01/8/Logo1.png",
	}
	for _, k := range keys {
		if err := s.Put(ctx, k, []byte("x"), ""); err != nil {
			t.Fatalf("Put(%s): %v", k, err)
		}
	}
	s.PutDeleteMarker("Clients/c1/2026-01/7/Banner1.png")

	n, err := PurgePrefix(ctx, s, "Clients/c1/2026-01/7/")
	if err != nil {
		t.Fatalf("PurgePrefix: %v", err)
	}
	if n != 3 {
		t.Errorf("purged = %d, want 3 (two versions + one marker)", n)
	}

	left, err := s.ListVersions(ctx, "Clients/c1/2026-01/7/")
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("versions left under purged prefix: %d", len(left))
	}
	if _, err := s.Get(ctx, "Clients/c1/2026-01/8/Logo1.png"); err != nil {
		t.Errorf("other project's blob was purged: %v", err)
	}
}

// Purging a prefix with no versions is success, not an error.
func TestPurgeIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	n, err := PurgePrefix(ctx, s, "Clients/none/")
	if err != nil {
		t.Fatalf("PurgePrefix(empty) = %v, want nil", err)
	}
	if n != 0 {
		t.Errorf("purged = %d, want 0", n)
	}

	n, err = PurgeKey(ctx, s, "Clients/none/Banner1.png")
	if err != nil {
		t.Fatalf("PurgeKey(empty) = %v, want nil", err)
	}
	if n != 0 {
		t.Errorf("purged = %d, want 0", n)
	}
}
