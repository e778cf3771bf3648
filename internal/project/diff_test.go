package project

import (
	"testing"

	"github.com/invoicedeck/invoicedeck/internal/apperr"
	"github.com/invoicedeck/invoicedeck/internal/metadata"
)

func row(id int64, key string, pos int) metadata.ImageRecord {
	return metadata.ImageRecord{ID: id, ProjectID: 1, BlobKey: key, Position: pos}
}

func existing(key string) ImageInput { return ImageInput{ExistingKey: key} }

func newPayload(data string) ImageInput {
	return ImageInput{Data: []byte(data), ContentType: "image/png"}
}

func TestComputeDiffIdentity(t *testing.T) {
	current := []metadata.ImageRecord{row(1, "a", 0), row(2, "b", 1)}
	desired := []ImageInput{existing("a"), existing("b")}

	d, err := ComputeDiff(current, desired)
	if err != nil {
		t.Fatalf("ComputeDiff: %v", err)
	}
	if !d.Empty() {
		t.Errorf("Empty() = false for identical lists: %+v", d)
	}
	if len(d.Kept) != 2 || len(d.Added) != 0 || len(d.Removed) != 0 {
		t.Errorf("diff = %+v, want 2 kept only", d)
	}
}

// Current [A,B,C], desired [C,X,A] with X new: C and A kept at new positions,
// X added at position 1, B removed.
func TestComputeDiffReplaceAndReorder(t *testing.T) {
	current := []metadata.ImageRecord{row(1, "A", 0), row(2, "B", 1), row(3, "C", 2)}
	desired := []ImageInput{existing("C"), newPayload("x-bytes"), existing("A")}

	d, err := ComputeDiff(current, desired)
	if err != nil {
		t.Fatalf("ComputeDiff: %v", err)
	}

	if len(d.Added) != 1 {
		t.Fatalf("len(Added) = %d, want 1", len(d.Added))
	}
	if d.Added[0].Position != 1 {
		t.Errorf("Added[0].Position = %d, want 1", d.Added[0].Position)
	}

	if len(d.Kept) != 2 {
		t.Fatalf("len(Kept) = %d, want 2", len(d.Kept))
	}
	if d.Kept[0].Row.BlobKey != "C" || d.Kept[0].Position != 0 || !d.Kept[0].Moved {
		t.Errorf("Kept[0] = %+v, want C moved to 0", d.Kept[0])
	}
	if d.Kept[1].Row.BlobKey != "A" || d.Kept[1].Position != 2 || !d.Kept[1].Moved {
		t.Errorf("Kept[1] = %+v, want A moved to 2", d.Kept[1])
	}

	if len(d.Removed) != 1 || d.Removed[0].BlobKey != "B" {
		t.Errorf("Removed = %+v, want exactly B", d.Removed)
	}
	if d.Empty() {
		t.Error("Empty() = true for a diff with changes")
	}
}

func TestComputeDiffKeptNotMoved(t *testing.T) {
	current := []metadata.ImageRecord{row(1, "a", 0), row(2, "b", 1)}
	desired := []ImageInput{existing("a"), newPayload("x")}

	d, err := ComputeDiff(current, desired)
	if err != nil {
		t.Fatalf("ComputeDiff: %v", err)
	}
	if len(d.Kept) != 1 || d.Kept[0].Moved {
		t.Errorf("Kept = %+v, want a unmoved", d.Kept)
	}
	if len(d.Removed) != 1 || d.Removed[0].BlobKey != "b" {
		t.Errorf("Removed = %+v, want b", d.Removed)
	}
}

func TestComputeDiffUnknownReference(t *testing.T) {
	current := []metadata.ImageRecord{row(1, "a", 0)}
	desired := []ImageInput{existing("not-ours")}

	_, err := ComputeDiff(current, desired)
	if err == nil {
		t.Fatal("ComputeDiff succeeded with a foreign reference")
	}
	if apperr.CodeOf(err) != apperr.CodeValidation {
		t.Errorf("CodeOf(err) = %q, want %q", apperr.CodeOf(err), apperr.CodeValidation)
	}
}

func TestComputeDiffDuplicateReference(t *testing.T) {
	current := []metadata.ImageRecord{row(1, "a", 0)}
	desired := []ImageInput{existing("a"), existing("a")}

	_, err := ComputeDiff(current, desired)
	if err == nil {
		t.Fatal("ComputeDiff succeeded with a duplicated reference")
	}
	if apperr.CodeOf(err) != apperr.CodeValidation {
		t.Errorf("CodeOf(err) = %q, want %q", apperr.CodeOf(err), apperr.CodeValidation)
	}
}

func TestComputeDiffEmptyPayload(t *testing.T) {
	_, err := ComputeDiff(nil, []ImageInput{{ContentType: "image/png"}})
	if err == nil {
		t.Fatal("ComputeDiff accepted an empty payload")
	}
	if apperr.CodeOf(err) != apperr.CodeValidation {
		t.Errorf("CodeOf(err) = %q, want %q", apperr.CodeOf(err), apperr.CodeValidation)
	}
}

func TestComputeDiffAllRemoved(t *testing.T) {
	current := []metadata.ImageRecord{row(1, "a", 0), row(2, "b", 1)}

	d, err := ComputeDiff(current, nil)
	if err != nil {
		t.Fatalf("ComputeDiff: %v", err)
	}
	if len(d.Removed) != 2 || len(d.Kept) != 0 || len(d.Added) != 0 {
		t.Errorf("diff = %+v, want everything removed", d)
	}
}
