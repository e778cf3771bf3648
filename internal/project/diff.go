package project

import (
	"github.com/invoicedeck/invoicedeck/internal/apperr"
	"github.com/invoicedeck/invoicedeck/internal/metadata"
)

// ImageInput is one element of a desired image list: either a reference to a
// blob the project already owns (ExistingKey set) or a raw new payload (Data
// and ContentType set). Exactly one of the two forms is valid.
type ImageInput struct {
	ExistingKey string
	Data        []byte
	ContentType string
}

// IsNew reports whether the input carries a raw payload rather than an
// existing blob reference.
func (in ImageInput) IsNew() bool { return in.ExistingKey == "" }

// AddedImage is a new payload to upload, tagged with its position in the
// desired list.
type AddedImage struct {
	Position    int
	Data        []byte
	ContentType string
}

// KeptImage is an existing image row that survives the update, tagged with
// its target position. Moved is set when the position differs from the
// currently persisted one.
type KeptImage struct {
	Row      metadata.ImageRecord
	Position int
	Moved    bool
}

// Diff is the reconciliation of a project's persisted image rows against a
// caller-supplied desired list.
type Diff struct {
	Added   []AddedImage
	Kept    []KeptImage
	Removed []metadata.ImageRecord
}

// Empty reports whether the diff requires no blob or row changes at all, not
// even a reorder.
func (d *Diff) Empty() bool {
	if len(d.Added) > 0 || len(d.Removed) > 0 {
		return false
	}
	for _, k := range d.Kept {
		if k.Moved {
			return false
		}
	}
	return true
}

// ComputeDiff partitions desired into added (raw payloads), kept (existing
// references, possibly reordered) and removed (persisted rows whose key does
// not appear anywhere in desired). A reference to a key the project does not
// own is a validation error, caught before any store is touched.
func ComputeDiff(current []metadata.ImageRecord, desired []ImageInput) (*Diff, error) {
	byKey := make(map[string]metadata.ImageRecord, len(current))
	for _, row := range current {
		byKey[row.BlobKey] = row
	}

	d := &Diff{}
	seen := make(map[string]bool, len(desired))
	for pos, in := range desired {
		if in.IsNew() {
			if len(in.Data) == 0 {
				return nil, apperr.Validation("image at position %d has no data", pos)
			}
			d.Added = append(d.Added, AddedImage{
				Position:    pos,
				Data:        in.Data,
				ContentType: in.ContentType,
			})
			continue
		}
		row, ok := byKey[in.ExistingKey]
		if !ok {
			return nil, apperr.Validation("image reference %q does not belong to this project", in.ExistingKey)
		}
		if seen[in.ExistingKey] {
			return nil, apperr.Validation("image reference %q appears more than once", in.ExistingKey)
		}
		seen[in.ExistingKey] = true
		d.Kept = append(d.Kept, KeptImage{
			Row:      row,
			Position: pos,
			Moved:    row.Position != pos,
		})
	}

	for _, row := range current {
		if !seen[row.BlobKey] {
			d.Removed = append(d.Removed, row)
		}
	}
	return d, nil
}
