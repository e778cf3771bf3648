package project

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/invoicedeck/invoicedeck/internal/apperr"
	"github.com/invoicedeck/invoicedeck/internal/blob"
	"github.com/invoicedeck/invoicedeck/internal/metadata"
	"github.com/invoicedeck/invoicedeck/internal/metrics"
)

// Coordinator orchestrates project create, update and delete across the
// metadata store and the blob store. Neither backend can see the other's
// state and there is no two-phase commit between them, so each protocol is a
// saga: perform the step that is safest to undo first, track every side
// effect, and compensate on failure. The metadata batch is the single
// synchronization point of each protocol.
//
// Concurrent calls against the same project id are not serialized and may
// race; the last metadata batch to commit wins.
type Coordinator struct {
	meta  metadata.Store
	blobs blob.Store
	log   *slog.Logger
}

// NewCoordinator returns a Coordinator using the given stores.
func NewCoordinator(meta metadata.Store, blobs blob.Store, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{meta: meta, blobs: blobs, log: log}
}

// RawImage is a new image payload supplied at create time.
type RawImage struct {
	Data        []byte
	ContentType string
}

// CreateInput holds the fields for CreateProject. All fields are required
// except Images, which may be empty. Payload size is enforced at the HTTP
// boundary before the coordinator runs.
type CreateInput struct {
	ClientID     string
	InvoiceMonth string
	Name         string
	Category     string
	PriceCents   int64
	Images       []RawImage
}

func (in *CreateInput) validate() error {
	switch {
	case in.ClientID == "":
		return apperr.Validation("clientId is required")
	case in.InvoiceMonth == "":
		return apperr.Validation("invoiceMonth is required")
	case in.Name == "":
		return apperr.Validation("name is required")
	case in.Category == "":
		return apperr.Validation("category is required")
	case in.PriceCents < 0:
		return apperr.Validation("price must not be negative")
	}
	for i, img := range in.Images {
		if len(img.Data) == 0 {
			return apperr.Validation("image at position %d has no data", i)
		}
	}
	return nil
}

// CreateProject inserts the project row, uploads all images concurrently,
// then inserts the image rows as one atomic batch. The project-row insert is
// the point of no return: if any later step fails, the row, any partially
// inserted image rows and every blob uploaded so far are compensated away and
// the original error is returned.
func (c *Coordinator) CreateProject(ctx context.Context, in *CreateInput) (int64, error) {
	if err := in.validate(); err != nil {
		metrics.ProjectOperationsTotal.WithLabelValues("create", "failure").Inc()
		return 0, err
	}

	var (
		projectID int64
		uploaded  *uploadTracker
	)
	steps := []Step{
		{
			Name: "insert project row",
			Run: func(ctx context.Context) error {
				id, err := c.meta.CreateProject(ctx, &metadata.ProjectRecord{
					ClientID:     in.ClientID,
					InvoiceMonth: in.InvoiceMonth,
					Name:         in.Name,
					Category:     in.Category,
					PriceCents:   in.PriceCents,
					CreatedAt:    time.Now().UTC(),
				})
				if err != nil {
					return apperr.Internal(fmt.Errorf("inserting project row: %w", err))
				}
				projectID = id
				return nil
			},
			Compensate: func(ctx context.Context) error {
				// Also removes any image rows a partially-run batch left behind.
				_, err := c.meta.ExecBatch(ctx, []metadata.Statement{
					metadata.DeleteProjectImagesStmt(projectID),
					metadata.DeleteProjectRowStmt(projectID),
				})
				return err
			},
		},
		{
			Name: "upload images",
			Run: func(ctx context.Context) error {
				keys := make([]string, len(in.Images))
				for i, img := range in.Images {
					keys[i] = BlobKey(in.ClientID, in.InvoiceMonth, projectID, in.Category, i+1, img.ContentType)
				}
				items := make([]uploadItem, len(in.Images))
				for i, img := range in.Images {
					items[i] = uploadItem{Key: keys[i], Data: img.Data, ContentType: img.ContentType}
				}
				var err error
				uploaded, err = c.uploadAll(ctx, items)
				return err
			},
			Compensate: func(ctx context.Context) error {
				return c.purgeKeys(ctx, uploaded.Keys())
			},
		},
		{
			Name: "insert image rows",
			Run: func(ctx context.Context) error {
				if len(uploaded.All()) == 0 {
					return nil
				}
				stmts := make([]metadata.Statement, 0, len(in.Images))
				for i, key := range uploaded.All() {
					stmts = append(stmts, metadata.InsertImageRowStmt(projectID, key, i))
				}
				if _, err := c.meta.ExecBatch(ctx, stmts); err != nil {
					return apperr.MetadataBatch(err)
				}
				return nil
			},
		},
	}

	if err := runSaga(ctx, c.log, "create", steps); err != nil {
		metrics.ProjectOperationsTotal.WithLabelValues("create", "failure").Inc()
		return 0, err
	}
	metrics.ProjectOperationsTotal.WithLabelValues("create", "success").Inc()
	c.log.Info("project created",
		"project_id", projectID, "client_id", in.ClientID,
		"invoice_month", in.InvoiceMonth, "images", len(in.Images))
	return projectID, nil
}

// UpdateInput holds the fields for UpdateProject. ClientID and InvoiceMonth
// are used only to construct blob keys for new uploads; they are not
// re-validated against the stored project. Images is always the full desired
// list, never a delta.
type UpdateInput struct {
	ID           int64
	ClientID     string
	InvoiceMonth string
	Name         *string
	Category     *string
	PriceCents   *int64
	Images       []ImageInput
}

func (in *UpdateInput) validate() error {
	switch {
	case in.ID <= 0:
		return apperr.Validation("project id is required")
	case in.ClientID == "":
		return apperr.Validation("clientId is required")
	case in.InvoiceMonth == "":
		return apperr.Validation("invoiceMonth is required")
	case in.Name != nil && *in.Name == "":
		return apperr.Validation("name must not be empty")
	case in.Category != nil && *in.Category == "":
		return apperr.Validation("category must not be empty")
	case in.PriceCents != nil && *in.PriceCents < 0:
		return apperr.Validation("price must not be negative")
	}
	return nil
}

// UpdateProject reconciles the project's persisted images against the full
// desired list: new payloads are uploaded to freshly disambiguated keys,
// then one atomic batch applies the scalar update, the row deletes, the row
// inserts and the reorders. Only after the batch commits are the removed
// blobs purged, best-effort. A batch failure compensates exactly the new
// uploads; the previously persisted rows never need undoing because the
// batch is all-or-nothing.
func (c *Coordinator) UpdateProject(ctx context.Context, in *UpdateInput) error {
	if err := in.validate(); err != nil {
		metrics.ProjectOperationsTotal.WithLabelValues("update", "failure").Inc()
		return err
	}
	err := c.updateProject(ctx, in)
	if err != nil {
		metrics.ProjectOperationsTotal.WithLabelValues("update", "failure").Inc()
		return err
	}
	metrics.ProjectOperationsTotal.WithLabelValues("update", "success").Inc()
	return nil
}

func (c *Coordinator) updateProject(ctx context.Context, in *UpdateInput) error {
	current, err := c.meta.GetProject(ctx, in.ID)
	if err != nil {
		return apperr.Internal(fmt.Errorf("loading project %d: %w", in.ID, err))
	}
	if current == nil {
		return apperr.NotFound("project %d not found", in.ID)
	}

	rows, err := c.meta.ListImages(ctx, in.ID)
	if err != nil {
		return apperr.Internal(fmt.Errorf("loading images for project %d: %w", in.ID, err))
	}

	diff, err := ComputeDiff(rows, in.Images)
	if err != nil {
		return err
	}

	name := current.Name
	if in.Name != nil {
		name = *in.Name
	}
	category := current.Category
	if in.Category != nil {
		category = *in.Category
	}
	priceCents := current.PriceCents
	if in.PriceCents != nil {
		priceCents = *in.PriceCents
	}

	newKeys := make([]string, len(diff.Added))
	for i, add := range diff.Added {
		newKeys[i] = DisambiguatedBlobKey(in.ClientID, in.InvoiceMonth, in.ID, category, add.Position+1, add.ContentType)
	}

	var uploaded *uploadTracker
	steps := []Step{
		{
			Name: "upload new images",
			Run: func(ctx context.Context) error {
				items := make([]uploadItem, len(diff.Added))
				for i, add := range diff.Added {
					items[i] = uploadItem{Key: newKeys[i], Data: add.Data, ContentType: add.ContentType}
				}
				var err error
				uploaded, err = c.uploadAll(ctx, items)
				return err
			},
			Compensate: func(ctx context.Context) error {
				return c.purgeKeys(ctx, uploaded.Keys())
			},
		},
		{
			Name: "apply metadata batch",
			Run: func(ctx context.Context) error {
				var stmts []metadata.Statement
				if in.Name != nil || in.Category != nil || in.PriceCents != nil {
					stmts = append(stmts, metadata.UpdateProjectStmt(in.ID, name, category, priceCents))
				}
				for _, rm := range diff.Removed {
					stmts = append(stmts, metadata.DeleteImageRowStmt(rm.ID))
				}
				for i, add := range diff.Added {
					stmts = append(stmts, metadata.InsertImageRowStmt(in.ID, newKeys[i], add.Position))
				}
				for _, kept := range diff.Kept {
					if kept.Moved {
						stmts = append(stmts, metadata.UpdateImagePositionStmt(kept.Row.ID, kept.Position))
					}
				}
				if _, err := c.meta.ExecBatch(ctx, stmts); err != nil {
					return apperr.MetadataBatch(err)
				}
				return nil
			},
		},
	}

	if err := runSaga(ctx, c.log, "update", steps); err != nil {
		return err
	}

	// Metadata is committed; stale blobs are reclaimable garbage, not a
	// correctness problem. Failures here are logged, never surfaced.
	for _, rm := range diff.Removed {
		n, err := blob.PurgeKey(ctx, c.blobs, rm.BlobKey)
		if err != nil {
			metrics.CleanupWarningsTotal.Inc()
			c.log.Warn("removing replaced blob failed",
				"project_id", in.ID, "key", rm.BlobKey, "error", err)
			continue
		}
		metrics.BlobVersionsPurgedTotal.Add(float64(n))
	}

	c.log.Info("project updated",
		"project_id", in.ID, "added", len(diff.Added),
		"removed", len(diff.Removed), "kept", len(diff.Kept))
	return nil
}

// DeleteResult reports the outcome of DeleteProject. Warning is set when the
// metadata deletion succeeded but the best-effort blob purge did not.
type DeleteResult struct {
	Warning string
}

// DeleteProject removes the project's metadata atomically, then purges every
// blob version under its key prefix. The metadata deletion is authoritative
// and never rolled back: a project that still shows in the UI with vanished
// blobs is a worse outcome than a gone project leaving orphaned storage. A
// failed purge downgrades to a warning on an otherwise successful result.
func (c *Coordinator) DeleteProject(ctx context.Context, id int64) (*DeleteResult, error) {
	if id <= 0 {
		metrics.ProjectOperationsTotal.WithLabelValues("delete", "failure").Inc()
		return nil, apperr.Validation("project id is required")
	}

	p, err := c.meta.GetProject(ctx, id)
	if err != nil {
		metrics.ProjectOperationsTotal.WithLabelValues("delete", "failure").Inc()
		return nil, apperr.Internal(fmt.Errorf("loading project %d: %w", id, err))
	}
	if p == nil {
		metrics.ProjectOperationsTotal.WithLabelValues("delete", "failure").Inc()
		return nil, apperr.NotFound("project %d not found", id)
	}

	results, err := c.meta.ExecBatch(ctx, []metadata.Statement{
		metadata.DeleteProjectImagesStmt(id),
		metadata.DeleteProjectRowStmt(id),
	})
	if err != nil {
		metrics.ProjectOperationsTotal.WithLabelValues("delete", "failure").Inc()
		return nil, apperr.MetadataBatch(err)
	}
	// A concurrent delete may have won the race between the lookup and the
	// batch; the project row delete reporting zero rows means not found.
	if results[1].RowsAffected == 0 {
		metrics.ProjectOperationsTotal.WithLabelValues("delete", "failure").Inc()
		return nil, apperr.NotFound("project %d not found", id)
	}

	res := &DeleteResult{}
	prefix := ProjectPrefix(p.ClientID, p.InvoiceMonth, id)
	n, err := blob.PurgePrefix(ctx, c.blobs, prefix)
	if err != nil {
		metrics.CleanupWarningsTotal.Inc()
		c.log.Warn("purging project blobs failed",
			"project_id", id, "prefix", prefix, "error", err)
		res.Warning = fmt.Sprintf("project deleted, but removing its stored images failed: %v", err)
	} else {
		metrics.BlobVersionsPurgedTotal.Add(float64(n))
	}

	metrics.ProjectOperationsTotal.WithLabelValues("delete", "success").Inc()
	c.log.Info("project deleted", "project_id", id, "versions_purged", n)
	return res, nil
}

// uploadItem is one pending blob upload.
type uploadItem struct {
	Key         string
	Data        []byte
	ContentType string
}

// uploadTracker records which uploads of a fan-out actually succeeded, so a
// compensation after a partial failure purges exactly those.
type uploadTracker struct {
	mu   sync.Mutex
	keys []string
	all  []string
}

// Keys returns the keys whose uploads succeeded. Safe to call after the
// fan-out has been awaited.
func (t *uploadTracker) Keys() []string {
	if t == nil {
		return nil
	}
	return t.keys
}

// All returns every key the fan-out attempted, in input order.
func (t *uploadTracker) All() []string {
	if t == nil {
		return nil
	}
	return t.all
}

// uploadAll uploads all items concurrently and waits for them. Individual
// uploads have no ordering guarantee between them; all must succeed before
// the caller proceeds. On failure the returned tracker still lists the
// uploads that completed, for compensation.
func (c *Coordinator) uploadAll(ctx context.Context, items []uploadItem) (*uploadTracker, error) {
	t := &uploadTracker{all: make([]string, len(items))}
	for i, it := range items {
		t.all[i] = it.Key
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, it := range items {
		g.Go(func() error {
			if err := c.blobs.Put(ctx, it.Key, it.Data, it.ContentType); err != nil {
				return apperr.Upload(fmt.Errorf("uploading %s: %w", it.Key, err))
			}
			t.mu.Lock()
			t.keys = append(t.keys, it.Key)
			t.mu.Unlock()
			metrics.BlobUploadsTotal.Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return t, err
	}
	return t, nil
}

// purgeKeys removes every version under each key. Used by compensations;
// the first error aborts so remaining garbage is at least logged once by
// the saga runner.
func (c *Coordinator) purgeKeys(ctx context.Context, keys []string) error {
	for _, key := range keys {
		n, err := blob.PurgeKey(ctx, c.blobs, key)
		if err != nil {
			return fmt.Errorf("purging %s: %w", key, err)
		}
		metrics.BlobVersionsPurgedTotal.Add(float64(n))
	}
	return nil
}
