// Package metadata defines the interface and SQLite implementation of
// Invoicedeck's relational metadata layer: clients, monthly invoices,
// projects, and image rows referencing blobs in the object store.
package metadata

import (
	"context"
	"io"
	"time"
)

// ClientRecord represents one client on the dashboard.
type ClientRecord struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Invoice payment statuses. The UI toggles between exactly these two.
const (
	InvoiceStatusPending = "PENDING"
	InvoiceStatusPaid    = "PAID"
)

// InvoiceRecord represents one monthly invoice under a client.
type InvoiceRecord struct {
	ID        string
	ClientID  string
	Month     string // "2026-01"
	Status    string // InvoiceStatusPending or InvoiceStatusPaid
	CreatedAt time.Time
}

// ProjectRecord represents one billable project on an invoice. IDs are
// allocated by the store and never reused; once assigned, the id is the
// immutable root of the project's blob-key namespace.
type ProjectRecord struct {
	ID           int64
	ClientID     string
	InvoiceMonth string
	Name         string
	Category     string
	PriceCents   int64
	CreatedAt    time.Time
}

// ImageRecord represents one image row. Position is the zero-based display
// order within the project; density and uniqueness per project are
// maintained by the coordinator, not enforced by the store.
type ImageRecord struct {
	ID        int64
	ProjectID int64
	BlobKey   string
	Position  int
}

// Statement is a single parameterized SQL statement for batch execution.
type Statement struct {
	SQL  string
	Args []any
}

// Result reports the outcome of one statement in an executed batch.
type Result struct {
	RowsAffected int64
}

// Store defines the metadata operations required by Invoicedeck.
// Implementations must be safe for concurrent use.
type Store interface {
	io.Closer

	// Ping checks connectivity to the metadata store.
	Ping(ctx context.Context) error

	// Client operations

	// CreateClient creates a new client record.
	CreateClient(ctx context.Context, c *ClientRecord) error

	// GetClient retrieves a client by id. Returns (nil, nil) when the client
	// does not exist.
	GetClient(ctx context.Context, id string) (*ClientRecord, error)

	// ListClients returns all clients, newest first.
	ListClients(ctx context.Context) ([]ClientRecord, error)

	// DeleteClient removes the named client. Returns false if no row matched.
	DeleteClient(ctx context.Context, id string) (bool, error)

	// Invoice operations

	// CreateInvoice creates a new invoice-month record under a client.
	CreateInvoice(ctx context.Context, inv *InvoiceRecord) error

	// GetInvoice retrieves the invoice for a (client, month) pair. Returns
	// (nil, nil) when no such invoice exists.
	GetInvoice(ctx context.Context, clientID, month string) (*InvoiceRecord, error)

	// ListInvoices returns all invoices for the given client, newest first.
	ListInvoices(ctx context.Context, clientID string) ([]InvoiceRecord, error)

	// UpdateInvoiceStatus sets the payment status of the invoice for a
	// (client, month) pair. Returns false if no row matched.
	UpdateInvoiceStatus(ctx context.Context, clientID, month, status string) (bool, error)

	// DeleteInvoice removes the named invoice. Returns false if no row matched.
	DeleteInvoice(ctx context.Context, id string) (bool, error)

	// Project operations

	// CreateProject inserts a projects row and returns the generated id.
	CreateProject(ctx context.Context, p *ProjectRecord) (int64, error)

	// GetProject retrieves a project by id. Returns (nil, nil) when the
	// project does not exist.
	GetProject(ctx context.Context, id int64) (*ProjectRecord, error)

	// ListProjects returns all projects for a (client, invoiceMonth) pair,
	// in creation order.
	ListProjects(ctx context.Context, clientID, invoiceMonth string) ([]ProjectRecord, error)

	// CountProjects counts projects for a client, optionally narrowed to one
	// invoice month (empty month counts all).
	CountProjects(ctx context.Context, clientID, invoiceMonth string) (int, error)

	// Image operations

	// ListImages returns the image rows for a project ordered by position.
	ListImages(ctx context.Context, projectID int64) ([]ImageRecord, error)

	// Batch execution

	// ExecBatch executes all statements inside a single transaction with
	// all-or-nothing semantics and returns one Result per statement in
	// order. On any failure the transaction is rolled back and no results
	// are returned.
	ExecBatch(ctx context.Context, stmts []Statement) ([]Result, error)
}
