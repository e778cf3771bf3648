package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

const (
	// timeFormat is the ISO 8601 format used for all timestamps in SQLite.
	timeFormat = "2006-01-02T15:04:05.000Z"
)

// SQLiteStore implements the Store interface using SQLite as the backing
// database. It provides durable, ACID-compliant metadata storage suitable
// for single-node deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore with the given DSN and initializes
// the database schema.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening SQLite database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing SQLite database: %w", err)
	}
	return s, nil
}

// initDB applies PRAGMAs and creates the required tables and indexes.
// This is safe to call multiple times (idempotent via IF NOT EXISTS).
func (s *SQLiteStore) initDB() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("executing %q: %w", p, err)
		}
	}

	// projects.id uses AUTOINCREMENT so rowids are never reused even after
	// deletes: a project id, once assigned, stays the immutable root of its
	// blob-key namespace.
	schema := `
		CREATE TABLE IF NOT EXISTS schema_version (
			version    INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS clients (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS invoices (
			id         TEXT PRIMARY KEY,
			client_id  TEXT NOT NULL,
			month      TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'PENDING',
			created_at TEXT NOT NULL,

			UNIQUE (client_id, month),
			FOREIGN KEY (client_id) REFERENCES clients(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS projects (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			client_id     TEXT NOT NULL,
			invoice_month TEXT NOT NULL,
			name          TEXT NOT NULL,
			category      TEXT NOT NULL,
			price_cents   INTEGER NOT NULL,
			created_at    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(client_id, invoice_month);

		CREATE TABLE IF NOT EXISTS images (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL,
			blob_key   TEXT NOT NULL,
			position   INTEGER NOT NULL,

			FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_images_project ON images(project_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (1, ?)`,
		time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting schema version: %w", err)
	}

	return nil
}

// Close closes the underlying SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks connectivity to the database.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---- Client operations ----

// CreateClient creates a new client record.
func (s *SQLiteStore) CreateClient(ctx context.Context, c *ClientRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clients (id, name, created_at) VALUES (?, ?, ?)`,
		c.ID, c.Name, c.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("client already exists: %s", c.ID)
		}
		return fmt.Errorf("creating client %q: %w", c.ID, err)
	}
	return nil
}

// GetClient retrieves a client by id. Returns (nil, nil) when missing.
func (s *SQLiteStore) GetClient(ctx context.Context, id string) (*ClientRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM clients WHERE id = ?`, id,
	)

	var c ClientRecord
	var createdAtStr string
	err := row.Scan(&c.ID, &c.Name, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting client %q: %w", id, err)
	}
	c.CreatedAt, _ = time.Parse(timeFormat, createdAtStr)
	return &c, nil
}

// ListClients returns all clients, newest first.
func (s *SQLiteStore) ListClients(ctx context.Context) ([]ClientRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM clients ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing clients: %w", err)
	}
	defer rows.Close()

	var clients []ClientRecord
	for rows.Next() {
		var c ClientRecord
		var createdAtStr string
		if err := rows.Scan(&c.ID, &c.Name, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning client row: %w", err)
		}
		c.CreatedAt, _ = time.Parse(timeFormat, createdAtStr)
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating client rows: %w", err)
	}
	return clients, nil
}

// DeleteClient removes the named client.
func (s *SQLiteStore) DeleteClient(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting client %q: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return n > 0, nil
}

// ---- Invoice operations ----

// CreateInvoice creates a new invoice-month record. A zero Status defaults
// to PENDING.
func (s *SQLiteStore) CreateInvoice(ctx context.Context, inv *InvoiceRecord) error {
	status := inv.Status
	if status == "" {
		status = InvoiceStatusPending
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invoices (id, client_id, month, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		inv.ID, inv.ClientID, inv.Month, status, inv.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("invoice already exists for %s/%s", inv.ClientID, inv.Month)
		}
		return fmt.Errorf("creating invoice %q: %w", inv.ID, err)
	}
	return nil
}

// GetInvoice retrieves the invoice for a (client, month) pair. Returns
// (nil, nil) when missing.
func (s *SQLiteStore) GetInvoice(ctx context.Context, clientID, month string) (*InvoiceRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, client_id, month, status, created_at FROM invoices
		 WHERE client_id = ? AND month = ?`,
		clientID, month,
	)

	var inv InvoiceRecord
	var createdAtStr string
	err := row.Scan(&inv.ID, &inv.ClientID, &inv.Month, &inv.Status, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting invoice %s/%s: %w", clientID, month, err)
	}
	inv.CreatedAt, _ = time.Parse(timeFormat, createdAtStr)
	return &inv, nil
}

// ListInvoices returns all invoices for the given client, newest month first.
func (s *SQLiteStore) ListInvoices(ctx context.Context, clientID string) ([]InvoiceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, client_id, month, status, created_at FROM invoices
		 WHERE client_id = ? ORDER BY month DESC`,
		clientID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing invoices for %q: %w", clientID, err)
	}
	defer rows.Close()

	var invoices []InvoiceRecord
	for rows.Next() {
		var inv InvoiceRecord
		var createdAtStr string
		if err := rows.Scan(&inv.ID, &inv.ClientID, &inv.Month, &inv.Status, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning invoice row: %w", err)
		}
		inv.CreatedAt, _ = time.Parse(timeFormat, createdAtStr)
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invoice rows: %w", err)
	}
	return invoices, nil
}

// UpdateInvoiceStatus sets the payment status for a (client, month) invoice.
func (s *SQLiteStore) UpdateInvoiceStatus(ctx context.Context, clientID, month, status string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE invoices SET status = ? WHERE client_id = ? AND month = ?`,
		status, clientID, month,
	)
	if err != nil {
		return false, fmt.Errorf("updating invoice status %s/%s: %w", clientID, month, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteInvoice removes the named invoice.
func (s *SQLiteStore) DeleteInvoice(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting invoice %q: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return n > 0, nil
}

// ---- Project operations ----

// CreateProject inserts a projects row and returns the generated id.
func (s *SQLiteStore) CreateProject(ctx context.Context, p *ProjectRecord) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO projects (client_id, invoice_month, name, category, price_cents, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		p.ClientID, p.InvoiceMonth, p.Name, p.Category, p.PriceCents,
		p.CreatedAt.UTC().Format(timeFormat),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("creating project %q: %w", p.Name, err)
	}
	return id, nil
}

// GetProject retrieves a project by id. Returns (nil, nil) when missing.
func (s *SQLiteStore) GetProject(ctx context.Context, id int64) (*ProjectRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, client_id, invoice_month, name, category, price_cents, created_at
		 FROM projects WHERE id = ?`,
		id,
	)

	var p ProjectRecord
	var createdAtStr string
	err := row.Scan(&p.ID, &p.ClientID, &p.InvoiceMonth, &p.Name, &p.Category, &p.PriceCents, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting project %d: %w", id, err)
	}
	p.CreatedAt, _ = time.Parse(timeFormat, createdAtStr)
	return &p, nil
}

// ListProjects returns all projects for a (client, invoiceMonth) pair in
// creation order.
func (s *SQLiteStore) ListProjects(ctx context.Context, clientID, invoiceMonth string) ([]ProjectRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, client_id, invoice_month, name, category, price_cents, created_at
		 FROM projects WHERE client_id = ? AND invoice_month = ?
		 ORDER BY id`,
		clientID, invoiceMonth,
	)
	if err != nil {
		return nil, fmt.Errorf("listing projects for %s/%s: %w", clientID, invoiceMonth, err)
	}
	defer rows.Close()

	var projects []ProjectRecord
	for rows.Next() {
		var p ProjectRecord
		var createdAtStr string
		if err := rows.Scan(&p.ID, &p.ClientID, &p.InvoiceMonth, &p.Name, &p.Category, &p.PriceCents, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}
		p.CreatedAt, _ = time.Parse(timeFormat, createdAtStr)
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating project rows: %w", err)
	}
	return projects, nil
}

// CountProjects counts projects for a client, optionally narrowed to one
// invoice month.
func (s *SQLiteStore) CountProjects(ctx context.Context, clientID, invoiceMonth string) (int, error) {
	var (
		count int
		err   error
	)
	if invoiceMonth == "" {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM projects WHERE client_id = ?`, clientID,
		).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM projects WHERE client_id = ? AND invoice_month = ?`,
			clientID, invoiceMonth,
		).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("counting projects for %q: %w", clientID, err)
	}
	return count, nil
}

// ---- Image operations ----

// ListImages returns the image rows for a project ordered by position.
func (s *SQLiteStore) ListImages(ctx context.Context, projectID int64) ([]ImageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, blob_key, position
		 FROM images WHERE project_id = ?
		 ORDER BY position, id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing images for project %d: %w", projectID, err)
	}
	defer rows.Close()

	var images []ImageRecord
	for rows.Next() {
		var img ImageRecord
		if err := rows.Scan(&img.ID, &img.ProjectID, &img.BlobKey, &img.Position); err != nil {
			return nil, fmt.Errorf("scanning image row: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating image rows: %w", err)
	}
	return images, nil
}

// ---- Batch execution ----

// ExecBatch executes all statements inside a single transaction. Any
// statement failure rolls the whole batch back.
func (s *SQLiteStore) ExecBatch(ctx context.Context, stmts []Statement) ([]Result, error) {
	if len(stmts) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning batch transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	results := make([]Result, 0, len(stmts))
	for i, stmt := range stmts {
		res, err := tx.ExecContext(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			return nil, fmt.Errorf("batch statement %d: %w", i, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("batch statement %d rows affected: %w", i, err)
		}
		results = append(results, Result{RowsAffected: n})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing batch: %w", err)
	}
	return results, nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint error.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY")
}

// Ensure SQLiteStore implements Store at compile time.
var _ Store = (*SQLiteStore)(nil)
