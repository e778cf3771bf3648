// Package serialization handles metadata export/import between SQLite and
// YAML, for backup and migration of the invoice database. Blob bytes are not
// included; an import only restores rows, and blob keys are expected to still
// resolve in the object store.
package serialization

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	Version       = "0.1.0"
	ExportVersion = 1
)

// AllTables lists all valid table names in dependency order.
var AllTables = []string{"clients", "invoices", "projects", "images"}

// tableColumns defines column order for each table.
var tableColumns = map[string][]string{
	"clients":  {"id", "name", "created_at"},
	"invoices": {"id", "client_id", "month", "status", "created_at"},
	"projects": {"id", "client_id", "invoice_month", "name", "category", "price_cents", "created_at"},
	"images":   {"id", "project_id", "blob_key", "position"},
}

var tableOrderBy = map[string]string{
	"clients":  "id",
	"invoices": "client_id, month",
	"projects": "id",
	"images":   "project_id, position",
}

// deleteOrder removes children before parents; insertOrder is the reverse.
var deleteOrder = []string{"images", "projects", "invoices", "clients"}
var insertOrder = []string{"clients", "invoices", "projects", "images"}

// ExportOptions configures what to export.
type ExportOptions struct {
	Tables []string
}

// ImportOptions configures how to import.
type ImportOptions struct {
	// Replace wipes existing rows before inserting; otherwise conflicting
	// rows are skipped.
	Replace bool
}

// ImportResult holds the result of an import operation.
type ImportResult struct {
	Counts   map[string]int
	Skipped  map[string]int
	Warnings []string
}

// ExportMetadata exports the named tables from the SQLite database at dbPath
// to a YAML string.
func ExportMetadata(dbPath string, opts *ExportOptions) (string, error) {
	if opts == nil {
		opts = &ExportOptions{Tables: AllTables}
	}

	db, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		return "", fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	result := map[string]any{
		"invoicedeck_export": map[string]any{
			"version":        ExportVersion,
			"exported_at":    time.Now().UTC().Format(time.RFC3339),
			"schema_version": getSchemaVersion(db),
			"source":         "go/" + Version,
		},
	}

	for _, table := range opts.Tables {
		columns, ok := tableColumns[table]
		if !ok {
			return "", fmt.Errorf("unknown table: %s", table)
		}
		query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
			strings.Join(columns, ", "), table, tableOrderBy[table])
		rows, err := db.Query(query)
		if err != nil {
			return "", fmt.Errorf("querying %s: %w", table, err)
		}

		tableRows := make([]map[string]any, 0)
		for rows.Next() {
			values := make([]any, len(columns))
			ptrs := make([]any, len(columns))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				rows.Close()
				return "", fmt.Errorf("scanning %s row: %w", table, err)
			}
			row := make(map[string]any, len(columns))
			for i, col := range columns {
				row[col] = convertValue(values[i])
			}
			tableRows = append(tableRows, row)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return "", fmt.Errorf("iterating %s: %w", table, err)
		}

		result[table] = tableRows
	}

	out, err := yaml.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshaling export: %w", err)
	}
	return string(out), nil
}

// ImportMetadata imports rows from a YAML export string into the SQLite
// database at dbPath. The whole import runs in one transaction.
func ImportMetadata(dbPath string, yamlStr string, opts *ImportOptions) (*ImportResult, error) {
	if opts == nil {
		opts = &ImportOptions{}
	}

	var data map[string]any
	if err := yaml.Unmarshal([]byte(yamlStr), &data); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	envelope, _ := data["invoicedeck_export"].(map[string]any)
	version, _ := envelope["version"].(int)
	if version < 1 || version > ExportVersion {
		return nil, fmt.Errorf("unsupported export version: %v", envelope["version"])
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	db.Exec("PRAGMA foreign_keys = ON")

	result := &ImportResult{
		Counts:  make(map[string]int),
		Skipped: make(map[string]int),
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	if opts.Replace {
		for _, table := range deleteOrder {
			if _, ok := data[table]; ok {
				if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
					tx.Rollback()
					return nil, fmt.Errorf("deleting %s: %w", table, err)
				}
			}
		}
	}

	for _, table := range insertOrder {
		rowList, ok := data[table].([]any)
		if !ok {
			continue
		}
		columns := tableColumns[table]

		inserted := 0
		skipped := 0
		for _, rawRow := range rowList {
			rowMap := asStringMap(rawRow)
			if rowMap == nil {
				skipped++
				continue
			}

			placeholders := make([]string, len(columns))
			values := make([]any, len(columns))
			for i, col := range columns {
				placeholders[i] = "?"
				values[i] = rowMap[col]
			}

			verb := "INSERT OR IGNORE"
			if opts.Replace {
				verb = "INSERT"
			}
			query := fmt.Sprintf("%s INTO %s (%s) VALUES (%s)",
				verb, table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

			res, err := tx.Exec(query, values...)
			if err != nil {
				skipped++
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("Skipped %s row: %v", table, err))
				continue
			}
			affected, _ := res.RowsAffected()
			if affected > 0 {
				inserted++
			} else {
				skipped++
			}
		}

		result.Counts[table] = inserted
		result.Skipped[table] = skipped
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return result, nil
}

func getSchemaVersion(db *sql.DB) int {
	var version int
	err := db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err != nil {
		return 1
	}
	return version
}

// convertValue unwraps sql driver values into YAML-friendly types.
func convertValue(val any) any {
	if b, ok := val.([]byte); ok {
		return string(b)
	}
	return val
}

// asStringMap converts a decoded YAML mapping into map[string]any. yaml.v3
// already decodes mappings with string keys this way; anything else is an
// invalid row.
func asStringMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

// ValidTables reports whether every name in tables is a known table, and
// returns the offending name when not.
func ValidTables(tables []string) (string, bool) {
	valid := make(map[string]bool, len(AllTables))
	for _, t := range AllTables {
		valid[t] = true
	}
	for _, t := range tables {
		if !valid[t] {
			return t, false
		}
	}
	return "", true
}

// SortedTableNames returns the known table names sorted alphabetically, for
// help output.
func SortedTableNames() []string {
	names := append([]string(nil), AllTables...)
	sort.Strings(names)
	return names
}
