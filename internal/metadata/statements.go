package metadata

// Statement constructors used by the coordinator to assemble atomic batches.
// Keeping the SQL here means the coordinator composes batches without
// knowing the schema.

// UpdateProjectStmt returns a statement updating a project's scalar fields.
// Callers substitute current values for fields the request left unset.
func UpdateProjectStmt(id int64, name, category string, priceCents int64) Statement {
	return Statement{
		SQL:  `UPDATE projects SET name = ?, category = ?, price_cents = ? WHERE id = ?`,
		Args: []any{name, category, priceCents, id},
	}
}

// InsertImageRowStmt returns a statement inserting one image row.
func InsertImageRowStmt(projectID int64, blobKey string, position int) Statement {
	return Statement{
		SQL:  `INSERT INTO images (project_id, blob_key, position) VALUES (?, ?, ?)`,
		Args: []any{projectID, blobKey, position},
	}
}

// DeleteImageRowStmt returns a statement deleting one image row by id.
func DeleteImageRowStmt(imageID int64) Statement {
	return Statement{
		SQL:  `DELETE FROM images WHERE id = ?`,
		Args: []any{imageID},
	}
}

// UpdateImagePositionStmt returns a statement moving an image row to a new
// display position.
func UpdateImagePositionStmt(imageID int64, position int) Statement {
	return Statement{
		SQL:  `UPDATE images SET position = ? WHERE id = ?`,
		Args: []any{position, imageID},
	}
}

// DeleteProjectImagesStmt returns a statement deleting all image rows of a
// project.
func DeleteProjectImagesStmt(projectID int64) Statement {
	return Statement{
		SQL:  `DELETE FROM images WHERE project_id = ?`,
		Args: []any{projectID},
	}
}

// DeleteProjectRowStmt returns a statement deleting the projects row itself.
func DeleteProjectRowStmt(projectID int64) Statement {
	return Statement{
		SQL:  `DELETE FROM projects WHERE id = ?`,
		Args: []any{projectID},
	}
}
