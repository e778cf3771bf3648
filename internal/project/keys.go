// Package project implements the project mutation coordinator: the create,
// update and delete protocols that keep the relational metadata store and the
// versioned blob store consistent without a cross-store transaction.
package project

import (
	"fmt"
	"strings"

	"github.com/invoicedeck/invoicedeck/internal/uid"
)

// extForContentType maps declared image content types to blob-key file
// extensions. Unknown types fall back to a generic binary extension.
var extForContentType = map[string]string{
	"image/jpeg":    "jpg",
	"image/jpg":     "jpg",
	"image/png":     "png",
	"image/webp":    "webp",
	"image/gif":     "gif",
	"image/svg+xml": "svg",
	"image/avif":    "avif",
}

// ExtFromContentType returns the blob-key extension for a declared content
// type. Media type parameters ("image/png; charset=binary") are ignored.
func ExtFromContentType(contentType string) string {
	mt := contentType
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	mt = strings.ToLower(strings.TrimSpace(mt))
	if ext, ok := extForContentType[mt]; ok {
		return ext
	}
	return "bin"
}

// ProjectPrefix is the blob-key namespace rooted at a project id. Every blob
// belonging to the project lives under it, so the whole project can be purged
// with one prefix scan and no secondary index.
func ProjectPrefix(clientID, invoiceMonth string, projectID int64) string {
	return fmt.Sprintf("Clients/%s/%s/%d/", clientID, invoiceMonth, projectID)
}

// BlobKey derives the key for an image uploaded at create time. index is
// 1-based within the project's category.
func BlobKey(clientID, invoiceMonth string, projectID int64, category string, index int, contentType string) string {
	return fmt.Sprintf("%s%s%d.%s",
		ProjectPrefix(clientID, invoiceMonth, projectID),
		category, index, ExtFromContentType(contentType))
}

// DisambiguatedBlobKey derives the key for an image uploaded during an
// update. A short random suffix keeps the key from colliding with a
// same-named stale or cached object left over from an earlier version of the
// project.
func DisambiguatedBlobKey(clientID, invoiceMonth string, projectID int64, category string, index int, contentType string) string {
	return fmt.Sprintf("%s%s%d_%s.%s",
		ProjectPrefix(clientID, invoiceMonth, projectID),
		category, index, uid.Short(), ExtFromContentType(contentType))
}
