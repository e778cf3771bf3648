// Package handlers implements the JSON HTTP handlers of the Invoicedeck API.
package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/invoicedeck/invoicedeck/internal/apperr"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps an application error to its JSON response. Unknown errors
// become a generic 500 without leaking internals.
func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: apperr.CodeOf(err)}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		body.Details = ae.Message
	}
	writeJSON(w, apperr.StatusOf(err), body)
}

// decodeJSON decodes the request body into v, respecting the MaxBytesReader
// limit installed by the caller. An over-limit body surfaces as a validation
// error before any store is touched.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.Validation("request body exceeds the %d byte limit", maxErr.Limit)
		}
		return apperr.Validation("invalid JSON body: %v", err)
	}
	return nil
}

// dataURLPrefix marks an image payload supplied inline rather than as an
// existing blob-key reference.
const dataURLPrefix = "data:"

// isDataURL reports whether s is an inline base64 image payload.
func isDataURL(s string) bool { return strings.HasPrefix(s, dataURLPrefix) }

// decodeDataURL parses a "data:<mediatype>;base64,<payload>" string into raw
// bytes and the declared content type.
func decodeDataURL(s string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(s, dataURLPrefix)
	if !ok {
		return nil, "", fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("malformed data URL: missing comma")
	}
	contentType, enc, _ := strings.Cut(meta, ";")
	if enc != "base64" {
		return nil, "", fmt.Errorf("unsupported data URL encoding %q", enc)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decoding base64 payload: %w", err)
	}
	return data, contentType, nil
}
