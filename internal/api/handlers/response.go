// Package handlers provides HTTP request handlers for the API.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	apierrors "github.com/narvanalabs/mocktraffic/internal/api/errors"
	"github.com/narvanalabs/mocktraffic/internal/store"
	"github.com/narvanalabs/mocktraffic/pkg/logger"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// decodeJSON decodes the request body into v. An empty body decodes to the
// zero value. It writes a validation error and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		apierrors.Write(w, r, apierrors.NewValidationError("Invalid request body"))
		return false
	}
	return true
}

// writeInternal writes a 500 response with message.
func writeInternal(w http.ResponseWriter, r *http.Request, message string) {
	apierrors.Write(w, r, apierrors.NewInternalError(message))
}

// writeStoreError writes 503 when err means storage is unreachable and a 500
// with message otherwise.
func writeStoreError(w http.ResponseWriter, r *http.Request, message string, err error) {
	if errors.Is(err, store.ErrUnavailable) {
		apierrors.Write(w, r, apierrors.NewUnavailableError("Storage is unavailable"))
		return
	}
	writeInternal(w, r, message)
}

// requestLogger returns base annotated with the request ID of r.
func requestLogger(r *http.Request, base *slog.Logger) *slog.Logger {
	return logger.FromContext(r.Context(), base)
}
