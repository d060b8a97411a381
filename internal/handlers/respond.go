// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"classifieds/internal/hierarchy"
)

// maxBodyBytes caps admin request bodies. A full reorder of a large tree
// stays well below it.
const maxBodyBytes = 1 << 20

// errorBody is the envelope for every non-2xx response.
type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error envelope with the given status code.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps hierarchy errors onto HTTP status codes. A broken parent
// chain falls through to 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, hierarchy.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, hierarchy.ErrHasChildren), errors.Is(err, hierarchy.ErrCycle):
		return http.StatusConflict
	case errors.Is(err, hierarchy.ErrInvalidType), errors.Is(err, hierarchy.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError answers a failed service call. Client errors echo the
// message; server errors are logged and hidden behind a generic one.
func writeServiceError(w http.ResponseWriter, r *http.Request, domain string, err error) {
	status := statusFor(err)
	if status < http.StatusInternalServerError {
		writeError(w, status, err.Error())
		return
	}

	var broken *hierarchy.BrokenChainError
	if errors.As(err, &broken) {
		slog.Error("taxonomy data integrity alarm",
			"domain", domain,
			"node_id", broken.NodeID,
			"missing_parent_id", broken.MissingParentID,
			"path", r.URL.Path,
		)
		writeError(w, status, "taxonomy data is inconsistent")
		return
	}

	slog.Error("taxonomy request failed",
		"domain", domain,
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	writeError(w, status, "internal server error")
}

// decodeJSON reads a single JSON object from the request body into dst.
// Unknown fields are rejected so typos do not silently become no-ops.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// idParam parses the {id} URL parameter.
func idParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// parentQuery parses the optional ?parent= query parameter. Absent or empty
// means the root level.
func parentQuery(r *http.Request) (*int64, error) {
	raw := r.URL.Query().Get("parent")
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid parent %q", raw)
	}
	return &id, nil
}
