// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers contains the HTTP handlers for the taxonomy JSON API.
// Handlers are grouped by audience (public, admin) and receive their
// dependencies through the handler struct.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"classifieds/internal/hierarchy"
	"classifieds/internal/models"
	"classifieds/internal/store"
)

// Cache log paging bounds.
const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

// AuditLog records cache invalidations. *store.CacheLogStore satisfies it.
type AuditLog interface {
	Log(ctx context.Context, entityType string, entityID int64, action string)
	RecentEntries(ctx context.Context, f store.CacheLogFilter) ([]store.CacheLogEntry, error)
}

// Taxonomy serves the category and location trees. Each taxonomy is
// addressed by its domain name in the {domain} URL parameter.
type Taxonomy struct {
	services map[string]*hierarchy.Service
	audit    AuditLog
}

// NewTaxonomy creates the handler group. audit may be nil.
func NewTaxonomy(audit AuditLog, services ...*hierarchy.Service) *Taxonomy {
	m := make(map[string]*hierarchy.Service, len(services))
	for _, svc := range services {
		m[svc.Domain()] = svc
	}
	return &Taxonomy{services: m, audit: audit}
}

// Domains returns the served domain names, sorted.
func (h *Taxonomy) Domains() []string {
	names := make([]string, 0, len(h.services))
	for name := range h.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// service resolves {domain}, answering 404 for unknown names.
func (h *Taxonomy) service(w http.ResponseWriter, r *http.Request) (*hierarchy.Service, bool) {
	domain := chi.URLParam(r, "domain")
	svc, ok := h.services[domain]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown taxonomy "+strconv.Quote(domain))
		return nil, false
	}
	return svc, true
}

// serviceAndID resolves {domain} and {id} together.
func (h *Taxonomy) serviceAndID(w http.ResponseWriter, r *http.Request) (*hierarchy.Service, int64, bool) {
	svc, ok := h.service(w, r)
	if !ok {
		return nil, 0, false
	}
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, 0, false
	}
	return svc, id, true
}

func (h *Taxonomy) record(ctx context.Context, domain string, id int64, action string) {
	if h.audit != nil {
		h.audit.Log(ctx, domain, id, action)
	}
}

// --- Public ---

// Tree returns the active forest.
func (h *Taxonomy) Tree(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	forest, err := svc.ActiveTree(r.Context())
	if err != nil {
		writeServiceError(w, r, svc.Domain(), err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(forest))
}

// Children returns the active direct children of ?parent= (roots if absent).
// A parent hidden by an inactive node is 404.
func (h *Taxonomy) Children(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	parentID, err := parentQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	nodes, err := svc.ActiveChildren(r.Context(), parentID)
	if err != nil {
		writeServiceError(w, r, svc.Domain(), err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(nodes))
}

// Breadcrumb returns the root-first chain for display. A broken chain
// degrades to the node alone; a chain through an inactive node is 404.
func (h *Taxonomy) Breadcrumb(w http.ResponseWriter, r *http.Request) {
	svc, id, ok := h.serviceAndID(w, r)
	if !ok {
		return
	}
	path, err := svc.ActiveBreadcrumb(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, svc.Domain(), err)
		return
	}
	writeJSON(w, http.StatusOK, path)
}

// Path returns the strict root-first chain. A broken chain is a 500 and a
// chain through an inactive node is 404.
func (h *Taxonomy) Path(w http.ResponseWriter, r *http.Request) {
	svc, id, ok := h.serviceAndID(w, r)
	if !ok {
		return
	}
	path, err := svc.ActivePath(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, svc.Domain(), err)
		return
	}
	writeJSON(w, http.StatusOK, path)
}

// Meta returns depth, counts, and the name path of a visible node. Hidden
// descendants are not counted.
func (h *Taxonomy) Meta(w http.ResponseWriter, r *http.Request) {
	h.meta(w, r, (*hierarchy.Service).ActiveMetadata)
}

func (h *Taxonomy) meta(w http.ResponseWriter, r *http.Request,
	load func(*hierarchy.Service, context.Context, int64) (*models.NodeMeta, error)) {
	svc, id, ok := h.serviceAndID(w, r)
	if !ok {
		return
	}
	meta, err := load(svc, r.Context(), id)
	if err != nil {
		writeServiceError(w, r, svc.Domain(), err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// Option is one entry of a flattened tree, ready for a select input.
type Option struct {
	ID       int64               `json:"id"`
	ParentID *int64              `json:"parent_id"`
	Name     string              `json:"name"`
	Slug     string              `json:"slug"`
	Depth    int                 `json:"depth"`
	Type     models.LocationType `json:"type,omitempty"`
}

// Options returns the active tree flattened depth-first.
func (h *Taxonomy) Options(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	forest, err := svc.ActiveTree(r.Context())
	if err != nil {
		writeServiceError(w, r, svc.Domain(), err)
		return
	}

	flat := hierarchy.Flatten(forest)
	opts := make([]Option, len(flat))
	for i, n := range flat {
		opts[i] = Option{
			ID:       n.ID,
			ParentID: n.ParentID,
			Name:     n.Name,
			Slug:     n.Slug,
			Depth:    n.Depth,
			Type:     n.Type,
		}
	}
	writeJSON(w, http.StatusOK, opts)
}

// --- Admin ---

// AdminTree returns the full forest, inactive nodes included.
func (h *Taxonomy) AdminTree(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	forest, err := svc.Tree(r.Context())
	if err != nil {
		writeServiceError(w, r, svc.Domain(), err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(forest))
}

// AdminMeta is Meta over every node, inactive ones included.
func (h *Taxonomy) AdminMeta(w http.ResponseWriter, r *http.Request) {
	h.meta(w, r, (*hierarchy.Service).Metadata)
}

// Create adds a node.
func (h *Taxonomy) Create(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}

	var req createNodeRequest
	if !h.bind(w, r, &req) {
		return
	}

	node, err := svc.Create(r.Context(), req.input())
	if err != nil {
		writeServiceError(w, r, svc.Domain(), err)
		return
	}

	h.record(r.Context(), svc.Domain(), node.ID, "create")
	slog.Info("taxonomy node created", "domain", svc.Domain(), "id", node.ID, "name", node.Name)
	writeJSON(w, http.StatusCreated, node)
}

// Update applies a partial update. Sending "parent_id" (null for root)
// moves the node as well.
func (h *Taxonomy) Update(w http.ResponseWriter, r *http.Request) {
	svc, id, ok := h.serviceAndID(w, r)
	if !ok {
		return
	}

	var req updateNodeRequest
	if !h.bind(w, r, &req) {
		return
	}

	node, err := svc.Update(r.Context(), id, req.patch())
	if err != nil {
		writeServiceError(w, r, svc.Domain(), err)
		return
	}

	h.record(r.Context(), svc.Domain(), id, "update")
	writeJSON(w, http.StatusOK, node)
}

// Move re-parents a node. A null parent_id moves it to the root level.
func (h *Taxonomy) Move(w http.ResponseWriter, r *http.Request) {
	svc, id, ok := h.serviceAndID(w, r)
	if !ok {
		return
	}

	var req moveNodeRequest
	if !h.bind(w, r, &req) {
		return
	}

	node, err := svc.Move(r.Context(), id, req.ParentID)
	if err != nil {
		writeServiceError(w, r, svc.Domain(), err)
		return
	}

	h.record(r.Context(), svc.Domain(), id, "move")
	writeJSON(w, http.StatusOK, node)
}

// Delete removes a leaf node.
func (h *Taxonomy) Delete(w http.ResponseWriter, r *http.Request) {
	svc, id, ok := h.serviceAndID(w, r)
	if !ok {
		return
	}

	if err := svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, svc.Domain(), err)
		return
	}

	h.record(r.Context(), svc.Domain(), id, "delete")
	slog.Info("taxonomy node deleted", "domain", svc.Domain(), "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// Reorder applies a batch of parent and sort order changes.
func (h *Taxonomy) Reorder(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}

	var req reorderRequest
	if !h.bind(w, r, &req) {
		return
	}

	if err := svc.Reorder(r.Context(), req.items()); err != nil {
		writeServiceError(w, r, svc.Domain(), err)
		return
	}

	for _, it := range req.Items {
		h.record(r.Context(), svc.Domain(), it.ID, "reorder")
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearCache drops the domain's cache here and on every other instance.
func (h *Taxonomy) ClearCache(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}

	svc.Invalidate(r.Context(), 0)
	h.record(r.Context(), svc.Domain(), 0, "clear")
	slog.Info("taxonomy cache cleared by admin", "domain", svc.Domain())
	w.WriteHeader(http.StatusNoContent)
}

// CacheLog lists recent invalidations, newest first. ?limit= defaults to 50
// and ?domain= restricts the list to one taxonomy.
func (h *Taxonomy) CacheLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.CacheLogFilter{EntityType: q.Get("domain"), Limit: defaultLogLimit}
	if f.EntityType != "" {
		if _, ok := h.services[f.EntityType]; !ok {
			writeError(w, http.StatusNotFound, "unknown taxonomy "+strconv.Quote(f.EntityType))
			return
		}
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit "+strconv.Quote(raw))
			return
		}
		f.Limit = min(n, maxLogLimit)
	}

	if h.audit == nil {
		writeJSON(w, http.StatusOK, []store.CacheLogEntry{})
		return
	}
	entries, err := h.audit.RecentEntries(r.Context(), f)
	if err != nil {
		slog.Error("cache log query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// bind decodes and validates a request body, answering 400 or 422 itself
// when it fails.
func (h *Taxonomy) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}

	err := validateRequest(dst)
	if err == nil {
		return true
	}

	var verr *validationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "validation failed", Fields: verr.Fields})
		return false
	}
	slog.Error("request validation failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
	return false
}

// orEmpty keeps empty results as [] rather than null on the wire.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
