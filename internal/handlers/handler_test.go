// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler tests.
// Services run against in-memory stores, so no database is needed.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"classifieds/internal/hierarchy"
	"classifieds/internal/hierarchy/hierarchytest"
	"classifieds/internal/models"
	"classifieds/internal/store"
)

// memAudit is an in-memory AuditLog.
type memAudit struct {
	mu      sync.Mutex
	entries []store.CacheLogEntry
}

func (a *memAudit) Log(_ context.Context, entityType string, entityID int64, action string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, store.CacheLogEntry{
		ID:         int64(len(a.entries) + 1),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
	})
}

func (a *memAudit) RecentEntries(_ context.Context, f store.CacheLogFilter) ([]store.CacheLogEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := []store.CacheLogEntry{}
	for i := len(a.entries) - 1; i >= 0 && len(out) < f.Limit; i-- {
		if f.EntityType != "" && a.entries[i].EntityType != f.EntityType {
			continue
		}
		out = append(out, a.entries[i])
	}
	return out, nil
}

func (a *memAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, e := range a.entries {
		out = append(out, e.EntityType+":"+e.Action)
	}
	return out
}

// testEnv holds the handler under test and its backing stores.
type testEnv struct {
	Categories *hierarchytest.Store
	Locations  *hierarchytest.Store
	Audit      *memAudit
	Taxonomy   *Taxonomy
	Router     chi.Router
}

func i64(v int64) *int64 { return &v }

// newTestEnv seeds:
//
//	categories: 1 Electronics > 2 Phones, 3 Laptops (inactive)
//	            4 Vehicles
//	locations:  10 Romania (country) > 11 Bucharest (city)
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cats := hierarchytest.NewStore(
		models.Node{ID: 1, Name: "Electronics", SortOrder: 0, IsActive: true},
		models.Node{ID: 2, ParentID: i64(1), Name: "Phones", SortOrder: 0, IsActive: true},
		models.Node{ID: 3, ParentID: i64(1), Name: "Laptops", SortOrder: 1, IsActive: false},
		models.Node{ID: 4, Name: "Vehicles", SortOrder: 1, IsActive: true},
	)
	locs := hierarchytest.NewStore(
		models.Node{ID: 10, Name: "Romania", IsActive: true, Type: models.LocationCountry},
		models.Node{ID: 11, ParentID: i64(10), Name: "Bucharest", IsActive: true, Type: models.LocationCity},
	)

	catSvc := hierarchy.NewService(cats, hierarchy.NewCache("categories", 0), hierarchy.Options{Domain: "categories"})
	locSvc := hierarchy.NewService(locs, hierarchy.NewCache("locations", 0), hierarchy.Options{Domain: "locations", Typed: true})

	audit := &memAudit{}
	h := NewTaxonomy(audit, catSvc, locSvc)

	r := chi.NewRouter()
	r.Get("/api/{domain}/tree", h.Tree)
	r.Get("/api/{domain}/children", h.Children)
	r.Get("/api/{domain}/options", h.Options)
	r.Get("/api/{domain}/{id}/breadcrumb", h.Breadcrumb)
	r.Get("/api/{domain}/{id}/path", h.Path)
	r.Get("/api/{domain}/{id}/meta", h.Meta)
	r.Get("/api/admin/cache-log", h.CacheLog)
	r.Get("/api/admin/{domain}/tree", h.AdminTree)
	r.Post("/api/admin/{domain}", h.Create)
	r.Post("/api/admin/{domain}/reorder", h.Reorder)
	r.Post("/api/admin/{domain}/cache/clear", h.ClearCache)
	r.Patch("/api/admin/{domain}/{id}", h.Update)
	r.Post("/api/admin/{domain}/{id}/move", h.Move)
	r.Get("/api/admin/{domain}/{id}/meta", h.AdminMeta)
	r.Delete("/api/admin/{domain}/{id}", h.Delete)

	return &testEnv{Categories: cats, Locations: locs, Audit: audit, Taxonomy: h, Router: r}
}

// do sends a request through the test router.
func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.Router.ServeHTTP(rr, req)
	return rr
}

// decode unmarshals a response body into v, failing the test on error.
func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status: got %d, want %d (body %s)", rr.Code, want, rr.Body.String())
	}
}
