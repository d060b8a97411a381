// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// testHash uses the minimum cost so the suite stays fast.
func testHash(t *testing.T, token string) string {
	t.Helper()
	b, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword: %v", err)
	}
	return string(b)
}

func TestRequireAdminToken(t *testing.T) {
	hash := testHash(t, "s3cret-admin-token")

	var reached bool
	handler := RequireAdminToken(hash)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
		admin  bool
	}{
		{name: "valid token", header: "Bearer s3cret-admin-token", want: http.StatusNoContent, admin: true},
		{name: "scheme is case-insensitive", header: "bearer s3cret-admin-token", want: http.StatusNoContent, admin: true},
		{name: "wrong token", header: "Bearer guess", want: http.StatusUnauthorized},
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "basic scheme", header: "Basic czNjcmV0", want: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer   ", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = false
			req := httptest.NewRequest(http.MethodPost, "/api/admin/categories", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
			if reached != tt.admin {
				t.Errorf("handler reached: got %v, want %v", reached, tt.admin)
			}
			if tt.want == http.StatusUnauthorized && rr.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 should carry a WWW-Authenticate challenge")
			}
		})
	}
}

func TestRequireAdminTokenUnconfigured(t *testing.T) {
	handler := RequireAdminToken("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without a configured hash")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/cache-log", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", rr.Code)
	}
}

func TestHashToken(t *testing.T) {
	hash, err := HashToken("rotate-me")
	if err != nil {
		t.Fatalf("HashToken: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("rotate-me")); err != nil {
		t.Errorf("hash does not verify: %v", err)
	}
}
