// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// CacheLogEntry is one recorded taxonomy cache invalidation. EntityType is
// the taxonomy table, EntityID the touched node (0 for a full clear).
type CacheLogEntry struct {
	ID            int64     `json:"id"`
	EntityType    string    `json:"entity_type"`
	EntityID      int64     `json:"entity_id"`
	Action        string    `json:"action"`
	InvalidatedAt time.Time `json:"invalidated_at"`
}

// CacheLogFilter narrows RecentEntries. An empty EntityType matches every
// taxonomy.
type CacheLogFilter struct {
	EntityType string
	Limit      int
}

// CacheLogStore writes and reads the cache_invalidation_log table.
type CacheLogStore struct {
	db *sql.DB
}

func NewCacheLogStore(db *sql.DB) *CacheLogStore {
	return &CacheLogStore{db: db}
}

// Log records an invalidation. It is best effort: a failed insert is logged
// and otherwise ignored so it never fails the mutation that caused it.
func (s *CacheLogStore) Log(ctx context.Context, entityType string, entityID int64, action string) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_invalidation_log (entity_type, entity_id, action) VALUES ($1, $2, $3)`,
		entityType, entityID, action,
	)
	if err != nil {
		slog.Warn("cache log insert failed",
			"entity_type", entityType, "entity_id", entityID, "action", action, "error", err)
		return
	}
	slog.Debug("cache invalidation logged", "entity_type", entityType, "entity_id", entityID, "action", action)
}

// RecentEntries returns logged invalidations newest first.
func (s *CacheLogStore) RecentEntries(ctx context.Context, f CacheLogFilter) ([]CacheLogEntry, error) {
	if f.Limit <= 0 {
		return []CacheLogEntry{}, nil
	}

	// $1 = '' disables the type filter.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, action, invalidated_at
		FROM cache_invalidation_log
		WHERE $1::text = '' OR entity_type = $1
		ORDER BY invalidated_at DESC, id DESC
		LIMIT $2
	`, f.EntityType, f.Limit)
	if err != nil {
		return nil, fmt.Errorf("query cache log: %w", err)
	}
	defer rows.Close()

	entries := make([]CacheLogEntry, 0, f.Limit)
	for rows.Next() {
		var e CacheLogEntry
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.InvalidatedAt); err != nil {
			return nil, fmt.Errorf("scan cache log: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache log: %w", err)
	}
	return entries, nil
}
