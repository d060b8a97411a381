// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"classifieds/internal/hierarchy"
	"classifieds/internal/models"
	"classifieds/internal/slug"
)

// PostgreSQL error codes we translate into hierarchy errors.
const (
	pgForeignKeyViolation = "23503"
)

// Table names. They are interpolated into SQL, so only these constants
// may ever be used.
const (
	TableCategories = "categories"
	TableLocations  = "locations"
)

var _ hierarchy.Store = (*NodeStore)(nil)

// NodeStore manages one taxonomy table in the database. Categories and
// locations share the same shape; only locations carry a type column.
type NodeStore struct {
	db      *sql.DB
	table   string
	typed   bool
	columns string
}

// NewCategoryStore returns a NodeStore over the categories table.
func NewCategoryStore(db *sql.DB) *NodeStore {
	return newNodeStore(db, TableCategories, false)
}

// NewLocationStore returns a NodeStore over the locations table.
func NewLocationStore(db *sql.DB) *NodeStore {
	return newNodeStore(db, TableLocations, true)
}

func newNodeStore(db *sql.DB, table string, typed bool) *NodeStore {
	cols := `id, parent_id, name, slug, sort_order, is_active, created_at, updated_at`
	if typed {
		cols += `, type`
	}
	return &NodeStore{db: db, table: table, typed: typed, columns: cols}
}

// Table returns the table this store manages.
func (s *NodeStore) Table() string {
	return s.table
}

// scanNode scans a row selected with s.columns.
func (s *NodeStore) scanNode(scanner interface{ Scan(...any) error }) (*models.Node, error) {
	var n models.Node
	dest := []any{
		&n.ID, &n.ParentID, &n.Name, &n.Slug,
		&n.SortOrder, &n.IsActive, &n.CreatedAt, &n.UpdatedAt,
	}
	var typ string
	if s.typed {
		dest = append(dest, &typ)
	}
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}
	n.Type = models.LocationType(typ)
	return &n, nil
}

func (s *NodeStore) queryNodes(ctx context.Context, op, query string, args ...any) ([]models.Node, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, s.table, err)
	}
	defer rows.Close()

	var items []models.Node
	for rows.Next() {
		n, err := s.scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.table, err)
		}
		items = append(items, *n)
	}
	return items, rows.Err()
}

// ListAll returns every node in the table.
func (s *NodeStore) ListAll(ctx context.Context) ([]models.Node, error) {
	return s.queryNodes(ctx, "list all",
		`SELECT `+s.columns+` FROM `+s.table)
}

// ListChildren returns direct children of parentID (roots for nil),
// ordered by sort_order then id.
func (s *NodeStore) ListChildren(ctx context.Context, parentID *int64) ([]models.Node, error) {
	return s.queryNodes(ctx, "list children",
		`SELECT `+s.columns+` FROM `+s.table+`
		WHERE parent_id IS NOT DISTINCT FROM $1::bigint
		ORDER BY sort_order, id`, parentID)
}

// GetByID retrieves a node by ID. Returns hierarchy.ErrNotFound if absent.
func (s *NodeStore) GetByID(ctx context.Context, id int64) (*models.Node, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+s.columns+` FROM `+s.table+` WHERE id = $1`, id)
	n, err := s.scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %d: %w", s.table, id, hierarchy.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s by id: %w", s.table, err)
	}
	return n, nil
}

// NextSortOrder returns the next sort_order value for a given parent.
func (s *NodeStore) NextSortOrder(ctx context.Context, parentID *int64) (int, error) {
	var maxOrder sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(sort_order) FROM `+s.table+` WHERE parent_id IS NOT DISTINCT FROM $1::bigint`,
		parentID,
	).Scan(&maxOrder)
	if err != nil {
		return 0, fmt.Errorf("next sort order %s: %w", s.table, err)
	}
	if maxOrder.Valid {
		return int(maxOrder.Int64) + 1, nil
	}
	return 0, nil
}

// Create inserts a new node and returns it. A nil SortOrder appends the
// node after its last sibling.
func (s *NodeStore) Create(ctx context.Context, in models.NodeInput) (*models.Node, error) {
	order := 0
	if in.SortOrder != nil {
		order = *in.SortOrder
	} else {
		next, err := s.NextSortOrder(ctx, in.ParentID)
		if err != nil {
			return nil, err
		}
		order = next
	}

	cols := `parent_id, name, slug, sort_order, is_active`
	vals := `$1, $2, $3, $4, $5`
	args := []any{in.ParentID, in.Name, slug.Generate(in.Name), order, in.IsActive}
	if s.typed {
		cols += `, type`
		vals += `, $6`
		args = append(args, string(in.Type))
	}

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO `+s.table+` (`+cols+`) VALUES (`+vals+`) RETURNING `+s.columns,
		args...,
	)
	n, err := s.scanNode(row)
	if isPgCode(err, pgForeignKeyViolation) {
		return nil, fmt.Errorf("create %s: parent: %w", s.table, hierarchy.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", s.table, err)
	}
	return n, nil
}

// Update modifies the non-structural fields of a node. Nil fields keep
// their current value; the slug follows the name.
func (s *NodeStore) Update(ctx context.Context, id int64, p models.NodePatch) (*models.Node, error) {
	var name, nodeSlug *string
	if p.Name != nil {
		gen := slug.Generate(*p.Name)
		name, nodeSlug = p.Name, &gen
	}

	set := `name = COALESCE($2, name), slug = COALESCE($3, slug),
		sort_order = COALESCE($4, sort_order), is_active = COALESCE($5, is_active)`
	args := []any{id, name, nodeSlug, p.SortOrder, p.IsActive}
	if s.typed {
		var typ *string
		if p.Type != nil {
			t := string(*p.Type)
			typ = &t
		}
		set += `, type = COALESCE($6, type)`
		args = append(args, typ)
	}

	row := s.db.QueryRowContext(ctx,
		`UPDATE `+s.table+` SET `+set+`, updated_at = NOW() WHERE id = $1 RETURNING `+s.columns,
		args...,
	)
	n, err := s.scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update %s %d: %w", s.table, id, hierarchy.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", s.table, err)
	}
	return n, nil
}

// Move re-parents a node and appends it after its new siblings.
func (s *NodeStore) Move(ctx context.Context, id int64, parentID *int64) (*models.Node, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE `+s.table+` SET
			parent_id = $2,
			sort_order = COALESCE((
				SELECT MAX(sort_order) + 1 FROM `+s.table+`
				WHERE parent_id IS NOT DISTINCT FROM $2::bigint AND id <> $1
			), 0),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+s.columns,
		id, parentID,
	)
	n, err := s.scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("move %s %d: %w", s.table, id, hierarchy.ErrNotFound)
	}
	if isPgCode(err, pgForeignKeyViolation) {
		return nil, fmt.Errorf("move %s %d: parent: %w", s.table, id, hierarchy.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("move %s: %w", s.table, err)
	}
	return n, nil
}

// Delete removes a node by ID. The parent_id foreign key is ON DELETE
// RESTRICT, so a node with children is rejected with ErrHasChildren.
func (s *NodeStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE id = $1`, id)
	if isPgCode(err, pgForeignKeyViolation) {
		return fmt.Errorf("delete %s %d: %w", s.table, id, hierarchy.ErrHasChildren)
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", s.table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", s.table, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete %s %d: %w", s.table, id, hierarchy.ErrNotFound)
	}
	return nil
}

// Reorder updates sort_order and parent_id for multiple nodes in a transaction.
func (s *NodeStore) Reorder(ctx context.Context, items []models.ReorderItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE `+s.table+` SET parent_id = $1, sort_order = $2, updated_at = $3
		WHERE id = $4`)
	if err != nil {
		return fmt.Errorf("prepare reorder: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, item := range items {
		res, err := stmt.ExecContext(ctx, item.ParentID, item.Order, now, item.ID)
		if err != nil {
			return fmt.Errorf("reorder %s %d: %w", s.table, item.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("reorder %s %d: %w", s.table, item.ID, hierarchy.ErrNotFound)
		}
	}

	return tx.Commit()
}

// isPgCode reports whether err is a PostgreSQL error with the given SQLSTATE.
func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
