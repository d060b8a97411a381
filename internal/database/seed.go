package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	"classifieds/internal/slug"
)

// seedNode is one node of a development seed tree.
type seedNode struct {
	name     string
	typ      string
	children []seedNode
}

var seedCategories = []seedNode{
	{name: "Electronics", children: []seedNode{
		{name: "Phones"},
		{name: "Laptops"},
		{name: "TV & Audio"},
	}},
	{name: "Vehicles", children: []seedNode{
		{name: "Cars"},
		{name: "Motorcycles"},
		{name: "Parts & Accessories"},
	}},
	{name: "Real Estate", children: []seedNode{
		{name: "Apartments for Sale"},
		{name: "Apartments for Rent"},
	}},
}

var seedLocations = []seedNode{
	{name: "Romania", typ: "country", children: []seedNode{
		{name: "Cluj-Napoca", typ: "city", children: []seedNode{
			{name: "Gheorgheni", typ: "district", children: []seedNode{
				{name: "Alverna", typ: "neighborhood"},
			}},
			{name: "Manastur", typ: "district"},
		}},
		{name: "Bucharest", typ: "city", children: []seedNode{
			{name: "Sector 1", typ: "district"},
		}},
	}},
}

// Seed populates empty taxonomy tables with development data. Tables that
// already contain rows are left alone.
func Seed(db *sql.DB) error {
	if err := seedTable(db, "categories", false, seedCategories); err != nil {
		return err
	}
	return seedTable(db, "locations", true, seedLocations)
}

func seedTable(db *sql.DB, table string, typed bool, roots []seedNode) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
		return fmt.Errorf("seed check %s: %w", table, err)
	}
	if count > 0 {
		slog.Info("taxonomy already seeded, skipping", "table", table)
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed begin %s: %w", table, err)
	}
	defer tx.Rollback()

	var inserted int
	var insert func(parentID *int64, nodes []seedNode) error
	insert = func(parentID *int64, nodes []seedNode) error {
		for i, n := range nodes {
			var id int64
			var err error
			if typed {
				err = tx.QueryRow(`
					INSERT INTO `+table+` (parent_id, name, slug, sort_order, type)
					VALUES ($1, $2, $3, $4, $5) RETURNING id
				`, parentID, n.name, slug.Generate(n.name), i, n.typ).Scan(&id)
			} else {
				err = tx.QueryRow(`
					INSERT INTO `+table+` (parent_id, name, slug, sort_order)
					VALUES ($1, $2, $3, $4) RETURNING id
				`, parentID, n.name, slug.Generate(n.name), i).Scan(&id)
			}
			if err != nil {
				return fmt.Errorf("seed insert %s %q: %w", table, n.name, err)
			}
			inserted++
			if err := insert(&id, n.children); err != nil {
				return err
			}
		}
		return nil
	}

	if err := insert(nil, roots); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit %s: %w", table, err)
	}

	slog.Info("taxonomy seeded", "table", table, "nodes", inserted)
	return nil
}
