package database

import (
	"testing"
)

func TestSeedIdempotent(t *testing.T) {
	db := migratedDB(t)

	// Seed only fills empty tables, so calling it twice is safe even when
	// other test packages share the database.
	if err := Seed(db); err != nil {
		t.Fatalf("first Seed: %v", err)
	}
	if err := Seed(db); err != nil {
		t.Fatalf("second Seed: %v", err)
	}

	for _, table := range []string{"categories", "locations"} {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if count < 1 {
			t.Errorf("expected at least 1 row in %s, got %d", table, count)
		}
	}

	// Every seeded location root is a country.
	var badRoots int
	if err := db.QueryRow("SELECT COUNT(*) FROM locations WHERE parent_id IS NULL AND type <> 'country'").Scan(&badRoots); err != nil {
		t.Fatalf("count location roots: %v", err)
	}
	if badRoots != 0 {
		t.Errorf("expected only country roots, found %d others", badRoots)
	}
}

func TestSeedTreesFollowLocationLevels(t *testing.T) {
	next := map[string]string{"country": "city", "city": "district", "district": "neighborhood"}

	var walk func(parentType string, nodes []seedNode)
	walk = func(parentType string, nodes []seedNode) {
		for _, n := range nodes {
			if parentType == "" && n.typ != "country" {
				t.Errorf("%s: root must be a country, got %q", n.name, n.typ)
			}
			if parentType != "" && next[parentType] != n.typ {
				t.Errorf("%s: child of %q must be %q, got %q", n.name, parentType, next[parentType], n.typ)
			}
			walk(n.typ, n.children)
		}
	}
	walk("", seedLocations)
}
