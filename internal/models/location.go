package models

// LocationType is the administrative level of a location node.
type LocationType string

const (
	LocationCountry      LocationType = "country"
	LocationCity         LocationType = "city"
	LocationDistrict     LocationType = "district"
	LocationNeighborhood LocationType = "neighborhood"
)

// locationLevels lists location types from the top of the tree down.
var locationLevels = []LocationType{
	LocationCountry,
	LocationCity,
	LocationDistrict,
	LocationNeighborhood,
}

// MaxLocationDepth is the number of distinct location levels.
const MaxLocationDepth = 4

// Valid reports whether t is one of the known location types.
func (t LocationType) Valid() bool {
	return t.Level() >= 0
}

// Level returns the zero-based depth of t, or -1 for an unknown type.
func (t LocationType) Level() int {
	for i, l := range locationLevels {
		if l == t {
			return i
		}
	}
	return -1
}

// Next returns the type a child of t must have. The second value is false
// for the lowest level (and for unknown types), which cannot have children.
func (t LocationType) Next() (LocationType, bool) {
	lvl := t.Level()
	if lvl < 0 || lvl+1 >= len(locationLevels) {
		return "", false
	}
	return locationLevels[lvl+1], true
}

// RootLocationType is the only type allowed at the top of the location tree.
func RootLocationType() LocationType {
	return locationLevels[0]
}
