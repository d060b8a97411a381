package hierarchy

import "strconv"

// Cache keys live here so the formats do not drift across the package.

const (
	keyAllNodes    = "nodes:all"
	keyActiveNodes = "nodes:active"
)

func keyChildren(parentID *int64) string {
	if parentID == nil {
		return "children:root"
	}
	return "children:" + strconv.FormatInt(*parentID, 10)
}

func keyPath(id int64) string { return "path:" + strconv.FormatInt(id, 10) }

// keyMeta separates public metadata, which counts only visible
// descendants, from the full view.
func keyMeta(id int64, active bool) string {
	if active {
		return "meta:active:" + strconv.FormatInt(id, 10)
	}
	return "meta:" + strconv.FormatInt(id, 10)
}
