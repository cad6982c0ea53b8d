// SnapshotFilters narrow the catalogued snapshot history.
package dto

import "time"

type SnapshotFilters struct {
	Camera     string
	Reason     string
	DateAfter  time.Time
	DateBefore time.Time
	MinPersons int
	Limit      int
	Offset     int
}
