package dto

import (
	"encoding/json"
	"time"
)

// SnapshotInfo is one entry of the snapshot history page.
type SnapshotInfo struct {
	Name      string    `json:"name"`
	Camera    string    `json:"camera"`
	Date      time.Time `json:"date"`
	TimeOfDay time.Time `json:"timeOfDay"`
	Persons   int       `json:"persons"`
	Reason    string    `json:"reason"`
	Size      int64     `json:"size"`
}

// MarshalJSON formats date and time-of-day the way the gallery pages expect.
func (s SnapshotInfo) MarshalJSON() ([]byte, error) {
	type Alias SnapshotInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      s.Date.Format("02-01-2006"),
		TimeOfDay: s.TimeOfDay.Format("15:04:05"),
		Alias:     (Alias)(s),
	})
}
