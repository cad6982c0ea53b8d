// SnapshotsData is a paginated response payload for the snapshot history.
package dto

type SnapshotsData struct {
	Snapshots   []SnapshotInfo `json:"snapshots"`
	Length      int            `json:"length"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
	Limit       int            `json:"pageSize"`
}

// RecentSnapshots lists the newest sample files of one camera.
type RecentSnapshots struct {
	Camera    string   `json:"camera"`
	Snapshots []string `json:"snapshots"`
}
