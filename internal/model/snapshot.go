package model

import "time"

// Snapshot represents a catalogued sample file.
type Snapshot struct {
	ID         int64     `json:"id"`
	Camera     string    `json:"camera"`     // Camera id
	CameraName string    `json:"cameraName"` // Display name at capture time
	Filename   string    `json:"filename"`
	FilePath   string    `json:"filepath"`
	Timestamp  time.Time `json:"timestamp"`
	FileSize   int64     `json:"filesize"`
	Persons    int       `json:"persons"`
	Reason     string    `json:"reason"`
}
