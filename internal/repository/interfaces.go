package repository

import (
	"camsampler/internal/dto"
	"camsampler/internal/model"
)

// SnapshotRepository defines the interface for the snapshot catalog.
type SnapshotRepository interface {
	// Create operations
	Insert(s *model.Snapshot) (int64, error)
	InsertBatch(snapshots []model.Snapshot) (int, error)

	// Read operations
	GetByFilename(camera, filename string) (*model.Snapshot, error)
	GetAll(filter *dto.SnapshotFilters) ([]model.Snapshot, error)
	GetTotalCount(filter *dto.SnapshotFilters) (int, error)
	CountByCamera() (map[string]int, error)

	// Delete operations
	DeleteByFilename(camera, filename string) error
}
