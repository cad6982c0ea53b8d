package sqlite

import (
	"database/sql"
	"fmt"

	"camsampler/internal/dto"
	"camsampler/internal/model"
)

// SnapshotRepository implements repository.SnapshotRepository for SQLite.
type SnapshotRepository struct {
	db *DB
}

// NewSnapshotRepository creates a new SQLite snapshot repository.
func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

const snapshotColumns = `id, camera, camera_name, filename, filepath, timestamp, filesize, persons, reason`

// Insert adds a snapshot record. A second sample in the same second replaces
// the file on disk, so the existing row is updated instead.
func (r *SnapshotRepository) Insert(s *model.Snapshot) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO snapshots (camera, camera_name, filename, filepath, timestamp, filesize, persons, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(camera, filename) DO UPDATE SET
			camera_name = excluded.camera_name,
			filepath = excluded.filepath,
			filesize = excluded.filesize,
			persons = excluded.persons,
			reason = excluded.reason
	`, s.Camera, s.CameraName, s.Filename, s.FilePath, s.Timestamp.UTC(), s.FileSize, s.Persons, s.Reason)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return result.LastInsertId()
}

// InsertBatch adds records in one transaction, skipping ones already present.
// It returns how many rows were added.
func (r *SnapshotRepository) InsertBatch(snapshots []model.Snapshot) (int, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO snapshots (camera, camera_name, filename, filepath, timestamp, filesize, persons, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, s := range snapshots {
		result, err := stmt.Exec(s.Camera, s.CameraName, s.Filename, s.FilePath, s.Timestamp.UTC(), s.FileSize, s.Persons, s.Reason)
		if err != nil {
			return 0, fmt.Errorf("failed to insert snapshot %s: %w", s.Filename, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}

// GetByFilename retrieves a snapshot of a camera by its file name.
func (r *SnapshotRepository) GetByFilename(camera, filename string) (*model.Snapshot, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`SELECT `+snapshotColumns+` FROM snapshots WHERE camera = ? AND filename = ?`, camera, filename)
	s, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return s, nil
}

// GetAll retrieves snapshots matching the filter, newest first.
func (r *SnapshotRepository) GetAll(filter *dto.SnapshotFilters) ([]model.Snapshot, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)
	query := `SELECT ` + snapshotColumns + ` FROM snapshots` + where + ` ORDER BY timestamp DESC, id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []model.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, *s)
	}
	return snapshots, rows.Err()
}

// GetTotalCount returns the number of snapshots matching the filter,
// ignoring its limit and offset.
func (r *SnapshotRepository) GetTotalCount(filter *dto.SnapshotFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)
	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM snapshots`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

// CountByCamera returns the number of catalogued snapshots per camera id.
func (r *SnapshotRepository) CountByCamera() (map[string]int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT camera, COUNT(*) FROM snapshots GROUP BY camera`)
	if err != nil {
		return nil, fmt.Errorf("failed to count snapshots: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var camera string
		var count int
		if err := rows.Scan(&camera, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[camera] = count
	}
	return counts, rows.Err()
}

// DeleteByFilename removes the record of one snapshot file.
func (r *SnapshotRepository) DeleteByFilename(camera, filename string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM snapshots WHERE camera = ? AND filename = ?`, camera, filename); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

func buildWhere(filter *dto.SnapshotFilters) (string, []interface{}) {
	where := " WHERE 1=1"
	args := []interface{}{}
	if filter == nil {
		return where, args
	}

	if filter.Camera != "" {
		where += " AND camera = ?"
		args = append(args, filter.Camera)
	}
	if filter.Reason != "" {
		where += " AND reason = ?"
		args = append(args, filter.Reason)
	}
	if !filter.DateAfter.IsZero() {
		where += " AND timestamp >= ?"
		args = append(args, filter.DateAfter.UTC())
	}
	if !filter.DateBefore.IsZero() {
		where += " AND timestamp <= ?"
		args = append(args, filter.DateBefore.UTC())
	}
	if filter.MinPersons > 0 {
		where += " AND persons >= ?"
		args = append(args, filter.MinPersons)
	}
	return where, args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (*model.Snapshot, error) {
	var s model.Snapshot
	if err := row.Scan(&s.ID, &s.Camera, &s.CameraName, &s.Filename, &s.FilePath, &s.Timestamp, &s.FileSize, &s.Persons, &s.Reason); err != nil {
		return nil, err
	}
	return &s, nil
}
