package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"camsampler/internal/dto"
	"camsampler/internal/logger"
	"camsampler/internal/repository"
	"camsampler/internal/service"
	"camsampler/internal/storage"
)

// RecentSnapshotsHandler lists the newest samples of a camera. Without a
// limit parameter the camera's configured limit applies.
func RecentSnapshotsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		camera, ok := cameraParam(w, r)
		if !ok {
			return
		}

		var snapshots []string
		var err error
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, convErr := strconv.Atoi(raw)
			if convErr != nil {
				http.Error(w, "Invalid limit", http.StatusBadRequest)
				return
			}
			snapshots, err = manager.RecentSnapshots(camera, limit)
		} else {
			snapshots, err = manager.DefaultRecentSnapshots(camera)
		}
		if err != nil {
			writeCameraError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, dto.RecentSnapshots{Camera: camera, Snapshots: snapshots})
	}
}

// ViewSnapshotHandler serves one stored sample given by the "image" query
// parameter, relative to the camera directory.
func ViewSnapshotHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		camera, ok := cameraParam(w, r)
		if !ok {
			return
		}
		image := r.URL.Query().Get("image")
		if image == "" {
			http.Error(w, "Image parameter is required", http.StatusBadRequest)
			return
		}

		filePath, err := manager.ResolveSnapshot(camera, image)
		if errors.Is(err, storage.ErrOutsideBase) {
			logger.Warning("Rejected snapshot path %q for camera %s", image, camera)
			http.Error(w, "Invalid image path", http.StatusBadRequest)
			return
		}
		if err != nil {
			writeCameraError(w, logger, err)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// SnapshotHistoryHandler returns a filtered page of the snapshot catalog.
func SnapshotHistoryHandler(repo repository.SnapshotRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &dto.SnapshotFilters{
			Camera:     q.Get("camera"),
			Reason:     q.Get("reason"),
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: endOfDay(parseDate(q.Get("dateBefore"))),
			MinPersons: atoiDefault(q.Get("minPersons"), 0),
			Limit:      limit,
			Offset:     (page - 1) * limit,
		}

		snapshots, err := repo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying snapshots from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := repo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting snapshots: %v", err)
			totalCount = len(snapshots)
		}

		infos := make([]dto.SnapshotInfo, 0, len(snapshots))
		for _, s := range snapshots {
			local := s.Timestamp.Local()
			infos = append(infos, dto.SnapshotInfo{
				Name:      s.Filename,
				Camera:    s.Camera,
				Date:      local,
				TimeOfDay: local,
				Persons:   s.Persons,
				Reason:    s.Reason,
				Size:      s.FileSize,
			})
		}

		writeJSON(w, logger, http.StatusOK, dto.SnapshotsData{
			Snapshots:   infos,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// StorageUsageHandler reports disk usage of a camera's samples.
func StorageUsageHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		camera, ok := cameraParam(w, r)
		if !ok {
			return
		}

		usage, err := manager.Usage(camera)
		if err != nil {
			writeCameraError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, usage)
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" (HTML input format) in local time.
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

func endOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.AddDate(0, 0, 1).Add(-time.Second)
}
