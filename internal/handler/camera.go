package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"camsampler/internal/dto"
	"camsampler/internal/logger"
	"camsampler/internal/service"
)

// ListCamerasHandler returns the status of every camera in configured order.
func ListCamerasHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, logger, http.StatusOK, manager.ListStatus())
	}
}

// ForceSnapshotHandler handles POST /api/cameras/snapshot?camera=ID. The next
// frame of the camera is persisted.
func ForceSnapshotHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		camera, ok := cameraParam(w, r)
		if !ok {
			return
		}

		if err := manager.ForceSnapshot(camera); err != nil {
			writeCameraError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// PreviewHandler serves the newest preview of a camera as JPEG, or 204 when
// no frame has arrived yet.
func PreviewHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		camera, ok := cameraParam(w, r)
		if !ok {
			return
		}

		preview, ok, err := manager.LatestPreview(camera)
		if err != nil {
			writeCameraError(w, logger, err)
			return
		}
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(preview)
	}
}

// UpdateCameraConfigHandler handles POST /api/cameras/config?camera=ID with a
// partial JSON body. Only the given fields change.
func UpdateCameraConfigHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		camera, ok := cameraParam(w, r)
		if !ok {
			return
		}

		if _, err := manager.Pipeline(camera); err != nil {
			writeCameraError(w, logger, err)
			return
		}

		var update dto.CameraConfigUpdate
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&update); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
		if update.IsEmpty() {
			http.Error(w, "No fields to update", http.StatusBadRequest)
			return
		}

		if err := manager.UpdateConfig(camera, update); err != nil {
			writeCameraError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "updated"})
	}
}

func cameraParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	camera := r.URL.Query().Get("camera")
	if camera == "" {
		http.Error(w, "Camera parameter is required", http.StatusBadRequest)
		return "", false
	}
	return camera, true
}

func writeCameraError(w http.ResponseWriter, logger *logger.Logger, err error) {
	if errors.Is(err, service.ErrCameraNotFound) {
		http.Error(w, "Camera not found", http.StatusNotFound)
		return
	}
	logger.Error("Camera request failed: %v", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}
