package route

import (
	"net/http"
	"os"
	"path/filepath"

	"camsampler/internal/config"
	"camsampler/internal/handler"
	"camsampler/internal/logger"
	"camsampler/internal/metrics"
	"camsampler/internal/middleware"
	"camsampler/internal/repository"
	"camsampler/internal/service"
	"camsampler/internal/service/websocket"
)

// Deps are the services the HTTP surface talks to.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	Manager   *service.Manager
	Snapshots repository.SnapshotRepository
	Hub       *websocket.HubService
	Metrics   *metrics.Metrics
	StaticDir string
}

// dynamicHTMLHandler serves /path as <static>/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/" {
			path = "/index"
		}

		filePath := filepath.Join(staticDir, filepath.Clean("/"+path)+".html")
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers static pages, the camera API, log endpoints and
// metrics, and wraps the mux with the authentication middleware.
func SetupRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()

	staticDir := d.StaticDir
	if staticDir == "" {
		staticDir = "static"
	}
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))

	// Cameras
	mux.HandleFunc("/api/cameras", handler.ListCamerasHandler(d.Manager, d.Logger))
	mux.HandleFunc("/api/cameras/snapshot", handler.ForceSnapshotHandler(d.Manager, d.Logger))
	mux.HandleFunc("/api/cameras/preview", handler.PreviewHandler(d.Manager, d.Logger))
	mux.HandleFunc("/api/cameras/config", handler.UpdateCameraConfigHandler(d.Manager, d.Logger))

	// Samples
	mux.HandleFunc("/api/snapshots", handler.RecentSnapshotsHandler(d.Manager, d.Logger))
	mux.HandleFunc("/api/snapshots/view", handler.ViewSnapshotHandler(d.Manager, d.Logger))
	if d.Snapshots != nil {
		mux.HandleFunc("/api/snapshots/history", handler.SnapshotHistoryHandler(d.Snapshots, d.Logger))
	}
	mux.HandleFunc("/api/storage", handler.StorageUsageHandler(d.Manager, d.Logger))

	if d.Hub != nil {
		mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(d.Hub, d.Logger))
	}
	if d.Metrics != nil {
		mux.Handle("/metrics", d.Metrics.Handler())
	}

	// Logs
	for _, name := range []string{"info", "warning", "error"} {
		file := name + ".log"
		mux.HandleFunc("/logs/"+name, handler.LogFileHandler(d.Logger, file))
		mux.HandleFunc("/logs/"+name+"/clear", handler.ClearLogFileHandler(d.Logger, file))
	}

	// Auth
	mux.HandleFunc("/auth/login", handler.LoginHandler(d.Config, d.Logger))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	// Pages: /settings -> static/settings.html
	mux.HandleFunc("/", dynamicHTMLHandler(staticDir))

	return middleware.AuthMiddleware(mux)
}
