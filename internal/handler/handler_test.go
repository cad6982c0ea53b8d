package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"camsampler/internal/config"
	"camsampler/internal/dto"
	"camsampler/internal/logger"
	"camsampler/internal/model"
	"camsampler/internal/repository/sqlite"
	"camsampler/internal/service"
	"camsampler/internal/source"
)

// ========================================
// Test Setup Helpers
// ========================================

// oneFrameSource delivers a single frame and then idles until cancelled.
type oneFrameSource struct{ frame []byte }

func (s oneFrameSource) Run(ctx context.Context, handle source.FrameHandler) error {
	if s.frame != nil {
		handle(source.Frame{Image: s.frame, At: time.Now()})
	}
	<-ctx.Done()
	return ctx.Err()
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()

	l := logger.NewLogger(&config.Config{LogDirectory: t.TempDir(), LogLevel: "error"})
	t.Cleanup(l.Close)
	return l
}

func setupManager(t *testing.T, frame []byte) (*service.Manager, config.CameraConfig) {
	t.Helper()

	cam := config.CameraConfig{
		ID:                 "front",
		Name:               "front",
		Device:             "0",
		StorageDir:         filepath.Join(t.TempDir(), "front"),
		RecentSamplesLimit: 2,
		Sampling:           config.SamplingConfig{TimeSpanYears: 10, CooldownHours: 24},
	}
	factory := source.FactoryFunc(func(config.CameraConfig) (source.FrameSource, error) {
		return oneFrameSource{frame: frame}, nil
	})
	m := service.NewManager([]config.CameraConfig{cam}, service.PipelineDeps{
		Factory: factory,
		Logger:  testLogger(t),
	}, nil)
	t.Cleanup(m.StopAll)
	return m, cam
}

func writeSample(t *testing.T, dir, name string, mod time.Time) {
	t.Helper()

	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(name), 0644); err != nil {
		t.Fatalf("Failed to write sample: %v", err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatalf("Failed to set mtime: %v", err)
	}
}

func do(h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

// ========================================
// Camera Handler Tests
// ========================================

func TestListCamerasHandler(t *testing.T) {
	m, _ := setupManager(t, nil)
	rec := do(ListCamerasHandler(m, testLogger(t)), http.MethodGet, "/api/cameras", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var statuses []dto.CameraStatus
	if err := json.NewDecoder(rec.Body).Decode(&statuses); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(statuses) != 1 || statuses[0].ID != "front" || statuses[0].Running {
		t.Errorf("Unexpected statuses: %+v", statuses)
	}
}

func TestForceSnapshotHandler(t *testing.T) {
	m, _ := setupManager(t, nil)
	h := ForceSnapshotHandler(m, testLogger(t))

	tests := []struct {
		name     string
		method   string
		target   string
		expected int
	}{
		{"known camera", http.MethodPost, "/api/cameras/snapshot?camera=front", http.StatusOK},
		{"unknown camera", http.MethodPost, "/api/cameras/snapshot?camera=back", http.StatusNotFound},
		{"missing camera", http.MethodPost, "/api/cameras/snapshot", http.StatusBadRequest},
		{"wrong method", http.MethodGet, "/api/cameras/snapshot?camera=front", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(h, tt.method, tt.target, ""); rec.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, rec.Code)
			}
		})
	}
}

func TestPreviewHandler_NoFrameYet(t *testing.T) {
	m, _ := setupManager(t, nil)
	rec := do(PreviewHandler(m, testLogger(t)), http.MethodGet, "/api/cameras/preview?camera=front", "")

	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 before the first frame, got %d", rec.Code)
	}
}

func TestPreviewHandler_ServesLatestFrame(t *testing.T) {
	frame := []byte("jpeg-bytes")
	m, _ := setupManager(t, frame)
	if failures := m.StartAll(); len(failures) != 0 {
		t.Fatalf("StartAll failed: %v", failures)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok, _ := m.LatestPreview("front"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for the first frame")
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec := do(PreviewHandler(m, testLogger(t)), http.MethodGet, "/api/cameras/preview?camera=front", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %q", ct)
	}
	if rec.Body.String() != string(frame) {
		t.Errorf("Unexpected preview body %q", rec.Body.String())
	}
}

func TestPreviewHandler_UnknownCamera(t *testing.T) {
	m, _ := setupManager(t, nil)
	rec := do(PreviewHandler(m, testLogger(t)), http.MethodGet, "/api/cameras/preview?camera=nope", "")

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestUpdateCameraConfigHandler(t *testing.T) {
	m, _ := setupManager(t, nil)
	h := UpdateCameraConfigHandler(m, testLogger(t))

	tests := []struct {
		name     string
		target   string
		body     string
		expected int
	}{
		{"valid update", "/api/cameras/config?camera=front", `{"name":"Porch","sampling":{"cooldown_hours":2}}`, http.StatusOK},
		{"empty update", "/api/cameras/config?camera=front", `{}`, http.StatusBadRequest},
		{"invalid json", "/api/cameras/config?camera=front", `{"name":`, http.StatusBadRequest},
		{"unknown camera", "/api/cameras/config?camera=back", `{"name":"x"}`, http.StatusNotFound},
		{"unknown camera with empty update", "/api/cameras/config?camera=back", `{}`, http.StatusNotFound},
		{"unknown camera with invalid json", "/api/cameras/config?camera=back", `{"name":`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(h, http.MethodPost, tt.target, tt.body); rec.Code != tt.expected {
				t.Errorf("Expected %d, got %d: %s", tt.expected, rec.Code, rec.Body.String())
			}
		})
	}

	st := m.ListStatus()[0]
	if st.Name != "Porch" {
		t.Errorf("Expected name Porch, got %q", st.Name)
	}
	if st.Sampling.CooldownHours != 2 || st.Sampling.TimeSpanYears != 10 {
		t.Errorf("Only the cooldown should change, got %+v", st.Sampling)
	}
}

// ========================================
// Snapshot Handler Tests
// ========================================

func TestRecentSnapshotsHandler(t *testing.T) {
	m, cam := setupManager(t, nil)
	now := time.Now()
	writeSample(t, cam.StorageDir, "front_1.jpg", now.Add(-3*time.Minute))
	writeSample(t, cam.StorageDir, "front_2.jpg", now.Add(-2*time.Minute))
	writeSample(t, cam.StorageDir, "front_3.jpg", now.Add(-1*time.Minute))
	writeSample(t, cam.StorageDir, "latest.jpg", now)

	h := RecentSnapshotsHandler(m, testLogger(t))

	tests := []struct {
		name     string
		target   string
		expected []string
	}{
		{"configured limit", "/api/snapshots?camera=front", []string{"front_3.jpg", "front_2.jpg"}},
		{"explicit limit", "/api/snapshots?camera=front&limit=10", []string{"front_3.jpg", "front_2.jpg", "front_1.jpg"}},
		{"zero limit", "/api/snapshots?camera=front&limit=0", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, http.MethodGet, tt.target, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", rec.Code)
			}
			var resp dto.RecentSnapshots
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if len(resp.Snapshots) != len(tt.expected) {
				t.Fatalf("Expected %v, got %v", tt.expected, resp.Snapshots)
			}
			for i := range tt.expected {
				if resp.Snapshots[i] != tt.expected[i] {
					t.Errorf("Position %d: expected %s, got %s", i, tt.expected[i], resp.Snapshots[i])
				}
			}
		})
	}

	if rec := do(h, http.MethodGet, "/api/snapshots?camera=front&limit=abc", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("Invalid limit: expected 400, got %d", rec.Code)
	}
}

func TestViewSnapshotHandler(t *testing.T) {
	m, cam := setupManager(t, nil)
	writeSample(t, cam.StorageDir, "front_1.jpg", time.Now())
	h := ViewSnapshotHandler(m, testLogger(t))

	rec := do(h, http.MethodGet, "/api/snapshots/view?camera=front&image=front_1.jpg", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "front_1.jpg" {
		t.Errorf("Unexpected body %q", rec.Body.String())
	}

	tests := []struct {
		name     string
		target   string
		expected int
	}{
		{"escape", "/api/snapshots/view?camera=front&image=../secret.jpg", http.StatusBadRequest},
		{"absolute", "/api/snapshots/view?camera=front&image=/etc/passwd", http.StatusBadRequest},
		{"missing image", "/api/snapshots/view?camera=front", http.StatusBadRequest},
		{"unknown camera", "/api/snapshots/view?camera=back&image=a.jpg", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(h, http.MethodGet, tt.target, ""); rec.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, rec.Code)
			}
		})
	}
}

func TestSnapshotHistoryHandler(t *testing.T) {
	db, err := sqlite.New(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	repo := sqlite.NewSnapshotRepository(db)

	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.Local)
	for i := 0; i < 5; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		name := "front_" + ts.Format("2006-01-02_15-04-05") + ".jpg"
		if _, err := repo.Insert(&model.Snapshot{
			Camera: "front", CameraName: "front", Filename: name,
			FilePath: "/data/front/" + name, Timestamp: ts, Persons: i, Reason: "lottery",
		}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	h := SnapshotHistoryHandler(repo, testLogger(t))
	rec := do(h, http.MethodGet, "/api/snapshots/history?camera=front&page=2&limit=2&dateAfter=2024-05-10&dateBefore=2024-05-10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp struct {
		Snapshots []struct {
			Name    string `json:"name"`
			Date    string `json:"date"`
			Persons int    `json:"persons"`
		} `json:"snapshots"`
		Length      int `json:"length"`
		TotalPages  int `json:"totalPages"`
		CurrentPage int `json:"currentPage"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Length != 5 || resp.TotalPages != 3 || resp.CurrentPage != 2 {
		t.Errorf("Unexpected pagination: %+v", resp)
	}
	if len(resp.Snapshots) != 2 {
		t.Fatalf("Expected 2 snapshots on page 2, got %d", len(resp.Snapshots))
	}
	if resp.Snapshots[0].Date != "10-05-2024" {
		t.Errorf("Expected date 10-05-2024, got %s", resp.Snapshots[0].Date)
	}

	rec = do(h, http.MethodGet, "/api/snapshots/history?camera=back", "")
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Length != 0 {
		t.Errorf("Expected no snapshots for another camera, got %d", resp.Length)
	}
}

func TestStorageUsageHandler(t *testing.T) {
	m, cam := setupManager(t, nil)
	writeSample(t, cam.StorageDir, "front_1.jpg", time.Now())

	rec := do(StorageUsageHandler(m, testLogger(t)), http.MethodGet, "/api/storage?camera=front", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var usage struct {
		SampleCount int `json:"sampleCount"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&usage); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if usage.SampleCount != 1 {
		t.Errorf("Expected 1 sample, got %d", usage.SampleCount)
	}
}

// ========================================
// Helper Function Tests
// ========================================

func TestAtoiDefault(t *testing.T) {
	tests := []struct {
		input    string
		def      int
		expected int
	}{
		{"10", 5, 10},
		{"", 5, 5},
		{"abc", 10, 10},
		{"-1", 5, 5},
		{"0", 5, 5},
	}

	for _, tt := range tests {
		if got := atoiDefault(tt.input, tt.def); got != tt.expected {
			t.Errorf("atoiDefault(%q, %d) = %d, expected %d", tt.input, tt.def, got, tt.expected)
		}
	}
}

func TestParseDate(t *testing.T) {
	if !parseDate("").IsZero() || !parseDate("10/05/2024").IsZero() {
		t.Error("Empty or malformed dates should parse to zero time")
	}
	got := parseDate("2024-05-10")
	if got.Year() != 2024 || got.Month() != time.May || got.Day() != 10 {
		t.Errorf("Unexpected date %v", got)
	}
	if end := endOfDay(got); end.Day() != 10 || end.Hour() != 23 || end.Minute() != 59 {
		t.Errorf("Unexpected end of day %v", end)
	}
}
