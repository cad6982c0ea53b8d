package service

import (
	"fmt"
	"sync"

	"camsampler/internal/config"
	"camsampler/internal/dto"
	"camsampler/internal/logger"
	"camsampler/internal/storage"
)

// ErrCameraNotFound is returned for ids that are not configured.
var ErrCameraNotFound = config.ErrCameraNotFound

// ConfigPersister stores camera updates before they are applied.
type ConfigPersister interface {
	UpdateCamera(id string, update dto.CameraConfigUpdate) (config.CameraConfig, error)
}

// Manager owns the fixed set of camera pipelines built at startup.
type Manager struct {
	order     []string
	pipelines map[string]*Pipeline
	persister ConfigPersister
	logger    *logger.Logger
}

// NewManager creates one stopped pipeline per camera, keeping the configured order.
// persister may be nil, in which case updates only live in memory.
func NewManager(cameras []config.CameraConfig, deps PipelineDeps, persister ConfigPersister) *Manager {
	m := &Manager{
		order:     make([]string, 0, len(cameras)),
		pipelines: make(map[string]*Pipeline, len(cameras)),
		persister: persister,
		logger:    deps.Logger,
	}
	for _, cam := range cameras {
		if _, dup := m.pipelines[cam.ID]; dup {
			m.logger.Warning("Duplicate camera id %s ignored", cam.ID)
			continue
		}
		m.order = append(m.order, cam.ID)
		m.pipelines[cam.ID] = NewPipeline(cam, deps)
	}
	return m
}

// StartAll starts every camera. A failing camera does not prevent the others
// from starting; failures are returned per camera id.
func (m *Manager) StartAll() map[string]error {
	failures := make(map[string]error)
	for _, id := range m.order {
		if err := m.pipelines[id].Start(); err != nil {
			m.logger.Error("Failed to start camera %s: %v", id, err)
			failures[id] = err
		}
	}
	m.logger.Info("Started %d/%d cameras", len(m.order)-len(failures), len(m.order))
	return failures
}

// StopAll stops every camera in parallel and waits for all of them.
func (m *Manager) StopAll() {
	var wg sync.WaitGroup
	for _, p := range m.pipelines {
		wg.Add(1)
		go func(p *Pipeline) {
			defer wg.Done()
			p.Stop()
		}(p)
	}
	wg.Wait()
}

// Pipeline returns the pipeline of camera id.
func (m *Manager) Pipeline(id string) (*Pipeline, error) {
	p, ok := m.pipelines[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCameraNotFound, id)
	}
	return p, nil
}

// Cameras returns the configured camera ids in order.
func (m *Manager) Cameras() []string {
	return append([]string(nil), m.order...)
}

// ListStatus returns the status of every camera in configured order.
func (m *Manager) ListStatus() []dto.CameraStatus {
	statuses := make([]dto.CameraStatus, 0, len(m.order))
	for _, id := range m.order {
		statuses = append(statuses, m.pipelines[id].Status())
	}
	return statuses
}

// ForceSnapshot makes the next frame of camera id a sample.
func (m *Manager) ForceSnapshot(id string) error {
	p, err := m.Pipeline(id)
	if err != nil {
		return err
	}
	p.ForceSnapshot()
	m.logger.Info("Forced snapshot requested for camera %s", id)
	return nil
}

// LatestPreview returns the newest preview of camera id.
func (m *Manager) LatestPreview(id string) ([]byte, bool, error) {
	p, err := m.Pipeline(id)
	if err != nil {
		return nil, false, err
	}
	preview, ok := p.LatestPreview()
	return preview, ok, nil
}

// UpdateConfig persists update and then applies it to the running pipeline,
// holding the camera's config lock across both steps. Nothing is applied when
// persisting fails.
func (m *Manager) UpdateConfig(id string, update dto.CameraConfigUpdate) error {
	p, err := m.Pipeline(id)
	if err != nil {
		return err
	}

	var persist func() error
	if m.persister != nil {
		persist = func() error {
			if _, err := m.persister.UpdateCamera(id, update); err != nil {
				return fmt.Errorf("failed to persist camera %s: %w", id, err)
			}
			return nil
		}
	}

	if err := p.UpdateConfigWith(persist, update); err != nil {
		return err
	}
	m.logger.Info("Camera %s configuration updated", id)
	return nil
}

// RecentSnapshots lists up to limit samples of camera id, newest first.
func (m *Manager) RecentSnapshots(id string, limit int) ([]string, error) {
	p, err := m.Pipeline(id)
	if err != nil {
		return nil, err
	}
	return p.RecentSnapshots(limit), nil
}

// DefaultRecentSnapshots lists samples of camera id up to its configured limit.
func (m *Manager) DefaultRecentSnapshots(id string) ([]string, error) {
	p, err := m.Pipeline(id)
	if err != nil {
		return nil, err
	}
	return p.RecentSnapshots(p.RecentSamplesLimit()), nil
}

// ResolveSnapshot maps rel to a file inside the directory of camera id.
func (m *Manager) ResolveSnapshot(id, rel string) (string, error) {
	p, err := m.Pipeline(id)
	if err != nil {
		return "", err
	}
	return p.ResolveSnapshot(rel)
}

// Usage reports disk usage of camera id.
func (m *Manager) Usage(id string) (storage.DiskUsage, error) {
	p, err := m.Pipeline(id)
	if err != nil {
		return storage.DiskUsage{}, err
	}
	return p.Usage()
}
