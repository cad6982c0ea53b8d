package service

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"camsampler/internal/config"
	"camsampler/internal/dto"
	"camsampler/internal/events"
	"camsampler/internal/logger"
	"camsampler/internal/metrics"
	"camsampler/internal/model"
	"camsampler/internal/repository"
	"camsampler/internal/sampling"
	"camsampler/internal/source"
	"camsampler/internal/storage"

	"github.com/google/uuid"
)

// State is the lifecycle state of a Pipeline.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Previewer renders the preview kept for viewers from a captured frame.
type Previewer interface {
	Preview(frame []byte, persons int, at time.Time) ([]byte, error)
}

// Broadcaster pushes previews to live viewers without blocking.
type Broadcaster interface {
	Broadcast(camera string, preview []byte) bool
}

// SnapshotPublisher announces persisted samples.
type SnapshotPublisher interface {
	PublishSnapshot(ev events.SnapshotEvent) error
}

// PipelineDeps are the collaborators shared by all pipelines. Only Factory
// and Logger are required.
type PipelineDeps struct {
	Factory   source.Factory
	Previewer Previewer
	Hub       Broadcaster
	Catalog   repository.SnapshotRepository
	Events    SnapshotPublisher
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
}

// settings are replaced as a whole, so a reader always sees one consistent
// combination of name, policy and limit.
type settings struct {
	name        string
	policy      *sampling.Policy
	recentLimit int
}

// Pipeline supervises one camera: it runs the frame source on a delivery
// goroutine, decides which frames to persist and keeps the latest preview
// for readers.
type Pipeline struct {
	camera config.CameraConfig
	store  *storage.SnapshotStore
	deps   PipelineDeps
	state  *sampling.State
	frames atomic.Uint64

	settings atomic.Pointer[settings]
	configMu sync.Mutex

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}

	mu        sync.RWMutex
	status    State
	runID     string
	lastErr   error
	preview   []byte
	lastFrame time.Time
}

// NewPipeline creates a stopped pipeline for camera.
func NewPipeline(camera config.CameraConfig, deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		camera: camera,
		store:  storage.NewSnapshotStore(camera.StorageDir),
		deps:   deps,
		state:  sampling.NewState(time.Now()),
		status: StateStopped,
	}
	p.settings.Store(&settings{
		name:        camera.Name,
		policy:      sampling.NewPolicy(camera.Sampling.TimeSpanYears, camera.Sampling.CooldownHours),
		recentLimit: max(0, camera.RecentSamplesLimit),
	})
	return p
}

// ID returns the camera id.
func (p *Pipeline) ID() string {
	return p.camera.ID
}

// Start launches the delivery goroutine. It is a no-op while running. A run
// that ended on its own is joined first.
func (p *Pipeline) Start() error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.done != nil {
		select {
		case <-p.done:
			p.cancel()
			p.cancel, p.done = nil, nil
		default:
			return nil
		}
	}

	p.setStatus(StateStarting, "", nil)

	cfg := p.camera
	cfg.Name = p.settings.Load().name
	src, err := p.deps.Factory.New(cfg)
	if err != nil {
		err = fmt.Errorf("failed to create frame source: %w", err)
		p.setStatus(StateStopped, "", err)
		p.deps.Logger.Error("Camera %s: %v", p.camera.ID, err)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	runID := uuid.NewString()
	p.cancel, p.done = cancel, done
	p.frames.Store(0)
	p.setStatus(StateRunning, runID, nil)
	p.deps.Metrics.SetRunning(p.camera.ID, true)
	p.deps.Logger.Info("▶️  Camera %s started (run %s)", p.camera.ID, runID)

	go p.run(ctx, src, done)
	return nil
}

// Stop cancels the delivery goroutine and waits for it to return. It is a
// no-op when stopped.
func (p *Pipeline) Stop() {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.done == nil {
		return
	}

	p.mu.Lock()
	ended := p.status == StateStopped
	if p.status == StateRunning {
		p.status = StateStopping
	}
	p.mu.Unlock()

	p.cancel()
	<-p.done
	p.cancel, p.done = nil, nil

	// A run that ended on its own already reported itself as stopped.
	if ended {
		return
	}

	p.mu.Lock()
	p.status = StateStopped
	p.mu.Unlock()
	p.deps.Metrics.SetRunning(p.camera.ID, false)
	p.deps.Logger.Info("⏹️  Camera %s stopped", p.camera.ID)
}

func (p *Pipeline) run(ctx context.Context, src source.FrameSource, done chan struct{}) {
	defer close(done)

	err := src.Run(ctx, p.handleFrame)
	if ctx.Err() != nil {
		return
	}
	if err == nil {
		err = source.ErrEndOfStream
	}

	p.mu.Lock()
	p.status = StateStopped
	p.lastErr = err
	p.mu.Unlock()
	p.deps.Metrics.SetRunning(p.camera.ID, false)
	p.deps.Logger.Warning("Camera %s stream ended: %v", p.camera.ID, err)
}

// handleFrame runs on the delivery goroutine for every frame.
func (p *Pipeline) handleFrame(f source.Frame) {
	s := p.settings.Load()
	at := f.At
	if at.IsZero() {
		at = time.Now()
	}

	if p.frames.Add(1) == 1 {
		p.deps.Logger.Info("Camera %s: first frame received (%d bytes, %d persons)", p.camera.ID, len(f.Image), f.Persons)
	}

	decision := s.policy.Decide(p.state, f.Persons, at, rand.Float64())
	if decision.Sample {
		p.persist(s, f, at, decision.Reason)
	} else if err := p.store.UpdateLatest(f.Image); err != nil {
		p.deps.Logger.Warning("Camera %s: %v", p.camera.ID, err)
	}

	preview := f.Image
	if p.deps.Previewer != nil {
		rendered, err := p.deps.Previewer.Preview(f.Image, f.Persons, at)
		if err != nil {
			p.deps.Logger.Debug("Camera %s: preview failed, keeping raw frame: %v", p.camera.ID, err)
		} else {
			preview = rendered
		}
	}

	p.mu.Lock()
	p.preview = preview
	p.lastFrame = at
	p.mu.Unlock()

	if p.deps.Hub != nil {
		p.deps.Hub.Broadcast(p.camera.ID, preview)
	}
	p.deps.Metrics.FrameProcessed(p.camera.ID, f.Persons)
}

// persist writes a sample. Failures are logged and never stop the stream.
func (p *Pipeline) persist(s *settings, f source.Frame, at time.Time, reason sampling.Reason) {
	path, err := p.store.SaveAt(f.Image, s.name, at)
	if err != nil {
		p.deps.Metrics.SaveFailed(p.camera.ID)
		if path == "" {
			p.deps.Logger.Error("Camera %s: sample lost: %v", p.camera.ID, err)
			return
		}
		p.deps.Logger.Warning("Camera %s: %v", p.camera.ID, err)
	}

	p.deps.Metrics.SampleTaken(p.camera.ID, string(reason))
	p.deps.Logger.Info("📸 Camera %s: %s sample %s (%d persons)", p.camera.ID, reason, filepath.Base(path), f.Persons)

	if p.deps.Catalog != nil {
		_, err := p.deps.Catalog.Insert(&model.Snapshot{
			Camera:     p.camera.ID,
			CameraName: s.name,
			Filename:   filepath.Base(path),
			FilePath:   path,
			Timestamp:  at,
			FileSize:   int64(len(f.Image)),
			Persons:    f.Persons,
			Reason:     string(reason),
		})
		if err != nil {
			p.deps.Logger.Error("Camera %s: failed to catalog sample: %v", p.camera.ID, err)
		}
	}

	if p.deps.Events != nil {
		err := p.deps.Events.PublishSnapshot(events.SnapshotEvent{
			Camera:     p.camera.ID,
			CameraName: s.name,
			Path:       path,
			Persons:    f.Persons,
			Reason:     string(reason),
			Timestamp:  at,
		})
		if err != nil {
			p.deps.Logger.Warning("Camera %s: %v", p.camera.ID, err)
		}
	}
}

// ForceSnapshot makes the next frame a sample.
func (p *Pipeline) ForceSnapshot() {
	p.state.Force()
}

// UpdateConfig applies the given fields. Missing sampling fields keep their
// current value; the limit is floored at 0 and an empty name falls back to
// the camera id. Readers see either the previous or the new settings as a whole.
func (p *Pipeline) UpdateConfig(update dto.CameraConfigUpdate) {
	p.UpdateConfigWith(nil, update)
}

// UpdateConfigWith runs persist and, when it succeeds, applies update, both
// under the camera's config lock. Concurrent updates are therefore stored and
// applied in the same order. A nil persist only applies.
func (p *Pipeline) UpdateConfigWith(persist func() error, update dto.CameraConfigUpdate) error {
	p.configMu.Lock()
	defer p.configMu.Unlock()

	if persist != nil {
		if err := persist(); err != nil {
			return err
		}
	}

	cur := p.settings.Load()
	next := *cur

	if update.Name != nil {
		next.name = *update.Name
		if next.name == "" {
			next.name = p.camera.ID
		}
	}
	if update.Sampling != nil {
		years, hours := cur.policy.TimeSpanYears(), cur.policy.CooldownHours()
		if update.Sampling.TimeSpanYears != nil {
			years = *update.Sampling.TimeSpanYears
		}
		if update.Sampling.CooldownHours != nil {
			hours = *update.Sampling.CooldownHours
		}
		next.policy = sampling.NewPolicy(years, hours)
	}
	if update.RecentSamplesLimit != nil {
		next.recentLimit = max(0, *update.RecentSamplesLimit)
	}

	p.settings.Store(&next)
	return nil
}

// Status returns a point-in-time view of the pipeline.
func (p *Pipeline) Status() dto.CameraStatus {
	s := p.settings.Load()

	p.mu.RLock()
	status, runID, lastErr, lastFrame := p.status, p.runID, p.lastErr, p.lastFrame
	p.mu.RUnlock()

	st := dto.CameraStatus{
		ID:                 p.camera.ID,
		Name:               s.name,
		Device:             p.camera.Device,
		Running:            status == StateRunning,
		State:              string(status),
		RecentSamplesLimit: s.recentLimit,
		Sampling: dto.SamplingStatus{
			TimeSpanYears: s.policy.TimeSpanYears(),
			CooldownHours: s.policy.CooldownHours(),
		},
		RunID: runID,
	}
	if !lastFrame.IsZero() {
		st.LastFrameTime = &lastFrame
	}
	if lastErr != nil {
		st.LastError = lastErr.Error()
	}
	return st
}

// LatestPreview returns the newest preview, or false before the first frame.
// The returned slice must not be modified.
func (p *Pipeline) LatestPreview() ([]byte, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.preview, p.preview != nil
}

// RecentSamplesLimit returns the configured number of samples to list.
func (p *Pipeline) RecentSamplesLimit() int {
	return p.settings.Load().recentLimit
}

// RecentSnapshots lists up to limit sample paths, newest first.
func (p *Pipeline) RecentSnapshots(limit int) []string {
	return p.store.ListRecent(limit)
}

// ResolveSnapshot maps a listed path to a file inside the camera directory.
func (p *Pipeline) ResolveSnapshot(rel string) (string, error) {
	return p.store.Resolve(rel)
}

// Usage reports the disk space taken by the camera's samples.
func (p *Pipeline) Usage() (storage.DiskUsage, error) {
	return p.store.Usage()
}

func (p *Pipeline) setStatus(state State, runID string, err error) {
	p.mu.Lock()
	p.status = state
	p.runID = runID
	p.lastErr = err
	p.mu.Unlock()
}
