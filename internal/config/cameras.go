package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"camsampler/internal/dto"

	"gopkg.in/yaml.v3"
)

const (
	DefaultWidth              = 1920
	DefaultHeight             = 1080
	DefaultFPS                = 30
	DefaultRecentSamplesLimit = 16
	DefaultTimeSpanYears      = 10.0
	DefaultCooldownHours      = 24.0
)

// ErrCameraNotFound is returned when the YAML file has no camera with the given id.
var ErrCameraNotFound = errors.New("camera not found")

// SamplingConfig holds the adaptive sampling parameters of one camera.
type SamplingConfig struct {
	TimeSpanYears float64 `json:"time_span_years"`
	CooldownHours float64 `json:"cooldown_hours"`
}

// CameraConfig describes one camera as loaded at startup.
type CameraConfig struct {
	ID                 string
	Name               string
	Device             string
	Width              int
	Height             int
	FPS                int
	Model              string // Detection network weights
	ModelConfig        string // Optional network description (e.g. .pbtxt)
	StorageDir         string
	RecentSamplesLimit int
	Sampling           SamplingConfig
}

// rawSampling and rawCamera mirror the YAML layout. Pointers tell missing keys
// apart from zero values; Extra keeps keys this service does not know about so
// that a rewrite does not drop them.
type rawSampling struct {
	TimeSpanYears *float64       `yaml:"time_span_years,omitempty"`
	CooldownHours *float64       `yaml:"cooldown_hours,omitempty"`
	Extra         map[string]any `yaml:",inline"`
}

type rawCamera struct {
	ID                 string         `yaml:"id"`
	Name               string         `yaml:"name,omitempty"`
	Device             string         `yaml:"device"`
	Width              *int           `yaml:"width,omitempty"`
	Height             *int           `yaml:"height,omitempty"`
	FPS                *int           `yaml:"fps,omitempty"`
	Model              string         `yaml:"model"`
	ModelConfig        string         `yaml:"model_config,omitempty"`
	StorageDir         string         `yaml:"storage_dir"`
	RecentSamplesLimit *int           `yaml:"recent_samples_limit,omitempty"`
	Sampling           *rawSampling   `yaml:"sampling,omitempty"`
	Extra              map[string]any `yaml:",inline"`
}

type rawFile struct {
	Cameras []*rawCamera   `yaml:"cameras"`
	Extra   map[string]any `yaml:",inline"`
}

// CameraFile loads camera definitions from a YAML file and writes runtime
// updates back to it. Writers are serialised by mu.
type CameraFile struct {
	path string
	mu   sync.Mutex
}

// NewCameraFile returns a CameraFile bound to path.
func NewCameraFile(path string) *CameraFile {
	return &CameraFile{path: path}
}

// Path returns the file location.
func (f *CameraFile) Path() string {
	return f.path
}

// Load parses the file and returns cameras in file order with defaults applied.
func (f *CameraFile) Load() ([]CameraConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := f.read()
	if err != nil {
		return nil, err
	}

	cameras := make([]CameraConfig, 0, len(raw.Cameras))
	seen := make(map[string]bool, len(raw.Cameras))
	for i, rc := range raw.Cameras {
		if rc == nil {
			continue
		}
		if err := rc.validate(); err != nil {
			return nil, fmt.Errorf("camera #%d: %w", i, err)
		}
		if seen[rc.ID] {
			return nil, fmt.Errorf("camera #%d: duplicate id %q", i, rc.ID)
		}
		seen[rc.ID] = true
		cameras = append(cameras, rc.toConfig())
	}

	return cameras, nil
}

// UpdateCamera applies the non-nil fields of update to the camera with the given
// id, rewrites the file and returns the resulting configuration.
func (f *CameraFile) UpdateCamera(id string, update dto.CameraConfigUpdate) (CameraConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := f.read()
	if err != nil {
		return CameraConfig{}, err
	}

	var target *rawCamera
	for _, rc := range raw.Cameras {
		if rc != nil && rc.ID == id {
			target = rc
			break
		}
	}
	if target == nil {
		return CameraConfig{}, fmt.Errorf("%w: %s", ErrCameraNotFound, id)
	}

	if update.Name != nil {
		target.Name = *update.Name
	}
	if update.Sampling != nil {
		if target.Sampling == nil {
			target.Sampling = &rawSampling{}
		}
		if update.Sampling.TimeSpanYears != nil {
			v := *update.Sampling.TimeSpanYears
			target.Sampling.TimeSpanYears = &v
		}
		if update.Sampling.CooldownHours != nil {
			v := *update.Sampling.CooldownHours
			target.Sampling.CooldownHours = &v
		}
	}
	if update.RecentSamplesLimit != nil {
		v := *update.RecentSamplesLimit
		target.RecentSamplesLimit = &v
	}

	if err := f.write(raw); err != nil {
		return CameraConfig{}, err
	}

	return target.toConfig(), nil
}

func (f *CameraFile) read() (*rawFile, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cameras config: %w", err)
	}

	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse cameras config: %w", err)
	}
	return &raw, nil
}

// write replaces the file through a temporary sibling so a crash never leaves
// a truncated config behind.
func (f *CameraFile) write(raw *rawFile) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to encode cameras config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".cameras-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to write cameras config: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cameras config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cameras config: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace cameras config: %w", err)
	}
	return nil
}

func (rc *rawCamera) validate() error {
	switch {
	case rc.ID == "":
		return errors.New("id is required")
	case rc.Device == "":
		return fmt.Errorf("camera %s: device is required", rc.ID)
	case rc.Model == "":
		return fmt.Errorf("camera %s: model is required", rc.ID)
	case rc.StorageDir == "":
		return fmt.Errorf("camera %s: storage_dir is required", rc.ID)
	}
	return nil
}

func (rc *rawCamera) toConfig() CameraConfig {
	cfg := CameraConfig{
		ID:                 rc.ID,
		Name:               rc.Name,
		Device:             rc.Device,
		Width:              intOr(rc.Width, DefaultWidth),
		Height:             intOr(rc.Height, DefaultHeight),
		FPS:                intOr(rc.FPS, DefaultFPS),
		Model:              rc.Model,
		ModelConfig:        rc.ModelConfig,
		StorageDir:         rc.StorageDir,
		RecentSamplesLimit: max(0, intOr(rc.RecentSamplesLimit, DefaultRecentSamplesLimit)),
		Sampling: SamplingConfig{
			TimeSpanYears: DefaultTimeSpanYears,
			CooldownHours: DefaultCooldownHours,
		},
	}
	if cfg.Name == "" {
		cfg.Name = rc.ID
	}
	if rc.Sampling != nil {
		cfg.Sampling.TimeSpanYears = floatOr(rc.Sampling.TimeSpanYears, DefaultTimeSpanYears)
		cfg.Sampling.CooldownHours = floatOr(rc.Sampling.CooldownHours, DefaultCooldownHours)
	}
	return cfg
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
