package dto

import "time"

// SamplingStatus mirrors the sampling parameters currently in effect.
type SamplingStatus struct {
	TimeSpanYears float64 `json:"time_span_years"`
	CooldownHours float64 `json:"cooldown_hours"`
}

// CameraStatus is a point-in-time view of one camera pipeline.
type CameraStatus struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Device             string         `json:"device"`
	Running            bool           `json:"running"`
	State              string         `json:"state"`
	LastFrameTime      *time.Time     `json:"last_frame_time"`
	RecentSamplesLimit int            `json:"recent_samples_limit"`
	Sampling           SamplingStatus `json:"sampling"`
	LastError          string         `json:"last_error,omitempty"`
	RunID              string         `json:"run_id,omitempty"`
}
