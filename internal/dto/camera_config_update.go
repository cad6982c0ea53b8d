package dto

// SamplingUpdate carries the sampling fields of a partial camera update.
// Nil fields keep their current value.
type SamplingUpdate struct {
	TimeSpanYears *float64 `json:"time_span_years,omitempty" yaml:"time_span_years,omitempty"`
	CooldownHours *float64 `json:"cooldown_hours,omitempty" yaml:"cooldown_hours,omitempty"`
}

// CameraConfigUpdate is the body of POST /api/cameras/config.
type CameraConfigUpdate struct {
	Name               *string         `json:"name,omitempty"`
	Sampling           *SamplingUpdate `json:"sampling,omitempty"`
	RecentSamplesLimit *int            `json:"recent_samples_limit,omitempty"`
}

// IsEmpty reports whether the update carries no field at all.
func (u CameraConfigUpdate) IsEmpty() bool {
	if u.Name != nil || u.RecentSamplesLimit != nil {
		return false
	}
	return u.Sampling == nil || (u.Sampling.TimeSpanYears == nil && u.Sampling.CooldownHours == nil)
}
