package actuate

import "time"

// MouseSettings tunes pointer movement.
type MouseSettings struct {
	// MovementSpeed in [0,1]; higher is faster.
	MovementSpeed float64
	// MoveDuration is the fixed duration used by smooth moves. Zero means
	// derive it from distance and MovementSpeed.
	MoveDuration   time.Duration
	SmoothMovement bool

	AutoClick bool
	// EnableClick gates every click, including auto-click.
	EnableClick bool
	ClickDelay  time.Duration

	// ThrottleInterval is the minimum gap between throttled moves.
	ThrottleInterval time.Duration
}

// DefaultSettings returns the default movement settings.
func DefaultSettings() MouseSettings {
	return MouseSettings{
		MovementSpeed:    0.3,
		MoveDuration:     100 * time.Millisecond,
		SmoothMovement:   true,
		EnableClick:      true,
		ClickDelay:       100 * time.Millisecond,
		ThrottleInterval: 200 * time.Millisecond,
	}
}

func (s *MouseSettings) normalize() {
	if s.MovementSpeed < 0 {
		s.MovementSpeed = 0
	}
	if s.MovementSpeed > 1 {
		s.MovementSpeed = 1
	}
	if s.MoveDuration < 0 {
		s.MoveDuration = 0
	}
	if s.ClickDelay < 0 {
		s.ClickDelay = 0
	}
	if s.ThrottleInterval < 0 {
		s.ThrottleInterval = 0
	}
}
