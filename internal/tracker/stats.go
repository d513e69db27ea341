package tracker

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// latencyWindow is how many recent loop latencies feed the summary.
const latencyWindow = 120

// Stats accumulates per-session counters.
type Stats struct {
	mu            sync.Mutex
	frames        int64
	detections    int64
	moves         int64
	startTime     time.Time
	lastDetection time.Time
	latencies     []float64
	next          int
}

// Snapshot is a point-in-time copy of the counters plus derived rates.
type Snapshot struct {
	FramesProcessed int64         `json:"frames_processed"`
	ObjectsDetected int64         `json:"objects_detected"`
	Moves           int64         `json:"moves"`
	StartTime       time.Time     `json:"start_time"`
	LastDetection   time.Time     `json:"last_detection,omitempty"`
	Elapsed         time.Duration `json:"elapsed"`
	AvgFPS          float64       `json:"avg_fps"`
	DetectionRate   float64       `json:"detection_rate"`
	LatencyMeanMs   float64       `json:"latency_mean_ms"`
	LatencyStdDevMs float64       `json:"latency_stddev_ms"`
}

func (s *Stats) reset(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames = 0
	s.detections = 0
	s.moves = 0
	s.startTime = now
	s.lastDetection = time.Time{}
	s.latencies = s.latencies[:0]
	s.next = 0
}

func (s *Stats) recordFrame(found bool, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames++
	if found {
		s.detections++
		s.lastDetection = now
	}
}

func (s *Stats) recordMove() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moves++
}

func (s *Stats) recordLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := float64(d) / float64(time.Millisecond)
	if len(s.latencies) < latencyWindow {
		s.latencies = append(s.latencies, ms)
		return
	}
	s.latencies[s.next] = ms
	s.next = (s.next + 1) % latencyWindow
}

// lastSeen returns when the target was last found.
func (s *Stats) lastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDetection
}

// Snapshot returns the counters and derived rates as of now.
func (s *Stats) Snapshot(now time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		FramesProcessed: s.frames,
		ObjectsDetected: s.detections,
		Moves:           s.moves,
		StartTime:       s.startTime,
		LastDetection:   s.lastDetection,
	}

	if !s.startTime.IsZero() {
		snap.Elapsed = now.Sub(s.startTime)
		if secs := snap.Elapsed.Seconds(); secs > 0 {
			snap.AvgFPS = float64(s.frames) / secs
		}
	}
	if s.frames > 0 {
		snap.DetectionRate = float64(s.detections) / float64(s.frames)
	}
	if len(s.latencies) > 1 {
		snap.LatencyMeanMs, snap.LatencyStdDevMs = stat.MeanStdDev(s.latencies, nil)
	} else if len(s.latencies) == 1 {
		snap.LatencyMeanMs = s.latencies[0]
	}

	return snap
}
