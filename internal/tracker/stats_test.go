package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsSnapshot(t *testing.T) {
	var s Stats
	start := time.Unix(1000, 0)
	s.reset(start)

	for i := 0; i < 10; i++ {
		s.recordFrame(i%2 == 0, start.Add(time.Duration(i)*100*time.Millisecond))
	}
	s.recordMove()
	s.recordLatency(10 * time.Millisecond)
	s.recordLatency(20 * time.Millisecond)

	snap := s.Snapshot(start.Add(2 * time.Second))

	assert.Equal(t, int64(10), snap.FramesProcessed)
	assert.Equal(t, int64(5), snap.ObjectsDetected)
	assert.Equal(t, int64(1), snap.Moves)
	assert.Equal(t, 2*time.Second, snap.Elapsed)
	assert.InDelta(t, 5.0, snap.AvgFPS, 1e-9)
	assert.InDelta(t, 0.5, snap.DetectionRate, 1e-9)
	assert.InDelta(t, 15.0, snap.LatencyMeanMs, 1e-9)
	// Sample standard deviation of {10, 20}.
	assert.InDelta(t, 7.0710678, snap.LatencyStdDevMs, 1e-6)
	assert.Equal(t, start.Add(800*time.Millisecond), snap.LastDetection)
}

func TestStatsLatencyWindow(t *testing.T) {
	var s Stats
	s.reset(time.Now())

	for i := 0; i < latencyWindow; i++ {
		s.recordLatency(time.Millisecond)
	}
	for i := 0; i < latencyWindow; i++ {
		s.recordLatency(3 * time.Millisecond)
	}

	snap := s.Snapshot(time.Now())
	assert.InDelta(t, 3.0, snap.LatencyMeanMs, 1e-9, "old samples rotated out")
	assert.Len(t, s.latencies, latencyWindow)
}

func TestStatsResetClears(t *testing.T) {
	var s Stats
	s.reset(time.Now())
	s.recordFrame(true, time.Now())
	s.recordLatency(time.Millisecond)

	s.reset(time.Now())
	snap := s.Snapshot(time.Now())
	assert.Zero(t, snap.FramesProcessed)
	assert.Zero(t, snap.LatencyMeanMs)
	assert.True(t, snap.LastDetection.IsZero())
}
