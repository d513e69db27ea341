package detect

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It replays a scripted sequence of results.
type MockDetector struct {
	mu      sync.Mutex
	results []Result
	index   int
	err     error
	calls   int
	resets  int
}

// NewMockDetector creates a MockDetector returning results in order. Once
// exhausted it keeps returning not-found.
func NewMockDetector(results ...Result) *MockDetector {
	return &MockDetector{results: results}
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the next scripted result or error.
func (m *MockDetector) Detect(frame *gocv.Mat) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return Result{}, m.err
	}
	if m.index >= len(m.results) {
		return Result{}, nil
	}
	r := m.results[m.index]
	m.index++
	return r, nil
}

// Calls returns how many times Detect ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Resets returns how many times Reset ran.
func (m *MockDetector) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

func (m *MockDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}
