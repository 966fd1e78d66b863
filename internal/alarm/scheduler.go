package alarm

import (
	"log/slog"
	"sync"
	"time"
)

// Clock abstracts timer creation so scheduler behaviour is testable
// with a fake clock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the cancellable handle returned by Clock.AfterFunc.
type Timer interface {
	// Stop prevents the timer from firing. It reports whether the call
	// stopped the timer before it fired.
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock returns the wall-clock Clock used outside tests.
func RealClock() Clock { return realClock{} }

// rearmHandle is one scheduled re-arm. The generation ties a fired timer
// back to the schedule call that created it: a handle superseded by a
// newer Schedule or removed by Cancel fires as a no-op.
type rearmHandle struct {
	generation uint64
	timer      Timer
}

// RearmScheduler re-arms devices a fixed delay after a disarm. At most
// one live timer exists per device: scheduling again replaces the
// pending one, cancelling removes it.
type RearmScheduler struct {
	delay  time.Duration
	clock  Clock
	fire   func(deviceID string)
	logger *slog.Logger

	mu         sync.Mutex
	generation uint64
	pending    map[string]*rearmHandle
}

// NewRearmScheduler creates a scheduler that calls fire with the device
// ID when a pending re-arm comes due.
func NewRearmScheduler(delay time.Duration, clock Clock, fire func(deviceID string), logger *slog.Logger) *RearmScheduler {
	if clock == nil {
		clock = realClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RearmScheduler{
		delay:   delay,
		clock:   clock,
		fire:    fire,
		logger:  logger,
		pending: make(map[string]*rearmHandle),
	}
}

// Schedule arranges a re-arm for the device after the configured delay.
// Any pending re-arm for the same device is replaced.
func (s *RearmScheduler) Schedule(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.pending[deviceID]; ok {
		existing.timer.Stop()
	}

	s.generation++
	handle := &rearmHandle{generation: s.generation}
	gen := s.generation
	handle.timer = s.clock.AfterFunc(s.delay, func() {
		s.onFire(deviceID, gen)
	})
	s.pending[deviceID] = handle

	s.logger.Debug("rearm scheduled",
		"device_id", deviceID,
		"delay", s.delay,
		"fire_at", s.clock.Now().Add(s.delay))
}

// Cancel removes any pending re-arm for the device. Cancelling a device
// with nothing pending is a no-op.
func (s *RearmScheduler) Cancel(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if handle, ok := s.pending[deviceID]; ok {
		handle.timer.Stop()
		delete(s.pending, deviceID)
		s.logger.Debug("rearm cancelled", "device_id", deviceID)
	}
}

// CancelAll stops every pending re-arm. Called on shutdown.
func (s *RearmScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, handle := range s.pending {
		handle.timer.Stop()
		delete(s.pending, id)
	}
}

// Pending reports whether the device has a re-arm scheduled.
func (s *RearmScheduler) Pending(deviceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[deviceID]
	return ok
}

// onFire runs when a timer comes due. A timer can race with Cancel or a
// replacing Schedule; the generation check makes the stale firing a
// logged no-op instead of a duplicate re-arm.
func (s *RearmScheduler) onFire(deviceID string, generation uint64) {
	s.mu.Lock()
	handle, ok := s.pending[deviceID]
	if !ok || handle.generation != generation {
		s.mu.Unlock()
		s.logger.Debug("stale rearm timer fired",
			"device_id", deviceID,
			"generation", generation)
		return
	}
	delete(s.pending, deviceID)
	s.mu.Unlock()

	s.fire(deviceID)
}
