package alarm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nerrad567/sentry-core/internal/device"
	"github.com/nerrad567/sentry-core/internal/event"
)

// Broadcaster pushes appended events to live subscribers (the WebSocket
// hub). Implementations must not block.
type Broadcaster interface {
	BroadcastEvent(e event.Event)
}

// EventSink mirrors appended events to secondary storage (InfluxDB).
// Implementations must not block.
type EventSink interface {
	WriteEvent(e event.Event)
}

// IngestResult is what one Ingest call produced: the recorded raw event
// and any events the correlation rules derived from it.
type IngestResult struct {
	Recorded event.Event   `json:"recorded"`
	Derived  []event.Event `json:"derived,omitempty"`
}

// Options tunes a Service. Zero values select production defaults.
type Options struct {
	RearmDelay  time.Duration // default 5 minutes
	Clock       Clock         // default wall clock
	Logger      *slog.Logger  // default slog.Default()
	Broadcaster Broadcaster   // optional, nil disables
	Sink        EventSink     // optional, nil disables
}

const defaultRearmDelay = 5 * time.Minute

// Service is the alarm controller: it serializes all state-changing
// operations per device, runs ingested events through the correlation
// rules, gates arm/disarm and PIN changes behind the credential gate,
// and owns the automatic re-arm scheduler.
type Service struct {
	devices device.Repository
	events  event.Repository
	rules   RuleSet
	gate    *Gate

	scheduler   *RearmScheduler
	clock       Clock
	logger      *slog.Logger
	broadcaster Broadcaster
	sink        EventSink

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates the alarm controller.
func NewService(devices device.Repository, events event.Repository, rules RuleSet, gate *Gate, opts Options) *Service {
	if opts.RearmDelay <= 0 {
		opts.RearmDelay = defaultRearmDelay
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if gate == nil {
		gate = NewGate(nil)
	}

	s := &Service{
		devices:     devices,
		events:      events,
		rules:       rules,
		gate:        gate,
		clock:       opts.Clock,
		logger:      opts.Logger,
		broadcaster: opts.Broadcaster,
		sink:        opts.Sink,
		locks:       make(map[string]*sync.Mutex),
	}
	s.scheduler = NewRearmScheduler(opts.RearmDelay, opts.Clock, s.autoRearm, opts.Logger)
	return s
}

// Shutdown stops all pending re-arm timers.
func (s *Service) Shutdown() {
	s.scheduler.CancelAll()
}

// Ingest records a raw sensor event for the device identified by key,
// evaluates the correlation rules, and appends any derived events. The
// category is the wire category reported by the device. A zero
// timestamp defaults to now.
func (s *Service) Ingest(ctx context.Context, deviceKey, category string, ts time.Time) (*IngestResult, error) {
	cat, ok := event.FromWire(category)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	d, err := s.resolve(ctx, deviceKey)
	if err != nil {
		return nil, err
	}

	unlock := s.lockDevice(d.ID)
	defer unlock()

	// Re-read under the lock: markers and armed state may have moved.
	d, err = s.getByID(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	if !d.Active {
		return nil, ErrDeviceInactive
	}

	if ts.IsZero() {
		ts = s.clock.Now().UTC()
	}

	raw := event.Event{DeviceID: d.ID, Category: cat, Timestamp: ts}
	if err := s.events.Append(ctx, &raw); err != nil {
		return nil, fmt.Errorf("recording event: %w", err)
	}

	// Rules see the device as it was before this event: markers are
	// applied after evaluation.
	outcome, err := s.rules.Evaluate(ctx, d, &raw)
	if err != nil {
		return nil, fmt.Errorf("evaluating rules: %w", err)
	}

	for _, m := range outcome.Markers {
		if err := s.devices.SetTriggerMarker(ctx, d.ID, m.Kind, m.At); err != nil {
			return nil, fmt.Errorf("updating trigger marker: %w", err)
		}
	}

	result := &IngestResult{Recorded: raw}
	for i := range outcome.Derived {
		derived := outcome.Derived[i]
		if err := s.events.Append(ctx, &derived); err != nil {
			return nil, fmt.Errorf("recording derived event: %w", err)
		}
		result.Derived = append(result.Derived, derived)

		s.logger.Info("derived event",
			"device_id", d.ID,
			"category", derived.Category,
			"source_category", raw.Category)
	}

	s.publish(raw)
	for _, e := range result.Derived {
		s.publish(e)
	}

	return result, nil
}

// Toggle flips the armed state after credential authorization (PIN plus
// change key, or change key alone when the PIN is absent). A disarm
// schedules the automatic re-arm; arming cancels any pending one. The
// actor is recorded in the audit event.
func (s *Service) Toggle(ctx context.Context, deviceKey, pin, changeKey, actor string) (*device.Device, error) {
	d, err := s.resolve(ctx, deviceKey)
	if err != nil {
		return nil, err
	}

	unlock := s.lockDevice(d.ID)
	defer unlock()

	d, err = s.getByID(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	if !d.Active {
		return nil, ErrDeviceInactive
	}

	if err := s.gate.AuthorizeToggle(d, pin, changeKey); err != nil {
		return nil, err
	}

	armed := !d.Armed
	if err := s.devices.SetArmed(ctx, d.ID, armed); err != nil {
		return nil, fmt.Errorf("updating armed state: %w", err)
	}

	category := event.CategoryAlarmOff
	if armed {
		category = event.CategoryAlarmOn
	}
	s.audit(ctx, d.ID, category, actor)

	if armed {
		s.scheduler.Cancel(d.ID)
	} else {
		s.scheduler.Schedule(d.ID)
	}

	s.logger.Info("alarm toggled",
		"device_id", d.ID,
		"armed", armed,
		"actor", actor)

	d.Armed = armed
	return d, nil
}

// ChangePin replaces the device PIN after dual-factor authorization.
func (s *Service) ChangePin(ctx context.Context, deviceKey, oldPin, newPin, changeKey, actor string) error {
	d, err := s.resolve(ctx, deviceKey)
	if err != nil {
		return err
	}

	unlock := s.lockDevice(d.ID)
	defer unlock()

	d, err = s.getByID(ctx, d.ID)
	if err != nil {
		return err
	}
	if !d.Active {
		return ErrDeviceInactive
	}

	if err := s.gate.AuthorizePinChange(d, oldPin, newPin, changeKey); err != nil {
		return err
	}

	if err := s.devices.UpdatePIN(ctx, d.ID, newPin); err != nil {
		return fmt.Errorf("updating pin: %w", err)
	}
	s.audit(ctx, d.ID, event.CategoryPinChange, actor)

	s.logger.Info("device pin changed", "device_id", d.ID, "actor", actor)
	return nil
}

// CheckPin verifies a PIN without changing anything. Both outcomes are
// recorded as pin_check audit events; the move_danger rule set treats a
// recent pin_check as presence verification.
func (s *Service) CheckPin(ctx context.Context, deviceKey, pin, actor string) (bool, error) {
	d, err := s.resolve(ctx, deviceKey)
	if err != nil {
		return false, err
	}

	unlock := s.lockDevice(d.ID)
	defer unlock()

	d, err = s.getByID(ctx, d.ID)
	if err != nil {
		return false, err
	}
	if !d.Active {
		return false, ErrDeviceInactive
	}

	ok := s.gate.CheckPin(d, pin)
	outcome := "failed"
	if ok {
		outcome = "ok"
	}
	s.audit(ctx, d.ID, event.CategoryPinCheck, auditDetail(actor, outcome))

	return ok, nil
}

// QueryLogs returns the device's event log filtered by the given
// criteria. The filter's device is always the resolved device; reads
// are allowed on inactive devices.
func (s *Service) QueryLogs(ctx context.Context, deviceKey string, filter event.Filter) ([]event.Event, error) {
	d, err := s.resolve(ctx, deviceKey)
	if err != nil {
		return nil, err
	}
	filter.DeviceID = d.ID
	return s.events.List(ctx, filter)
}

// RearmPending reports whether the device has an automatic re-arm
// scheduled.
func (s *Service) RearmPending(deviceID string) bool {
	return s.scheduler.Pending(deviceID)
}

// autoRearm is the scheduler fire path. Everything that can make the
// re-arm moot (manual re-arm, deletion, deactivation) turns it into a
// logged no-op; nothing is surfaced to any caller.
func (s *Service) autoRearm(deviceID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	unlock := s.lockDevice(deviceID)
	defer unlock()

	d, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		s.logger.Warn("rearm skipped: device unavailable",
			"device_id", deviceID,
			"error", err)
		return
	}
	if !d.Active {
		s.logger.Info("rearm skipped: device inactive", "device_id", deviceID)
		return
	}
	if d.Armed {
		s.logger.Debug("rearm skipped: already armed", "device_id", deviceID)
		return
	}

	if err := s.devices.SetArmed(ctx, deviceID, true); err != nil {
		s.logger.Error("rearm failed", "device_id", deviceID, "error", err)
		return
	}
	s.audit(ctx, deviceID, event.CategoryAlarmOn, "auto_rearm")

	s.logger.Info("device auto rearmed", "device_id", deviceID)
}

// resolve maps a device key to its device, translating not-found into
// the controller's own sentinel.
func (s *Service) resolve(ctx context.Context, deviceKey string) (*device.Device, error) {
	d, err := s.devices.GetByKey(ctx, deviceKey)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("resolving device: %w", err)
	}
	return d, nil
}

func (s *Service) getByID(ctx context.Context, id string) (*device.Device, error) {
	d, err := s.devices.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("loading device: %w", err)
	}
	return d, nil
}

// lockDevice takes the per-device mutex and returns its unlock func.
// All state-changing operations on one device run strictly one at a
// time; operations on different devices never contend.
func (s *Service) lockDevice(deviceID string) func() {
	s.mu.Lock()
	lock, ok := s.locks[deviceID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[deviceID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// audit appends an administrative event. Audit append failures are
// logged, not surfaced: the state change they describe already happened.
func (s *Service) audit(ctx context.Context, deviceID string, category event.Category, detail string) {
	e := event.Event{
		DeviceID:  deviceID,
		Category:  category,
		Timestamp: s.clock.Now().UTC(),
		Detail:    detail,
	}
	if err := s.events.Append(ctx, &e); err != nil {
		s.logger.Error("audit event append failed",
			"device_id", deviceID,
			"category", category,
			"error", err)
		return
	}
	s.publish(e)
}

// publish fans an appended event out to the optional broadcast and
// mirror targets.
func (s *Service) publish(e event.Event) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastEvent(e)
	}
	if s.sink != nil {
		s.sink.WriteEvent(e)
	}
}

// auditDetail joins the acting identity with an outcome for audit
// event details.
func auditDetail(actor, outcome string) string {
	switch {
	case actor == "":
		return outcome
	case outcome == "":
		return actor
	default:
		return actor + ": " + outcome
	}
}
