package alarm

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/sentry-core/internal/device"
	"github.com/nerrad567/sentry-core/internal/event"
)

// Rule set names accepted in configuration.
const (
	RuleSetDoorMotion = "door_motion"
	RuleSetMoveDanger = "move_danger"
)

// MarkerUpdate records a trigger-marker change a rule set wants applied
// to the device row.
type MarkerUpdate struct {
	Kind device.TriggerKind
	At   time.Time
}

// Outcome is what evaluating one raw event produces: derived events to
// append after the raw one, and trigger markers to persist.
type Outcome struct {
	Derived []event.Event
	Markers []MarkerUpdate
}

// RuleSet is the correlation strategy. Evaluate sees the device as it
// was before the raw event (markers not yet updated) and the raw event
// about to be appended. Implementations never write anything themselves.
type RuleSet interface {
	Name() string
	Evaluate(ctx context.Context, d *device.Device, e *event.Event) (Outcome, error)
}

// NewRuleSet builds the named rule set. The event repository is only
// consulted by move_danger; door_motion works from device markers alone.
func NewRuleSet(name string, window time.Duration, events event.Repository) (RuleSet, error) {
	switch name {
	case RuleSetDoorMotion:
		return &DoorMotionRules{window: window}, nil
	case RuleSetMoveDanger:
		return &MoveDangerRules{events: events}, nil
	default:
		return nil, fmt.Errorf("alarm: unknown rule set %q", name)
	}
}

// DoorMotionRules derives intrusion_detected when motion follows a door
// opening on an armed device within the correlation window.
type DoorMotionRules struct {
	window time.Duration
}

func (r *DoorMotionRules) Name() string { return RuleSetDoorMotion }

func (r *DoorMotionRules) Evaluate(_ context.Context, d *device.Device, e *event.Event) (Outcome, error) {
	var out Outcome

	switch e.Category {
	case event.CategoryAccelOpen:
		out.Markers = append(out.Markers, MarkerUpdate{Kind: device.TriggerDoor, At: e.Timestamp})

	case event.CategorySoundEnter:
		out.Markers = append(out.Markers, MarkerUpdate{Kind: device.TriggerMotion, At: e.Timestamp})

		if !d.Armed || d.LastAccelAt == nil {
			break
		}
		// Window is inclusive at both ends. Motion timestamped before
		// the door opening never correlates with it.
		delta := e.Timestamp.Sub(*d.LastAccelAt)
		if delta >= 0 && delta <= r.window {
			out.Derived = append(out.Derived, event.Event{
				DeviceID:  d.ID,
				Category:  event.CategoryIntrusionDetected,
				Timestamp: e.Timestamp,
				Detail:    "motion after door opened",
			})
		}
	}

	return out, nil
}

// MoveDangerRules is the legacy correlation variant: a move event
// escalates to danger when the device saw a recent door opening, nobody
// verified a PIN lately, and no danger was already raised.
type MoveDangerRules struct {
	events event.Repository
}

// Legacy window widths, kept from the deployed rule tables.
const (
	moveDangerEventWindow = 5 * time.Minute
	moveDangerPinWindow   = 3 * time.Minute
)

func (r *MoveDangerRules) Name() string { return RuleSetMoveDanger }

func (r *MoveDangerRules) Evaluate(ctx context.Context, d *device.Device, e *event.Event) (Outcome, error) {
	var out Outcome
	if e.Category != event.CategoryMove {
		return out, nil
	}

	recentDanger, err := r.events.Latest(ctx, d.ID, event.CategoryDanger, e.Timestamp.Add(-moveDangerEventWindow))
	if err != nil {
		return out, fmt.Errorf("checking recent danger: %w", err)
	}
	if recentDanger != nil {
		return out, nil
	}

	recentPinCheck, err := r.events.Latest(ctx, d.ID, event.CategoryPinCheck, e.Timestamp.Add(-moveDangerPinWindow))
	if err != nil {
		return out, fmt.Errorf("checking recent pin verification: %w", err)
	}
	if recentPinCheck != nil {
		return out, nil
	}

	recentOpen, err := r.events.Latest(ctx, d.ID, event.CategoryAccelOpen, e.Timestamp.Add(-moveDangerEventWindow))
	if err != nil {
		return out, fmt.Errorf("checking recent opening: %w", err)
	}
	if recentOpen == nil {
		return out, nil
	}

	out.Derived = append(out.Derived, event.Event{
		DeviceID:  d.ID,
		Category:  event.CategoryDanger,
		Timestamp: e.Timestamp,
		Detail:    "unverified movement after entry",
	})
	return out, nil
}
