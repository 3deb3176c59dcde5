package domain

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"
)

// Status is the stored lifecycle status of an order.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusDeclined  Status = "DECLINED"
)

func (s Status) String() string { return string(s) }

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusActive, StatusCompleted, StatusDeclined:
		return true
	}
	return false
}

// Partition is the display bucket a status maps to. It is derived from
// status and never stored.
type Partition string

const (
	PartitionOpen     Partition = "open"
	PartitionActive   Partition = "active"
	PartitionArchived Partition = "archived"
)

// PartitionFor maps a status to its partition. COMPLETED and DECLINED
// both land in the archive.
func PartitionFor(s Status) Partition {
	switch s {
	case StatusActive:
		return PartitionActive
	case StatusCompleted, StatusDeclined:
		return PartitionArchived
	default:
		return PartitionOpen
	}
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

type ArtifactKind string

const (
	KindSample ArtifactKind = "sample"
	KindScript ArtifactKind = "script"
)

// KindForStatus returns the artifact kind produced under a workflow:
// open orders collect samples, active orders collect scripts.
func KindForStatus(s Status) ArtifactKind {
	if s == StatusActive {
		return KindScript
	}
	return KindSample
}

type QualityTier string

const (
	TierBronze QualityTier = "bronze"
	TierSilver QualityTier = "silver"
	TierGold   QualityTier = "gold"
)

func (q QualityTier) Valid() bool {
	switch q {
	case TierBronze, TierSilver, TierGold:
		return true
	}
	return false
}

// Lifecycle events accepted by the order state machine.
const (
	EventAccept   = "accept"
	EventDecline  = "decline"
	EventComplete = "complete"
)

type lifecycleContext struct {
	OrderID string
}

// Lifecycle wraps the order state machine. OPEN and ACTIVE are the only
// non-terminal states; COMPLETED and DECLINED have no outgoing transitions.
type Lifecycle struct {
	interpreter *statekit.Interpreter[lifecycleContext]
}

// NewLifecycle builds a state machine positioned at the order's current
// status.
func NewLifecycle(orderID string, current Status) (*Lifecycle, error) {
	if !current.Valid() {
		return nil, fmt.Errorf("unknown order status %q", current)
	}
	builder := statekit.NewMachine[lifecycleContext]("order-lifecycle").
		WithInitial(statekit.StateID(current)).
		WithContext(lifecycleContext{OrderID: orderID})

	builder.State(statekit.StateID(StatusOpen)).
		On(EventAccept).Target(statekit.StateID(StatusActive)).
		On(EventDecline).Target(statekit.StateID(StatusDeclined)).
		Done()
	builder.State(statekit.StateID(StatusActive)).
		On(EventComplete).Target(statekit.StateID(StatusCompleted)).
		Done()
	builder.State(statekit.StateID(StatusCompleted)).Done()
	builder.State(statekit.StateID(StatusDeclined)).Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build order lifecycle: %w", err)
	}
	interp := statekit.NewInterpreter(machine)
	interp.Start()
	return &Lifecycle{interpreter: interp}, nil
}

// Apply fires a lifecycle event. The machine stays put on an invalid
// event, which we surface as an error.
func (l *Lifecycle) Apply(event string) error {
	before := l.Current()
	l.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	if l.Current() == before {
		return fmt.Errorf("cannot %s an order in status %s", event, before)
	}
	return nil
}

func (l *Lifecycle) Current() Status {
	return Status(l.interpreter.State().Value)
}

// EventForTarget maps a desired target status to the lifecycle event that
// reaches it, so API callers can PATCH a status directly.
func EventForTarget(target Status) (string, error) {
	switch target {
	case StatusActive:
		return EventAccept, nil
	case StatusDeclined:
		return EventDecline, nil
	case StatusCompleted:
		return EventComplete, nil
	default:
		return "", fmt.Errorf("no transition targets status %s", target)
	}
}

// NewOrderID generates an order identifier of the form PW-YYYYMMDD-SSSS
// where SSSS is the last four digits of the millisecond clock. Not
// collision proof under rapid creation; the backend rejects duplicates.
func NewOrderID(now time.Time) string {
	ms := now.UnixMilli() % 10000
	return fmt.Sprintf("PW-%s-%04d", now.Format("20060102"), ms)
}

// WeekKey buckets a timestamp into its ISO calendar week, e.g. 2025-W35.
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
