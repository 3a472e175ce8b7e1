package provisioning

import (
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/imamik/rayform/internal/metrics"
)

// Observer defines the interface for structured observability during provisioning.
type Observer interface {
	Logger

	// Event emits a structured event
	Event(event Event)

	// Progress reports progress for a phase
	Progress(phase string, current, total int)

	// WithFields returns a new Observer with additional context fields
	WithFields(fields map[string]string) Observer
}

// Event represents a structured provisioning event.
type Event struct {
	Type      EventType         // Type of event
	Phase     string            // Phase name (e.g., "network", "compute")
	Message   string            // Human-readable message
	Resource  string            // Resource name if applicable
	Kind      string            // Resource kind (e.g., "vpc", "instance")
	Duration  time.Duration     // Set on phase completion
	Timestamp time.Time         // When the event occurred
	Fields    map[string]string // Additional contextual fields
}

// EventType represents the type of provisioning event.
type EventType string

const (
	// EventPhaseStarted indicates a provisioning phase has started.
	EventPhaseStarted EventType = "phase.started"
	// EventPhaseCompleted indicates a provisioning phase completed successfully.
	EventPhaseCompleted EventType = "phase.completed"
	// EventPhaseFailed indicates a provisioning phase failed.
	EventPhaseFailed EventType = "phase.failed"

	// EventResourceCreated indicates a resource was created or reconciled.
	EventResourceCreated EventType = "resource.created"
	// EventResourceExists indicates a resource already matched the desired state.
	EventResourceExists EventType = "resource.exists"
	// EventResourceUpdated indicates drift on an existing resource was corrected.
	EventResourceUpdated EventType = "resource.updated"
	// EventResourceFailed indicates a resource operation failed.
	EventResourceFailed EventType = "resource.failed"
	// EventResourceDeleted indicates a resource was deleted successfully.
	EventResourceDeleted EventType = "resource.deleted"

	// EventValidationWarning indicates a validation warning.
	EventValidationWarning EventType = "validation.warning"

	// EventProgress indicates progress in a long-running operation.
	EventProgress EventType = "progress"
)

// HCLogObserver implements Observer on top of an hclog.Logger and feeds
// resource and phase events into a metrics recorder.
type HCLogObserver struct {
	logger  hclog.Logger
	metrics *metrics.Recorder
	fields  map[string]string
}

// NewHCLogObserver creates an observer. A nil logger discards output and a
// nil recorder disables metrics.
func NewHCLogObserver(logger hclog.Logger, rec *metrics.Recorder) *HCLogObserver {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &HCLogObserver{
		logger:  logger,
		metrics: rec,
		fields:  make(map[string]string),
	}
}

// Printf implements Logger.
func (o *HCLogObserver) Printf(format string, v ...interface{}) {
	o.logger.Info(fmt.Sprintf(format, v...), o.args(nil)...)
}

// Event implements Observer.
func (o *HCLogObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	o.record(event)

	args := []interface{}{"event", string(event.Type)}
	if event.Phase != "" {
		args = append(args, "phase", event.Phase)
	}
	if event.Kind != "" {
		args = append(args, "kind", event.Kind)
	}
	if event.Resource != "" {
		args = append(args, "resource", event.Resource)
	}
	if event.Duration > 0 {
		args = append(args, "duration", event.Duration.Round(time.Millisecond).String())
	}
	args = append(args, o.args(event.Fields)...)

	switch event.Type {
	case EventPhaseFailed, EventResourceFailed:
		o.logger.Error(event.Message, args...)
	case EventValidationWarning:
		o.logger.Warn(event.Message, args...)
	case EventProgress:
		o.logger.Debug(event.Message, args...)
	default:
		o.logger.Info(event.Message, args...)
	}
}

func (o *HCLogObserver) record(event Event) {
	switch event.Type {
	case EventPhaseCompleted:
		o.metrics.ObservePhase(event.Phase, event.Duration)
	case EventResourceCreated:
		o.metrics.RecordOperation(event.Kind, metrics.ResultCreated)
	case EventResourceExists:
		o.metrics.RecordOperation(event.Kind, metrics.ResultExists)
	case EventResourceUpdated:
		o.metrics.RecordOperation(event.Kind, metrics.ResultUpdated)
	case EventResourceDeleted:
		o.metrics.RecordOperation(event.Kind, metrics.ResultDeleted)
	case EventResourceFailed:
		o.metrics.RecordOperation(event.Kind, metrics.ResultError)
	}
}

// Progress implements Observer.
func (o *HCLogObserver) Progress(phase string, current, total int) {
	o.Event(Event{
		Type:    EventProgress,
		Phase:   phase,
		Message: "progress",
		Fields: map[string]string{
			"current": fmt.Sprint(current),
			"total":   fmt.Sprint(total),
		},
	})
}

// WithFields implements Observer.
func (o *HCLogObserver) WithFields(fields map[string]string) Observer {
	merged := make(map[string]string, len(o.fields)+len(fields))
	for k, v := range o.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &HCLogObserver{logger: o.logger, metrics: o.metrics, fields: merged}
}

// args flattens context fields and extra into sorted key/value pairs.
// Event fields win over context fields.
func (o *HCLogObserver) args(extra map[string]string) []interface{} {
	merged := make(map[string]string, len(o.fields)+len(extra))
	for k, v := range o.fields {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]interface{}, 0, 2*len(keys))
	for _, k := range keys {
		out = append(out, k, merged[k])
	}
	return out
}

// Helper functions for common events

// LogPhaseStart logs a phase start event.
func LogPhaseStart(observer Observer, phase string) {
	observer.Event(Event{
		Type:    EventPhaseStarted,
		Phase:   phase,
		Message: "starting",
	})
}

// LogPhaseComplete logs a phase completion event.
func LogPhaseComplete(observer Observer, phase string, duration time.Duration) {
	observer.Event(Event{
		Type:     EventPhaseCompleted,
		Phase:    phase,
		Duration: duration,
		Message:  "completed",
	})
}

// LogPhaseFailed logs a phase failure event.
func LogPhaseFailed(observer Observer, phase string, err error) {
	observer.Event(Event{
		Type:    EventPhaseFailed,
		Phase:   phase,
		Message: fmt.Sprintf("failed: %v", err),
	})
}

// LogResource logs the outcome of an ensure operation on a resource.
func LogResource(observer Observer, typ EventType, phase, kind, name, id string) {
	fields := map[string]string{}
	if id != "" {
		fields["id"] = id
	}
	observer.Event(Event{
		Type:     typ,
		Phase:    phase,
		Kind:     kind,
		Resource: name,
		Message:  fmt.Sprintf("%s %s", kind, resourceVerb(typ)),
		Fields:   fields,
	})
}

// LogResourceFailed logs a failed resource operation.
func LogResourceFailed(observer Observer, phase, kind, name string, err error) {
	observer.Event(Event{
		Type:     EventResourceFailed,
		Phase:    phase,
		Kind:     kind,
		Resource: name,
		Message:  fmt.Sprintf("%s failed: %v", kind, err),
	})
}

// LogValidationWarning logs a non-fatal validation finding.
func LogValidationWarning(observer Observer, field, message string) {
	observer.Event(Event{
		Type:    EventValidationWarning,
		Phase:   "validation",
		Message: message,
		Fields:  map[string]string{"field": field},
	})
}

func resourceVerb(typ EventType) string {
	switch typ {
	case EventResourceCreated:
		return "created"
	case EventResourceExists:
		return "already exists"
	case EventResourceUpdated:
		return "updated"
	case EventResourceDeleted:
		return "deleted"
	default:
		return string(typ)
	}
}
