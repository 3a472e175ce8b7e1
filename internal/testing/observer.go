package testing

import (
	"fmt"
	"sync"

	"github.com/imamik/rayform/internal/provisioning"
)

// RecordingObserver keeps every event and message. Safe for concurrent use.
type RecordingObserver struct {
	mu       *sync.Mutex
	events   *[]provisioning.Event
	messages *[]string
	fields   map[string]string
}

// NewRecordingObserver creates an empty observer.
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{
		mu:       &sync.Mutex{},
		events:   &[]provisioning.Event{},
		messages: &[]string{},
	}
}

// Printf implements provisioning.Logger.
func (o *RecordingObserver) Printf(format string, v ...interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	*o.messages = append(*o.messages, fmt.Sprintf(format, v...))
}

// Event implements provisioning.Observer.
func (o *RecordingObserver) Event(event provisioning.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.fields) > 0 {
		merged := make(map[string]string, len(o.fields)+len(event.Fields))
		for k, v := range o.fields {
			merged[k] = v
		}
		for k, v := range event.Fields {
			merged[k] = v
		}
		event.Fields = merged
	}
	*o.events = append(*o.events, event)
}

// Progress implements provisioning.Observer.
func (o *RecordingObserver) Progress(phase string, current, total int) {
	o.Event(provisioning.Event{
		Type:    provisioning.EventProgress,
		Phase:   phase,
		Message: fmt.Sprintf("%d/%d", current, total),
	})
}

// WithFields returns an observer sharing this one's event log.
func (o *RecordingObserver) WithFields(fields map[string]string) provisioning.Observer {
	merged := make(map[string]string, len(o.fields)+len(fields))
	for k, v := range o.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &RecordingObserver{mu: o.mu, events: o.events, messages: o.messages, fields: merged}
}

// Events returns a copy of all recorded events.
func (o *RecordingObserver) Events() []provisioning.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]provisioning.Event(nil), *o.events...)
}

// Messages returns a copy of all Printf output.
func (o *RecordingObserver) Messages() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), *o.messages...)
}

// Resources returns "kind/name" for every event of type typ, in order.
func (o *RecordingObserver) Resources(typ provisioning.EventType) []string {
	var out []string
	for _, e := range o.Events() {
		if e.Type == typ {
			out = append(out, e.Kind+"/"+e.Resource)
		}
	}
	return out
}
