package event

import (
	"encoding/json"
	"errors"
	"time"
)

// Context identifies where in the host application an event originated.
type Context struct {
	PluginID  string `json:"pluginId"`
	RouteRef  string `json:"routeRef"`
	Extension string `json:"extension"`
}

// Event is a raw analytics event submitted by the host application.
// Events are treated as immutable once submitted.
type Event struct {
	Action     string         `json:"action"`
	Subject    string         `json:"subject"`
	Value      *float64       `json:"value,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Context    Context        `json:"context"`
}

// ErrMissingAction is returned by Validate for events without an action.
var ErrMissingAction = errors.New("event action is required")

// Validate checks the structural shape of the event. Field contents are
// not interpreted.
func (e Event) Validate() error {
	if e.Action == "" {
		return ErrMissingAction
	}
	return nil
}

// Metadata is a directory entity, or list of entities, attached to a
// record verbatim. It is never interpreted by the pipeline.
type Metadata = json.RawMessage

// Record is an Event enriched with its capture-time context.
//
// A Record is created exactly once per accepted capture and is never
// mutated afterwards. TeamMetadata holds whatever entity (or list of
// entities) the directory returned, verbatim.
type Record struct {
	Event        Event     `json:"event"`
	Timestamp    time.Time `json:"timestamp"`
	SessionID    string    `json:"sessionId,omitempty"`
	User         string    `json:"user,omitempty"`
	TeamMetadata Metadata  `json:"teamMetadata,omitempty"`
}

// Float returns a pointer to v, for populating Event.Value.
func Float(v float64) *float64 {
	return &v
}

// MarshalBatch serializes records as a JSON array in their original order.
// A nil or empty slice encodes as [].
func MarshalBatch(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	return json.Marshal(records)
}
