package analytics

import (
	"github.com/roach88/pulse/internal/config"
	"github.com/roach88/pulse/internal/debuglog"
	"github.com/roach88/pulse/internal/event"
	"github.com/roach88/pulse/internal/identity"
	"github.com/roach88/pulse/internal/session"
)

// Types hosts need to implement collaborators and submit events.
type (
	Event        = event.Event
	EventContext = event.Context
	Record       = event.Record
	Metadata     = event.Metadata

	Identity  = identity.Identity
	Provider  = identity.Provider
	Directory = identity.Directory

	SessionState = session.State
	Notifier     = session.Notifier
	Slot         = session.Slot
	SlotEntry    = session.Entry

	ErrorSink = debuglog.ErrorSink
	Config    = config.Values
)

// Session transitions.
const (
	SignedIn  = session.SignedIn
	SignedOut = session.SignedOut
)

// Float returns a pointer to v, for populating Event.Value.
func Float(v float64) *float64 {
	return event.Float(v)
}
