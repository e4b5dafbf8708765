// Package plugin defines how event sources attach to a capture client.
package plugin

import (
	"time"

	"github.com/vincentbai/shadowtrace/internal/event"
	"github.com/vincentbai/shadowtrace/internal/models"
)

// Capturer is the part of a client a plugin may use.
type Capturer interface {
	// Capture records one event. The client fills in the session id.
	Capture(models.Event)
	// Sampled reports whether this client records anything at all.
	Sampled() bool
	// PageContext reports the page events are attributed to.
	PageContext() event.PageContext
	// Now is the client's clock.
	Now() time.Time
}

// Plugin is an event source. Attach is called once per client.
type Plugin interface {
	Attach(Capturer) error
}

// Func adapts a function to the Plugin interface.
type Func func(Capturer) error

func (f Func) Attach(c Capturer) error { return f(c) }
