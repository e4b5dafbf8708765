// Package domevents is the default event source: it turns user
// interactions reported by a host into captured events.
package domevents

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/vincentbai/shadowtrace/internal/dom"
	"github.com/vincentbai/shadowtrace/internal/event"
	"github.com/vincentbai/shadowtrace/internal/plugin"
	"github.com/vincentbai/shadowtrace/internal/scrub"
)

// Types are the host event types the plugin listens for.
var Types = []string{"pointerdown", "change", "submit", "load"}

// actionHints maps host event types to the hint handed to the normalizer.
var actionHints = map[string]string{
	"pointerdown": "click",
}

// Interaction is one host event. Target is nil for document-level events
// such as load.
type Interaction struct {
	Type   string
	Target dom.Element
}

// Host dispatches user interactions.
type Host interface {
	// Listen registers handler for the given event types and returns a
	// function that removes it.
	Listen(types []string, handler func(Interaction)) (remove func(), err error)
}

// Plugin captures interactions from a Host.
type Plugin struct {
	host   Host
	engine *scrub.Engine
	logger *slog.Logger

	mu      sync.Mutex
	removes []func()
}

// New creates a plugin for host. A nil engine scrubs nothing.
func New(host Host, engine *scrub.Engine, logger *slog.Logger) *Plugin {
	if engine == nil {
		engine = scrub.New(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Plugin{
		host:   host,
		engine: engine,
		logger: logger.With("component", "domevents"),
	}
}

var _ plugin.Plugin = (*Plugin)(nil)

// Attach starts listening on the host. Listeners are registered even for
// unsampled clients; handle drops their interactions before doing any
// work.
func (p *Plugin) Attach(capturer plugin.Capturer) error {
	if p.host == nil {
		return fmt.Errorf("domevents: no host")
	}
	remove, err := p.host.Listen(Types, func(interaction Interaction) {
		p.handle(capturer, interaction)
	})
	if err != nil {
		return fmt.Errorf("domevents: listen: %w", err)
	}
	p.mu.Lock()
	p.removes = append(p.removes, remove)
	p.mu.Unlock()
	return nil
}

// Detach removes every listener registered by Attach.
func (p *Plugin) Detach() {
	p.mu.Lock()
	removes := p.removes
	p.removes = nil
	p.mu.Unlock()
	for _, remove := range removes {
		remove()
	}
}

func (p *Plugin) handle(capturer plugin.Capturer, interaction Interaction) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("dropping interaction", "type", interaction.Type, "panic", r)
		}
	}()

	if !capturer.Sampled() {
		return
	}

	hint := interaction.Type
	if mapped, ok := actionHints[hint]; ok {
		hint = mapped
	}

	resolved := dom.Resolve(interaction.Target)
	descriptor := p.engine.Scrub(dom.Describe(resolved))
	capturer.Capture(event.Normalize(hint, resolved, descriptor, capturer.PageContext(), capturer.Now()))
}
