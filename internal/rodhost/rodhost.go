// Package rodhost adapts a Chrome page driven by go-rod to the
// domevents.Host contract, so a real browser can feed the capture
// pipeline.
package rodhost

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/ysmood/gson"

	"github.com/vincentbai/shadowtrace/internal/dom"
	"github.com/vincentbai/shadowtrace/internal/plugin/domevents"
)

// BindingName is the page function the listener script reports through.
const BindingName = "__shadowtraceEmit"

// listenerScript installs capturing listeners once per document. Each
// interaction is reported with the target's ancestor chain, target first.
const listenerScript = `() => {
	if (window.__shadowtraceInstalled) return;
	window.__shadowtraceInstalled = true;

	const snapshot = (el) => {
		const attributes = [];
		for (const a of el.attributes || []) attributes.push({name: a.name, value: a.value});
		const out = {tag: el.tagName, attributes, text: el.innerText || ''};
		if (typeof el.value === 'string') out.value = el.value;
		return out;
	};
	const chain = (target) => {
		const out = [];
		for (let el = target; el && el.nodeType === 1; el = el.parentElement) out.push(snapshot(el));
		return out;
	};
	const emit = (type, target) => {
		try {
			window.` + BindingName + `({
				type,
				location: window.location.href,
				referrer: document.referrer,
				chain: target && target.nodeType === 1 ? chain(target) : [],
			});
		} catch (e) {}
	};

	for (const type of ['pointerdown', 'change', 'submit']) {
		document.addEventListener(type, (e) => emit(type, e.target), true);
	}
	window.addEventListener('load', () => emit('load', null));
}`

// payload is what the listener script sends for each interaction.
type payload struct {
	Type     string         `json:"type"`
	Location string         `json:"location"`
	Referrer string         `json:"referrer"`
	Chain    []dom.Snapshot `json:"chain"`
}

type listener struct {
	types   map[string]bool
	handler func(domevents.Interaction)
}

// Host reports interactions from one rod page. It also serves as the
// event.PageContext for that page, returning the location and referrer of
// the most recent interaction.
type Host struct {
	page   *rod.Page
	logger *slog.Logger

	installOnce sync.Once
	installErr  error
	stopBinding func() error
	removeInit  func() error

	mu        sync.RWMutex
	listeners map[int]listener
	nextID    int
	location  string
	referrer  string
}

// New creates a host for page. Nothing is injected until the first
// Listen.
func New(page *rod.Page, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{
		page:      page,
		logger:    logger.With("component", "rodhost"),
		listeners: make(map[int]listener),
	}
}

var _ domevents.Host = (*Host)(nil)

// Listen registers handler for types, injecting the listener script into
// the page on first use.
func (h *Host) Listen(types []string, handler func(domevents.Interaction)) (func(), error) {
	h.installOnce.Do(func() { h.installErr = h.install() })
	if h.installErr != nil {
		return nil, h.installErr
	}

	wanted := make(map[string]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = listener{types: wanted, handler: handler}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}, nil
}

func (h *Host) install() error {
	stop, err := h.page.Expose(BindingName, func(j gson.JSON) (interface{}, error) {
		raw, err := j.MarshalJSON()
		if err != nil {
			return nil, err
		}
		return nil, h.deliver(raw)
	})
	if err != nil {
		return fmt.Errorf("expose binding: %w", err)
	}
	h.stopBinding = stop

	remove, err := h.page.EvalOnNewDocument("(" + listenerScript + ")()")
	if err != nil {
		return fmt.Errorf("inject listener script: %w", err)
	}
	h.removeInit = remove

	if _, err := h.page.Eval(listenerScript); err != nil {
		return fmt.Errorf("install listeners on current document: %w", err)
	}
	return nil
}

// deliver decodes one payload and hands it to the matching listeners.
func (h *Host) deliver(raw []byte) error {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Debug("discarding malformed interaction", "error", err)
		return fmt.Errorf("decode interaction: %w", err)
	}

	interaction := domevents.Interaction{Type: p.Type}
	if target := dom.FromChain(p.Chain); target != nil {
		interaction.Target = target
	}

	h.mu.Lock()
	h.location = p.Location
	h.referrer = p.Referrer
	matched := make([]func(domevents.Interaction), 0, len(h.listeners))
	for _, l := range h.listeners {
		if l.types[p.Type] {
			matched = append(matched, l.handler)
		}
	}
	h.mu.Unlock()

	for _, handler := range matched {
		handler(interaction)
	}
	return nil
}

// Location returns the page address reported with the latest interaction.
func (h *Host) Location() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.location
}

// Referrer returns the referrer reported with the latest interaction.
func (h *Host) Referrer() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.referrer
}

// Close removes the injected script and binding. Listeners already
// running in open documents stay until the next navigation.
func (h *Host) Close() error {
	var firstErr error
	if h.removeInit != nil {
		if err := h.removeInit(); err != nil {
			firstErr = err
		}
	}
	if h.stopBinding != nil {
		if err := h.stopBinding(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
