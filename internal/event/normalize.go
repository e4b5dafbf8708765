// Package event turns resolved, scrubbed interactions into the
// canonical records the client delivers.
package event

import (
	"strings"
	"time"

	"github.com/vincentbai/shadowtrace/internal/dom"
	"github.com/vincentbai/shadowtrace/internal/models"
)

// PageContext reports where the host currently is.
type PageContext interface {
	// Location returns the current page address.
	Location() string
	// Referrer returns the page that led to the current one, or "".
	Referrer() string
}

// StaticPage is a PageContext with fixed values.
type StaticPage struct {
	URL         string
	ReferrerURL string
}

func (p StaticPage) Location() string { return p.URL }
func (p StaticPage) Referrer() string { return p.ReferrerURL }

// Normalize builds the event for one interaction. A "change" on a text
// control is reported as INPUT and on a select as SELECT; any other hint
// is uppercased. The session id is left for the client to fill.
func Normalize(actionHint string, resolved dom.Element, scrubbed *models.ElementDescriptor, page PageContext, now time.Time) models.Event {
	record := models.Event{
		Action:    action(actionHint, resolved),
		Timestamp: models.FormatTimestamp(now),
		Element:   scrubbed,
	}
	if page != nil {
		record.Page = page.Location()
		record.PreviousPage = page.Referrer()
	}
	return record
}

func action(hint string, resolved dom.Element) string {
	if strings.EqualFold(hint, "change") && resolved != nil {
		switch {
		case dom.HasTag(resolved, "input"), dom.HasTag(resolved, "textarea"):
			return "INPUT"
		case dom.HasTag(resolved, "select"):
			return "SELECT"
		}
	}
	return strings.ToUpper(hint)
}
