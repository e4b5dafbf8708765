package models

import "time"

// TimestampLayout is the wire format of Event.Timestamp (ISO-8601, UTC, millisecond precision).
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ElementDescriptor is a snapshot of the element an interaction resolved to.
type ElementDescriptor struct {
	Tag        string            `json:"tag" cbor:"tag"`
	ID         string            `json:"id" cbor:"id"`
	ClassName  string            `json:"className" cbor:"className"`
	CSS        string            `json:"css" cbor:"css"` // inline style text
	Attributes map[string]string `json:"attributes" cbor:"attributes"`
	InnerText  string            `json:"innerText" cbor:"innerText"`
	Value      *string           `json:"value,omitempty" cbor:"value,omitempty"` // form controls only
}

// Event is a normalized interaction record. Element is nil for interactions
// without a resolvable target, such as a page load.
type Event struct {
	Action       string             `json:"action" cbor:"action"` // CLICK|INPUT|SELECT|SUBMIT|LOAD|...
	Page         string             `json:"page" cbor:"page"`
	PreviousPage string             `json:"previousPage" cbor:"previousPage"`
	Timestamp    string             `json:"timestamp" cbor:"timestamp"`
	Element      *ElementDescriptor `json:"element" cbor:"element"`
	SessionID    string             `json:"sessionId" cbor:"sessionId"`
}

// Batch is the payload of a batch delivery. It serializes as a bare array.
type Batch []Event

// FormatTimestamp renders t in the wire timestamp format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Clone returns a deep copy of d, or nil if d is nil.
func (d *ElementDescriptor) Clone() *ElementDescriptor {
	if d == nil {
		return nil
	}
	clone := *d
	if d.Attributes != nil {
		clone.Attributes = make(map[string]string, len(d.Attributes))
		for name, value := range d.Attributes {
			clone.Attributes[name] = value
		}
	}
	if d.Value != nil {
		value := *d.Value
		clone.Value = &value
	}
	return &clone
}
