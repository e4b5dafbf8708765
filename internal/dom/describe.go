package dom

import (
	"log/slog"

	"github.com/vincentbai/shadowtrace/internal/models"
)

// Describe snapshots el into a descriptor. It returns nil only when el is
// nil. Each property is read independently: a property whose read panics
// is left empty and the rest of the descriptor is still filled.
func Describe(el Element) *models.ElementDescriptor {
	if el == nil {
		return nil
	}

	descriptor := &models.ElementDescriptor{
		Tag:        read(el.TagName),
		ID:         read(func() string { return ID(el) }),
		ClassName:  read(func() string { return ClassName(el) }),
		CSS:        read(func() string { return Style(el) }),
		Attributes: readAttributes(el),
		InnerText:  read(el.Text),
	}

	if readFormControl(el) {
		if value, ok := readValue(el); ok {
			descriptor.Value = &value
		}
	}
	return descriptor
}

func read(property func() string) (value string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("reading element property", "panic", r)
			value = ""
		}
	}()
	return property()
}

func readAttributes(el Element) (attributes map[string]string) {
	attributes = map[string]string{}
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("reading element attributes", "panic", r)
			attributes = map[string]string{}
		}
	}()
	for _, attr := range el.Attributes() {
		attributes[attr.Name] = attr.Value
	}
	return attributes
}

func readValue(el Element) (value string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("reading form value", "panic", r)
			value, ok = "", false
		}
	}()
	return el.Value()
}

func readFormControl(el Element) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return IsFormControl(el)
}
