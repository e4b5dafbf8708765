// Package dom models the host document elements an interaction can
// target, and turns a raw target into the element and descriptor that
// end up on the wire.
package dom

import "strings"

// Element is a read-only view of a host document element. Implementations
// may panic on unreadable nodes; callers in this package recover.
type Element interface {
	// TagName returns the element's tag, conventionally uppercase.
	TagName() string
	// Attribute returns the value of the named attribute.
	Attribute(name string) (string, bool)
	// Attributes returns every attribute present on the element.
	Attributes() []Attr
	// Text returns the rendered text content.
	Text() string
	// Value returns the current value of a form control.
	Value() (string, bool)
	// Parent returns the parent element, or nil at the top of the tree.
	Parent() Element
}

// Attr is a single element attribute.
type Attr struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ID returns the element's id attribute, or "".
func ID(el Element) string {
	id, _ := el.Attribute("id")
	return id
}

// ClassName returns the element's class attribute, or "".
func ClassName(el Element) string {
	class, _ := el.Attribute("class")
	return class
}

// Style returns the element's inline style text, or "".
func Style(el Element) string {
	style, _ := el.Attribute("style")
	return style
}

// HasTag reports whether el's tag equals tag, ignoring case.
func HasTag(el Element, tag string) bool {
	return strings.EqualFold(el.TagName(), tag)
}

// nonTextInputTypes are input types whose value is not free text.
var nonTextInputTypes = map[string]bool{
	"button":   true,
	"checkbox": true,
	"file":     true,
	"image":    true,
	"radio":    true,
	"reset":    true,
	"submit":   true,
}

// IsFormControl reports whether el carries a user-editable value: a
// textual input, a select, or a text area.
func IsFormControl(el Element) bool {
	switch {
	case HasTag(el, "select"), HasTag(el, "textarea"):
		return true
	case HasTag(el, "input"):
		inputType, _ := el.Attribute("type")
		return !nonTextInputTypes[strings.ToLower(inputType)]
	}
	return false
}

// Node is an in-memory Element. Snapshots taken from a live host are
// decoded into Node chains.
type Node struct {
	Tag      string
	Attrs    []Attr
	TextBody string
	Val      *string
	parent   *Node
}

// NewNode creates a detached node with the given tag and attributes.
func NewNode(tag string, attrs ...Attr) *Node {
	return &Node{Tag: strings.ToUpper(tag), Attrs: attrs}
}

// Append makes child a child of n and returns child.
func (n *Node) Append(child *Node) *Node {
	child.parent = n
	return child
}

// WithText sets the rendered text and returns n.
func (n *Node) WithText(text string) *Node {
	n.TextBody = text
	return n
}

// WithValue sets the form value and returns n.
func (n *Node) WithValue(value string) *Node {
	n.Val = &value
	return n
}

func (n *Node) TagName() string { return n.Tag }

func (n *Node) Attribute(name string) (string, bool) {
	for _, attr := range n.Attrs {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return "", false
}

func (n *Node) Attributes() []Attr { return n.Attrs }

func (n *Node) Text() string { return n.TextBody }

func (n *Node) Value() (string, bool) {
	if n.Val == nil {
		return "", false
	}
	return *n.Val, true
}

func (n *Node) Parent() Element {
	if n.parent == nil {
		return nil
	}
	return n.parent
}
