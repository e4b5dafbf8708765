package dom

import "log/slog"

// Resolve maps the raw target of an interaction to the element worth
// reporting. Clicks usually land on a leaf (an icon, a text span) nested
// in the control the user meant, so the walk prefers the nearest
// interactive ancestor and otherwise the nearest ancestor carrying an id
// or class. When neither exists the original target is returned.
//
// The walk never goes past the document root. A panic from the Element
// implementation is recovered and yields target.
func Resolve(target Element) (resolved Element) {
	if target == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("resolving target element", "panic", r)
			resolved = target
		}
	}()

	if candidate := walk(target, isInteractive); candidate != nil {
		return candidate
	}
	if isIdentifiable(target) {
		return target
	}
	if ancestor := walk(target, isIdentifiable); ancestor != nil {
		return ancestor
	}
	return target
}

// walk returns the first element from el upward (inclusive) that
// satisfies match, stopping at the document root.
func walk(el Element, match func(Element) bool) Element {
	for ; el != nil && !isRoot(el); el = el.Parent() {
		if match(el) {
			return el
		}
	}
	return nil
}

func isRoot(el Element) bool {
	return HasTag(el, "body") || HasTag(el, "html")
}

func isInteractive(el Element) bool {
	if HasTag(el, "button") {
		return true
	}
	role, _ := el.Attribute("role")
	return role == "button"
}

func isIdentifiable(el Element) bool {
	return ID(el) != "" || ClassName(el) != ""
}
