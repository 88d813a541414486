// Package interact turns UI interaction events into user-origin actions.
//
// The UI component tree itself lives outside this module; what arrives
// here is the composed event path - the target element and its ancestors -
// modeled as a closed set of widget kinds. Each element can say whether it
// is primarily interactive and what its preferred human-readable label is,
// replacing the attribute sniffing a DOM walk would need.
package interact

import "strings"

// Kind enumerates the widget kinds the capture layer distinguishes.
type Kind string

const (
	KindButton   Kind = "button"
	KindLink     Kind = "link"
	KindField    Kind = "field" // text inputs, selects, form controls
	KindCheckbox Kind = "checkbox"
	KindSlider   Kind = "slider"
	KindGeneric  Kind = "generic" // any other node on the path
)

// interactiveRoles are ARIA roles that make a generic element count as
// primary-interactive.
var interactiveRoles = map[string]bool{
	"button":   true,
	"link":     true,
	"checkbox": true,
	"radio":    true,
	"switch":   true,
	"slider":   true,
	"tab":      true,
	"menuitem": true,
	"textbox":  true,
	"combobox": true,
}

// maxLabelLen caps labels derived from free text content.
const maxLabelLen = 60

// Element is one node on the composed event path.
type Element struct {
	Kind       Kind
	Tag        string
	Role       string // ARIA role, when present
	Label      string // explicit accessible label
	LabelledBy string // text resolved from a label-by-reference
	TestID     string
	Title      string
	ID         string
	Name       string
	Text       string // rendered text content

	// DiagnosticsTrigger marks elements that open the diagnostics view;
	// tracing the act of opening diagnostics would pollute every trace.
	DiagnosticsTrigger bool
}

// PrimaryInteractive reports whether the element is semantically a
// control the user operates, as opposed to merely being identifiable.
func (e *Element) PrimaryInteractive() bool {
	switch e.Kind {
	case KindButton, KindLink, KindField, KindCheckbox, KindSlider:
		return true
	}
	return interactiveRoles[e.Role]
}

// Identifiable reports whether the element carries enough metadata to
// name it even though it is not a control itself.
func (e *Element) Identifiable() bool {
	return e.TestID != "" || e.Label != "" || e.Title != ""
}

// PreferredLabel derives a human-readable label using a fixed priority:
// explicit accessible label, label-by-reference text, test identifier,
// title, element id, name attribute, trimmed text content, then a
// tag/role fallback.
func (e *Element) PreferredLabel() string {
	for _, candidate := range []string{
		e.Label,
		e.LabelledBy,
		e.TestID,
		e.Title,
		e.ID,
		e.Name,
	} {
		if candidate != "" {
			return candidate
		}
	}

	if text := strings.TrimSpace(e.Text); text != "" {
		return truncateLabel(text)
	}

	if e.Role != "" {
		return e.Role
	}
	if e.Tag != "" {
		return e.Tag
	}
	return string(e.Kind)
}

func truncateLabel(s string) string {
	runes := []rune(s)
	if len(runes) <= maxLabelLen {
		return s
	}
	return string(runes[:maxLabelLen])
}

// ResolveInteractive picks the most specific interesting element from the
// composed event path (target first). Primary-interactive elements win
// over merely-identifiable ones, which win over the raw target.
func ResolveInteractive(path []*Element) *Element {
	if len(path) == 0 {
		return nil
	}
	for _, el := range path {
		if el.PrimaryInteractive() {
			return el
		}
	}
	for _, el := range path {
		if el.Identifiable() {
			return el
		}
	}
	return path[0]
}
