// Package hostpage describes the third-party chat page the engine drives:
// how its nodes are addressed, what can be done to them, and which
// selectors identify the affordances the per-item script relies on.
package hostpage

import (
	"context"
	"fmt"
	"strings"
)

// Element addresses one node in the host document as a chain of
// (selector, index) lookups, each scoped to the previous node. It stays
// valid as long as the page keeps the same structure, which is all the
// engine ever assumes between two steps.
type Element struct {
	Selector string
	Index    int
	Parent   *Element
}

// At returns the index-th match of selector in the document.
func At(selector string, index int) *Element {
	return &Element{Selector: selector, Index: index}
}

// Within returns the index-th match of selector inside e.
func (e *Element) Within(selector string, index int) *Element {
	return &Element{Selector: selector, Index: index, Parent: e}
}

// Path returns the lookup chain from the document root.
func (e *Element) Path() []*Element {
	var out []*Element
	for cur := e; cur != nil; cur = cur.Parent {
		out = append([]*Element{cur}, out...)
	}
	return out
}

func (e *Element) String() string {
	if e == nil {
		return "<nil>"
	}
	parts := make([]string, 0, 2)
	for _, step := range e.Path() {
		parts = append(parts, fmt.Sprintf("%s[%d]", step.Selector, step.Index))
	}
	return strings.Join(parts, " > ")
}

// Event is a native DOM event to dispatch on an element.
type Event struct {
	Type      string
	Bubbles   bool
	InputType string
	Data      string
}

// FocusEvent returns a bubbling focus event.
func FocusEvent() Event { return Event{Type: "focus", Bubbles: true} }

// InputEvent returns a bubbling input event describing inserted text.
func InputEvent(data string) Event {
	return Event{Type: "input", Bubbles: true, InputType: "insertText", Data: data}
}

// ChangeEvent returns a bubbling change event.
func ChangeEvent() Event { return Event{Type: "change", Bubbles: true} }

// Document is the host page as seen by the engine. Implementations talk to a
// real browser; tests use an in-memory fake.
type Document interface {
	// Query returns the first node matching selector, or nil when there is none.
	Query(ctx context.Context, selector string) (*Element, error)
	// QueryAll returns every match of selector inside scope (the document when
	// scope is nil).
	QueryAll(ctx context.Context, scope *Element, selector string) ([]*Element, error)
	Click(ctx context.Context, el *Element) error
	// Attribute returns the named attribute, or "" when the node or the
	// attribute is missing.
	Attribute(ctx context.Context, el *Element, name string) (string, error)
	Value(ctx context.Context, el *Element) (string, error)
	// SetValue writes the value property directly, bypassing any framework.
	SetValue(ctx context.Context, el *Element, value string) error
	Dispatch(ctx context.Context, el *Element, ev Event) error
	// Call runs the JavaScript function fn as fn(node, ...args) in the page
	// and decodes its JSON result into out (which may be nil).
	Call(ctx context.Context, el *Element, fn string, out any, args ...any) error
	// NextFrame resolves after the page renders its next frame.
	NextFrame(ctx context.Context) error
}
