// Package hostpagetest provides an in-memory hostpage.Document for tests.
package hostpagetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chr1sbest/imagebatch/internal/hostpage"
)

// Node is one element of the fake document.
type Node struct {
	Attrs    map[string]string
	Value    string
	Children map[string][]*Node
}

// NewNode returns a node with the given attributes, given as key/value pairs.
func NewNode(attrs ...string) *Node {
	n := &Node{Attrs: map[string]string{}, Children: map[string][]*Node{}}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attrs[attrs[i]] = attrs[i+1]
	}
	return n
}

// Add appends child under selector and returns n.
func (n *Node) Add(selector string, child *Node) *Node {
	n.Children[selector] = append(n.Children[selector], child)
	return n
}

// ClickHook runs when an element matching its selector is clicked. It is
// called with the document lock released.
type ClickHook func(f *Fake, el *hostpage.Element)

// CallHandler answers Document.Call. The result is JSON-encoded into out.
type CallHandler func(f *Fake, el *hostpage.Element, fn string, args []any) (any, error)

// Fake is a hostpage.Document over a tree of Nodes keyed by selector. It
// records every mutating action in order.
type Fake struct {
	mu      sync.Mutex
	roots   map[string][]*Node
	hooks   map[string]ClickHook
	actions []string
	queries int

	// FrameDelay is how long NextFrame blocks. Defaults to one millisecond.
	FrameDelay time.Duration
	// OnCall handles Call. When nil, Call reports 0.
	OnCall CallHandler
	// FailQuery makes Query and QueryAll fail with this error.
	FailQuery error
}

// New returns an empty fake document.
func New() *Fake {
	return &Fake{
		roots:      map[string][]*Node{},
		hooks:      map[string]ClickHook{},
		FrameDelay: time.Millisecond,
	}
}

// Add appends a top-level node matching selector.
func (f *Fake) Add(selector string, n *Node) *Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roots[selector] = append(f.roots[selector], n)
	return n
}

// AddAfter adds n under selector once d has elapsed.
func (f *Fake) AddAfter(d time.Duration, selector string, n *Node) {
	time.AfterFunc(d, func() { f.Add(selector, n) })
}

// Remove drops every top-level node matching selector.
func (f *Fake) Remove(selector string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.roots, selector)
}

// Set replaces the top-level nodes matching selector with n.
func (f *Fake) Set(selector string, n *Node) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roots[selector] = []*Node{n}
}

// OnClick registers hook for clicks on elements whose last selector is
// selector.
func (f *Fake) OnClick(selector string, hook ClickHook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks[selector] = hook
}

// Actions returns the recorded actions in order.
func (f *Fake) Actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.actions))
	copy(out, f.actions)
	return out
}

// Queries returns how many Query calls were made.
func (f *Fake) Queries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

// ValueOf returns the value of the node el resolves to.
func (f *Fake) ValueOf(el *hostpage.Element) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n := f.resolve(el); n != nil {
		return n.Value
	}
	return ""
}

func (f *Fake) record(format string, args ...any) {
	f.actions = append(f.actions, fmt.Sprintf(format, args...))
}

func (f *Fake) resolve(el *hostpage.Element) *Node {
	var cur *Node
	for _, step := range el.Path() {
		var list []*Node
		if cur == nil {
			list = f.roots[step.Selector]
		} else {
			list = cur.Children[step.Selector]
		}
		if step.Index < 0 || step.Index >= len(list) {
			return nil
		}
		cur = list[step.Index]
	}
	return cur
}

func (f *Fake) node(el *hostpage.Element) (*Node, error) {
	if el == nil {
		return nil, fmt.Errorf("nil element")
	}
	n := f.resolve(el)
	if n == nil {
		return nil, fmt.Errorf("element %s is detached", el)
	}
	return n, nil
}

func (f *Fake) Query(ctx context.Context, selector string) (*hostpage.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.FailQuery != nil {
		return nil, f.FailQuery
	}
	if len(f.roots[selector]) == 0 {
		return nil, nil
	}
	return hostpage.At(selector, 0), nil
}

func (f *Fake) QueryAll(ctx context.Context, scope *hostpage.Element, selector string) ([]*hostpage.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailQuery != nil {
		return nil, f.FailQuery
	}
	var list []*Node
	if scope == nil {
		list = f.roots[selector]
	} else {
		parent, err := f.node(scope)
		if err != nil {
			return nil, err
		}
		list = parent.Children[selector]
	}
	out := make([]*hostpage.Element, len(list))
	for i := range list {
		if scope == nil {
			out[i] = hostpage.At(selector, i)
		} else {
			out[i] = scope.Within(selector, i)
		}
	}
	return out, nil
}

func (f *Fake) Click(ctx context.Context, el *hostpage.Element) error {
	f.mu.Lock()
	if _, err := f.node(el); err != nil {
		f.mu.Unlock()
		return err
	}
	f.record("click %s", el.Selector)
	hook := f.hooks[el.Selector]
	f.mu.Unlock()

	if hook != nil {
		hook(f, el)
	}
	return nil
}

func (f *Fake) Attribute(ctx context.Context, el *hostpage.Element, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.resolve(el)
	if n == nil {
		return "", nil
	}
	return n.Attrs[name], nil
}

func (f *Fake) Value(ctx context.Context, el *hostpage.Element) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.node(el)
	if err != nil {
		return "", err
	}
	return n.Value, nil
}

func (f *Fake) SetValue(ctx context.Context, el *hostpage.Element, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.node(el)
	if err != nil {
		return err
	}
	n.Value = value
	f.record("set-value %s %q", el.Selector, value)
	return nil
}

func (f *Fake) Dispatch(ctx context.Context, el *hostpage.Element, ev hostpage.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.node(el); err != nil {
		return err
	}
	f.record("dispatch %s %s", el.Selector, ev.Type)
	return nil
}

func (f *Fake) Call(ctx context.Context, el *hostpage.Element, fn string, out any, args ...any) error {
	f.mu.Lock()
	handler := f.OnCall
	f.mu.Unlock()

	var result any = 0
	if handler != nil {
		var err error
		if result, err = handler(f, el, fn, args); err != nil {
			return err
		}
	}
	if out == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// SetNodeValue writes a value the way page script would, without recording
// an action.
func (f *Fake) SetNodeValue(el *hostpage.Element, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n := f.resolve(el); n != nil {
		n.Value = value
	}
}

func (f *Fake) NextFrame(ctx context.Context) error {
	f.mu.Lock()
	d := f.FrameDelay
	f.mu.Unlock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

var _ hostpage.Document = (*Fake)(nil)
