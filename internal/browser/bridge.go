// Package browser connects the engine to a real Chrome tab. Both drivers
// share one JavaScript bridge: every Document operation is a function called
// as fn(node, ...args) in the page, with the node resolved from an Element
// locator and the result returned as JSON.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chr1sbest/imagebatch/internal/hostpage"
)

// Evaluator evaluates a JavaScript expression in the host tab, awaiting a
// returned promise, and returns the JSON encoding of its value.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string) ([]byte, error)
}

type pathStep struct {
	S string `json:"s"`
	I int    `json:"i"`
}

// resolveJS walks a locator path; every step is scoped to the previous node.
const resolveJS = `function (path) {
  var node = null;
  for (var k = 0; k < path.length; k++) {
    var list = (node || document).querySelectorAll(path[k].s);
    node = list[path[k].i] || null;
    if (!node) return null;
  }
  return node;
}`

// callExpression builds the expression that resolves el and calls fn.
func callExpression(el *hostpage.Element, fn string, args []any) (string, error) {
	if args == nil {
		args = []any{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encode arguments: %w", err)
	}
	pathJSON := []byte("null")
	if el != nil {
		steps := make([]pathStep, 0, 2)
		for _, s := range el.Path() {
			steps = append(steps, pathStep{S: s.Selector, I: s.Index})
		}
		if pathJSON, err = json.Marshal(steps); err != nil {
			return "", fmt.Errorf("encode element path: %w", err)
		}
	}

	var b strings.Builder
	b.WriteString("(async () => {\n")
	fmt.Fprintf(&b, "  const __path = %s;\n", pathJSON)
	fmt.Fprintf(&b, "  const __node = __path === null ? null : (%s)(__path);\n", resolveJS)
	fmt.Fprintf(&b, "  const __result = await (%s)(__node, ...%s);\n", strings.TrimSpace(fn), argsJSON)
	b.WriteString("  return __result === undefined ? null : __result;\n")
	b.WriteString("})()")
	return b.String(), nil
}

// Page is a hostpage.Document over an Evaluator.
type Page struct {
	eval Evaluator
}

// NewPage wraps eval as a Document.
func NewPage(eval Evaluator) *Page {
	return &Page{eval: eval}
}

func (p *Page) Call(ctx context.Context, el *hostpage.Element, fn string, out any, args ...any) error {
	expr, err := callExpression(el, fn, args)
	if err != nil {
		return err
	}
	raw, err := p.eval.Evaluate(ctx, expr)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode page result: %w", err)
	}
	return nil
}

const (
	existsJS = `function (node, sel) { return document.querySelector(sel) !== null; }`
	countJS  = `function (node, scoped, sel) {
  if (scoped && !node) return -1;
  return (node || document).querySelectorAll(sel).length;
}`
	clickJS = `function (node) {
  if (!node) return false;
  if (node.scrollIntoView) node.scrollIntoView({ block: "center" });
  node.click();
  return true;
}`
	attributeJS = `function (node, name) {
  if (!node) return "";
  if ((name === "src" || name === "href") && typeof node[name] === "string") return node[name];
  var v = node.getAttribute(name);
  return v === null ? "" : v;
}`
	valueJS = `function (node) {
  if (!node) return null;
  return node.isContentEditable ? node.innerText : String(node.value === undefined ? "" : node.value);
}`
	setValueJS = `function (node, value) {
  if (!node) return false;
  if (node.isContentEditable) { node.innerText = value; } else { node.value = value; }
  return true;
}`
	dispatchJS = `function (node, ev) {
  if (!node) return false;
  if (ev.type === "focus" && node.focus) node.focus();
  var e;
  if (ev.type === "input" && typeof InputEvent === "function") {
    e = new InputEvent("input", { bubbles: ev.bubbles, inputType: ev.inputType, data: ev.data });
  } else {
    e = new Event(ev.type, { bubbles: ev.bubbles });
  }
  node.dispatchEvent(e);
  return true;
}`
	// A hidden tab may never render, so the frame wait is capped.
	nextFrameJS = `function () {
  return new Promise(function (resolve) {
    var done = false;
    var finish = function () { if (!done) { done = true; resolve(true); } };
    requestAnimationFrame(finish);
    setTimeout(finish, 100);
  });
}`
)

func (p *Page) Query(ctx context.Context, selector string) (*hostpage.Element, error) {
	var found bool
	if err := p.Call(ctx, nil, existsJS, &found, selector); err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return hostpage.At(selector, 0), nil
}

func (p *Page) QueryAll(ctx context.Context, scope *hostpage.Element, selector string) ([]*hostpage.Element, error) {
	var n int
	if err := p.Call(ctx, scope, countJS, &n, scope != nil, selector); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("scope %s is detached", scope)
	}
	out := make([]*hostpage.Element, n)
	for i := range out {
		if scope == nil {
			out[i] = hostpage.At(selector, i)
		} else {
			out[i] = scope.Within(selector, i)
		}
	}
	return out, nil
}

func (p *Page) Click(ctx context.Context, el *hostpage.Element) error {
	return p.expectNode(ctx, el, clickJS)
}

func (p *Page) Attribute(ctx context.Context, el *hostpage.Element, name string) (string, error) {
	var v string
	err := p.Call(ctx, el, attributeJS, &v, name)
	return v, err
}

func (p *Page) Value(ctx context.Context, el *hostpage.Element) (string, error) {
	var v *string
	if err := p.Call(ctx, el, valueJS, &v); err != nil {
		return "", err
	}
	if v == nil {
		return "", fmt.Errorf("element %s is detached", el)
	}
	return *v, nil
}

func (p *Page) SetValue(ctx context.Context, el *hostpage.Element, value string) error {
	return p.expectNode(ctx, el, setValueJS, value)
}

func (p *Page) Dispatch(ctx context.Context, el *hostpage.Element, ev hostpage.Event) error {
	payload := map[string]any{
		"type":      ev.Type,
		"bubbles":   ev.Bubbles,
		"inputType": ev.InputType,
		"data":      ev.Data,
	}
	return p.expectNode(ctx, el, dispatchJS, payload)
}

func (p *Page) NextFrame(ctx context.Context) error {
	return p.Call(ctx, nil, nextFrameJS, nil)
}

// expectNode runs fn and fails when the element could not be resolved.
func (p *Page) expectNode(ctx context.Context, el *hostpage.Element, fn string, args ...any) error {
	var ok bool
	if err := p.Call(ctx, el, fn, &ok, args...); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element %s is detached", el)
	}
	return nil
}

var _ hostpage.Document = (*Page)(nil)
