package engine

import (
	"context"
	"fmt"

	"github.com/chr1sbest/imagebatch/internal/hostpage"
	"github.com/chr1sbest/imagebatch/internal/logger"
)

// Strategy tries to make el hold value. It reports whether it applied; a
// strategy that returns false leaves the next one in the chain to try.
type Strategy func(ctx context.Context, doc hostpage.Document, el *hostpage.Element, value string) bool

// NamedStrategy pairs a strategy with the name used in logs.
type NamedStrategy struct {
	Name string
	Fn   Strategy
}

// DefaultStrategies returns the framework hook followed by the native event
// fallback, both logging their page errors to log.
func DefaultStrategies(log logger.Logger) []NamedStrategy {
	return []NamedStrategy{
		{Name: "framework-hook", Fn: FrameworkHookStrategy(log)},
		{Name: "native-events", Fn: NativeEventStrategy(log)},
	}
}

// InputWriter forces values into framework-controlled inputs.
type InputWriter struct {
	doc        hostpage.Document
	strategies []NamedStrategy
	log        logger.Logger
}

// NewInputWriter creates a writer using strategies in order, or
// DefaultStrategies when none are given.
func NewInputWriter(doc hostpage.Document, log logger.Logger, strategies ...NamedStrategy) *InputWriter {
	if len(strategies) == 0 {
		strategies = DefaultStrategies(log)
	}
	return &InputWriter{doc: doc, strategies: strategies, log: log}
}

// Append adds strategies to the end of the chain.
func (w *InputWriter) Append(strategies ...NamedStrategy) {
	w.strategies = append(w.strategies, strategies...)
}

// Prepend adds strategies ahead of the existing chain.
func (w *InputWriter) Prepend(strategies ...NamedStrategy) {
	w.strategies = append(append([]NamedStrategy{}, strategies...), w.strategies...)
}

// Strategies returns the names of the chain in order.
func (w *InputWriter) Strategies() []string {
	names := make([]string, len(w.strategies))
	for i, s := range w.strategies {
		names[i] = s.Name
	}
	return names
}

// WriteValue runs the chain until one strategy applies. It is best effort and
// never fails; it reports the name of the strategy that applied, or "".
func (w *InputWriter) WriteValue(ctx context.Context, el *hostpage.Element, value string) string {
	for _, s := range w.strategies {
		if w.try(ctx, s, el, value) {
			w.log.Debug("Value written",
				logger.F("element", el.String()),
				logger.F("strategy", s.Name),
				logger.F("length", len(value)),
			)
			return s.Name
		}
	}
	w.log.Warn("No input strategy applied", logger.F("element", el.String()))
	return ""
}

func (w *InputWriter) try(ctx context.Context, s NamedStrategy, el *hostpage.Element, value string) (applied bool) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Debug("Input strategy panicked",
				logger.F("strategy", s.Name),
				logger.F("panic", fmt.Sprint(r)),
			)
			applied = false
		}
	}()
	return s.Fn(ctx, w.doc, el, value)
}

// frameworkHookJS locates the component instance React attaches to the node,
// walks up to ten owners looking for onChange/onInput handlers, writes the
// value through the native prototype setter and hands the handlers a
// synthetic event. It returns the number of handlers invoked.
const frameworkHookJS = `function (node, value) {
  if (!node) return 0;
  var prefixes = ["__reactFiber$", "__reactInternalInstance$", "__reactProps$"];
  var key = Object.keys(node).find(function (k) {
    return prefixes.some(function (p) { return k.indexOf(p) === 0; });
  });
  if (!key) return 0;

  var handlers = [];
  var seen = {};
  var collect = function (props) {
    if (!props) return;
    ["onChange", "onInput"].forEach(function (name) {
      if (typeof props[name] === "function" && !seen[name]) {
        seen[name] = true;
        handlers.push(props[name]);
      }
    });
  };

  if (key.indexOf("__reactProps$") === 0) {
    collect(node[key]);
  } else {
    var fiber = node[key];
    for (var depth = 0; fiber && depth < 10; depth++) {
      collect(fiber.memoizedProps);
      collect(fiber.pendingProps);
      if (handlers.length > 0) break;
      fiber = fiber.return;
    }
  }
  if (handlers.length === 0) return 0;

  var proto = node instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
  var desc = Object.getOwnPropertyDescriptor(proto, "value");
  if (desc && desc.set) {
    desc.set.call(node, value);
  } else {
    node.value = value;
  }

  var prevented = false;
  var stopped = false;
  var nativeEvent = new Event("input", { bubbles: true });
  var synthetic = {
    target: node,
    currentTarget: node,
    type: "change",
    nativeEvent: nativeEvent,
    preventDefault: function () { prevented = true; },
    stopPropagation: function () { stopped = true; },
    persist: function () {},
    isDefaultPrevented: function () { return prevented; },
    isPropagationStopped: function () { return stopped; }
  };
  var invoked = 0;
  handlers.forEach(function (h) {
    try { h(synthetic); invoked++; } catch (e) {}
  });
  return invoked;
}`

// FrameworkHookStrategy drives the host framework's own change handlers. It
// applies only when at least one handler was invoked.
func FrameworkHookStrategy(log logger.Logger) Strategy {
	return func(ctx context.Context, doc hostpage.Document, el *hostpage.Element, value string) bool {
		var invoked int
		if err := doc.Call(ctx, el, frameworkHookJS, &invoked, value); err != nil {
			log.Debug("Framework hook failed", logger.F("element", el.String()), logger.F("error", err))
			return false
		}
		return invoked > 0
	}
}

// NativeEventStrategy sets the DOM value and replays the events a typing user
// would produce. It always applies; page errors are logged at debug level.
func NativeEventStrategy(log logger.Logger) Strategy {
	return func(ctx context.Context, doc hostpage.Document, el *hostpage.Element, value string) bool {
		steps := []struct {
			name string
			run  func() error
		}{
			{"set-value", func() error { return doc.SetValue(ctx, el, value) }},
			{"focus", func() error { return doc.Dispatch(ctx, el, hostpage.FocusEvent()) }},
			{"input", func() error { return doc.Dispatch(ctx, el, hostpage.InputEvent(value)) }},
			{"change", func() error { return doc.Dispatch(ctx, el, hostpage.ChangeEvent()) }},
		}
		for _, st := range steps {
			if err := st.run(); err != nil {
				log.Debug("Native input event failed",
					logger.F("element", el.String()),
					logger.F("action", st.name),
					logger.F("error", err),
				)
			}
		}
		return true
	}
}
