package engine

import (
	"context"
	"strconv"
	"time"

	"github.com/chr1sbest/imagebatch/internal/hostpage"
	"github.com/chr1sbest/imagebatch/internal/logger"
)

// Getter derives a comparable value from the element currently matching a
// selector. el is nil when nothing matches.
type Getter func(ctx context.Context, el *hostpage.Element) (string, error)

// CountOf returns a Getter that counts the matches of selector, ignoring el.
func CountOf(doc hostpage.Document, selector string) Getter {
	return func(ctx context.Context, _ *hostpage.Element) (string, error) {
		nodes, err := doc.QueryAll(ctx, nil, selector)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(len(nodes)), nil
	}
}

// AttributeOf returns a Getter reading attribute name of el.
func AttributeOf(doc hostpage.Document, name string) Getter {
	return func(ctx context.Context, el *hostpage.Element) (string, error) {
		if el == nil {
			return "", nil
		}
		return doc.Attribute(ctx, el, name)
	}
}

// Waiter holds the polling primitives. One Waiter serves one Document.
type Waiter struct {
	doc      hostpage.Document
	interval time.Duration
	log      logger.Logger
}

// NewWaiter creates a Waiter polling AwaitChange every interval.
func NewWaiter(doc hostpage.Document, interval time.Duration, log logger.Logger) *Waiter {
	if interval <= 0 {
		interval = DefaultTiming().PollInterval
	}
	return &Waiter{doc: doc, interval: interval, log: log}
}

// AwaitElement queries for selector once per rendered frame until it matches
// or timeout has elapsed. It never gives up before timeout.
func (w *Waiter) AwaitElement(ctx context.Context, selector string, timeout time.Duration) (*hostpage.Element, error) {
	start := time.Now()
	attempts := 0
	for {
		attempts++
		el, err := w.doc.Query(ctx, selector)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			w.log.Debug("Query failed, treating as miss", logger.F("selector", selector), logger.F("error", err))
		} else if el != nil {
			w.log.Debug("Element found",
				logger.F("selector", selector),
				logger.F("attempts", attempts),
				logger.F("elapsed", time.Since(start)),
			)
			return el, nil
		}

		if time.Since(start) >= timeout {
			return nil, &ElementNotFoundError{Selector: selector, Timeout: timeout}
		}
		if err := w.doc.NextFrame(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// No frame signal; sleep roughly one frame instead.
			if err := sleep(ctx, 16*time.Millisecond); err != nil {
				return nil, err
			}
		}
	}
}

// AwaitChange captures get's current value for selector as the baseline and
// polls until the value differs, for at most iterations polls.
func (w *Waiter) AwaitChange(ctx context.Context, selector string, get Getter, iterations int) (string, error) {
	baseline, err := w.read(ctx, selector, get)
	if err != nil && ctx.Err() != nil {
		return "", ctx.Err()
	}
	return w.AwaitChangeFrom(ctx, selector, get, baseline, iterations)
}

// AwaitChangeFrom is AwaitChange with a baseline captured by the caller,
// typically before the click that is expected to cause the change.
func (w *Waiter) AwaitChangeFrom(ctx context.Context, selector string, get Getter, baseline string, iterations int) (string, error) {
	for i := 0; i < iterations; i++ {
		if err := sleep(ctx, w.interval); err != nil {
			return "", err
		}
		v, err := w.read(ctx, selector, get)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			w.log.Debug("Getter failed, treating as unchanged", logger.F("selector", selector), logger.F("error", err))
			continue
		}
		if v != baseline {
			w.log.Debug("Value changed",
				logger.F("selector", selector),
				logger.F("from", baseline),
				logger.F("to", v),
				logger.F("polls", i+1),
			)
			return v, nil
		}
	}
	return "", &AttributeUnchangedError{Selector: selector, Baseline: baseline, Iterations: iterations}
}

// AwaitGrowth polls the number of matches of selector until it exceeds
// baseline, for at most iterations polls. A lower count becomes the new
// baseline, so nodes cleared after the baseline was taken are not mistaken
// for a reply. It returns the grown count.
func (w *Waiter) AwaitGrowth(ctx context.Context, selector string, baseline, iterations int) (int, error) {
	floor := baseline
	for i := 0; i < iterations; i++ {
		if err := sleep(ctx, w.interval); err != nil {
			return 0, err
		}
		nodes, err := w.doc.QueryAll(ctx, nil, selector)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			w.log.Debug("Count failed, treating as unchanged", logger.F("selector", selector), logger.F("error", err))
			continue
		}
		n := len(nodes)
		switch {
		case n > floor:
			w.log.Debug("Count grew",
				logger.F("selector", selector),
				logger.F("from", floor),
				logger.F("to", n),
				logger.F("polls", i+1),
			)
			return n, nil
		case n < floor:
			w.log.Debug("Count dropped, lowering baseline", logger.F("selector", selector), logger.F("from", floor), logger.F("to", n))
			floor = n
		}
	}
	return 0, &AttributeUnchangedError{Selector: selector, Baseline: strconv.Itoa(baseline), Iterations: iterations}
}

func (w *Waiter) read(ctx context.Context, selector string, get Getter) (string, error) {
	el, err := w.doc.Query(ctx, selector)
	if err != nil {
		return "", err
	}
	return get(ctx, el)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
