package engine

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrElementNotFound matches any ElementNotFoundError.
	ErrElementNotFound = errors.New("element not found before timeout")
	// ErrAttributeUnchanged matches any AttributeUnchangedError.
	ErrAttributeUnchanged = errors.New("value unchanged before timeout")
)

// ElementNotFoundError reports that a required affordance never appeared.
type ElementNotFoundError struct {
	Selector string
	Timeout  time.Duration
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("element %q not found within %s", e.Selector, e.Timeout)
}

func (e *ElementNotFoundError) Is(target error) bool {
	return target == ErrElementNotFound
}

// AttributeUnchangedError reports that an expected DOM change never happened.
type AttributeUnchangedError struct {
	Selector   string
	Baseline   string
	Iterations int
}

func (e *AttributeUnchangedError) Error() string {
	return fmt.Sprintf("value of %q stayed %q for %d polls", e.Selector, e.Baseline, e.Iterations)
}

func (e *AttributeUnchangedError) Is(target error) bool {
	return target == ErrAttributeUnchanged
}

// ItemError wraps the failure that aborted one task item.
type ItemError struct {
	Index       int
	Description string
	Err         error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d (%q): %v", e.Index, e.Description, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}
