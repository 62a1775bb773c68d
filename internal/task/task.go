package task

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyDescription is returned when an item would carry no prompt text.
var ErrEmptyDescription = errors.New("task description is empty")

// Item is one prompt to generate images for.
type Item struct {
	description string
}

// NewItem validates desc and returns an Item. Surrounding whitespace is kept
// as typed; only all-blank descriptions are rejected.
func NewItem(desc string) (Item, error) {
	if strings.TrimSpace(desc) == "" {
		return Item{}, ErrEmptyDescription
	}
	return Item{description: desc}, nil
}

// MustItem is NewItem for literals in tests and defaults.
func MustItem(desc string) Item {
	it, err := NewItem(desc)
	if err != nil {
		panic(err)
	}
	return it
}

// Description returns the prompt text of the item.
func (i Item) Description() string { return i.description }

// Form is the input of one batch run.
type Form struct {
	CommonPrefix string
	Items        []Item
}

// PromptText is the text injected into the chat input for item.
func (f Form) PromptText(item Item) string {
	return f.CommonPrefix + "\n" + item.description
}

// List is the editable, ordered task list behind a Form.
type List struct {
	items []Item
}

// NewList builds a list from descriptions, rejecting the first invalid one.
func NewList(descs ...string) (*List, error) {
	l := &List{}
	for i, d := range descs {
		if err := l.Add(d); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return l, nil
}

// Add appends one item.
func (l *List) Add(desc string) error {
	it, err := NewItem(desc)
	if err != nil {
		return err
	}
	l.items = append(l.items, it)
	return nil
}

// InsertBulk appends one item per non-blank line of text and returns how
// many were added. CRLF line endings are accepted.
func (l *List) InsertBulk(text string) int {
	added := 0
	for _, line := range SplitLines(text) {
		if err := l.Add(line); err == nil {
			added++
		}
	}
	return added
}

// Edit replaces the description at index i.
func (l *List) Edit(i int, desc string) error {
	if i < 0 || i >= len(l.items) {
		return fmt.Errorf("index %d out of range [0,%d)", i, len(l.items))
	}
	it, err := NewItem(desc)
	if err != nil {
		return err
	}
	l.items[i] = it
	return nil
}

// Delete removes the item at index i, keeping the order of the rest.
func (l *List) Delete(i int) error {
	if i < 0 || i >= len(l.items) {
		return fmt.Errorf("index %d out of range [0,%d)", i, len(l.items))
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	return nil
}

// Clear removes every item.
func (l *List) Clear() {
	l.items = nil
}

// Len returns the number of items.
func (l *List) Len() int { return len(l.items) }

// Items returns a copy of the items in processing order.
func (l *List) Items() []Item {
	out := make([]Item, len(l.items))
	copy(out, l.items)
	return out
}

// Form snapshots the list into a Form with the given prefix.
func (l *List) Form(prefix string) Form {
	return Form{CommonPrefix: prefix, Items: l.Items()}
}

// SplitLines splits newline-delimited text, trimming each line and dropping
// blank ones.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
