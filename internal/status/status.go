package status

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/chr1sbest/imagebatch/internal/task"
)

// ANSI cursor control
const (
	clearLine  = "\033[2K"
	moveUp     = "\033[A"
	moveToCol0 = "\r"
)

// Progress bar characters
const (
	barFilled = "█"
	barEmpty  = "░"
	barWidth  = 20
)

var (
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	yellow = lipgloss.Color("214")
	dim    = lipgloss.Color("243")

	filledStyle  = lipgloss.NewStyle().Foreground(green)
	emptyStyle   = lipgloss.NewStyle().Foreground(dim)
	mutedStyle   = lipgloss.NewStyle().Foreground(dim)
	boldStyle    = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(green).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(red).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(yellow)
)

// Writer handles in-place progress updates to the terminal. It implements
// the engine's Observer interface.
type Writer struct {
	w            io.Writer
	mu           sync.Mutex
	linesWritten int

	index       int
	total       int
	description string
	step        string
	saved       int
	lost        int
	failed      int
	stopping    bool
}

// New creates a status writer that outputs to stdout
func New() *Writer {
	return &Writer{w: os.Stdout}
}

// NewWithWriter creates a status writer with a custom output
func NewWithWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// clearLocked erases any previously written status lines
func (s *Writer) clearLocked() {
	for i := 0; i < s.linesWritten; i++ {
		fmt.Fprint(s.w, moveUp+clearLine)
	}
	fmt.Fprint(s.w, moveToCol0)
	s.linesWritten = 0
}

// Clear erases any previously written status lines
func (s *Writer) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// updateLocked clears the live lines and writes new ones.
func (s *Writer) updateLocked(lines ...string) {
	s.clearLocked()
	for _, line := range lines {
		fmt.Fprintln(s.w, line)
	}
	s.linesWritten = len(lines)
}

// printLocked writes lines above the live status so they persist.
func (s *Writer) printLocked(lines ...string) {
	s.clearLocked()
	for _, line := range lines {
		fmt.Fprintln(s.w, line)
	}
}

// progressBar generates a progress bar string
func progressBar(completed, total int) string {
	if total == 0 {
		return emptyStyle.Render(strings.Repeat(barEmpty, barWidth))
	}

	filled := (completed * barWidth) / total
	if filled > barWidth {
		filled = barWidth
	}

	return filledStyle.Render(strings.Repeat(barFilled, filled)) +
		emptyStyle.Render(strings.Repeat(barEmpty, barWidth-filled))
}

func (s *Writer) liveLine() string {
	line := fmt.Sprintf("%s %s %s",
		progressBar(s.index, s.total),
		mutedStyle.Render(fmt.Sprintf("%d/%d", s.index+1, s.total)),
		boldStyle.Render(truncate(s.description, 48)),
	)
	if s.step != "" {
		line += " " + mutedStyle.Render(s.step)
	}
	if s.stopping {
		line += " " + warnStyle.Render("(stopping after this item)")
	}
	return line
}

func (s *Writer) ItemStarted(index, total int, item task.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index, s.total = index, total
	s.description = item.Description()
	s.step = ""
	s.updateLocked(s.liveLine())
}

func (s *Writer) StepStarted(index int, step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step = step
	s.updateLocked(s.liveLine())
}

func (s *Writer) ImageSaved(index int, item task.Item, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved++
	s.printLocked(successStyle.Render("✓") + " " + path)
	s.updateLocked(s.liveLine())
}

func (s *Writer) ImageFailed(index int, item task.Item, filename string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lost++
	s.printLocked(warnStyle.Render("! " + filename + " not saved"))
	s.updateLocked(s.liveLine())
}

func (s *Writer) ItemFinished(index, total int, item task.Item, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		return
	}
	s.failed++
	s.printLocked(
		errorStyle.Render("✗ "+truncate(item.Description(), 48)+" failed"),
		mutedStyle.Render(err.Error()),
	)
	s.updateLocked(s.liveLine())
}

func (s *Writer) RunFinished(processed int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()

	summary := fmt.Sprintf("%s %s",
		progressBar(processed, s.total),
		mutedStyle.Render(fmt.Sprintf("%d/%d items, %d images", processed, s.total, s.saved)),
	)
	switch {
	case err != nil:
		fmt.Fprintln(s.w, summary)
		fmt.Fprintln(s.w, errorStyle.Render("✗ Run failed"))
		fmt.Fprintln(s.w, mutedStyle.Render(err.Error()))
	case processed < s.total:
		fmt.Fprintln(s.w, summary)
		fmt.Fprintln(s.w, warnStyle.Render("■ Stopped"))
	default:
		fmt.Fprintln(s.w, summary)
		fmt.Fprintln(s.w, successStyle.Render("✓ Complete"))
	}
	if s.lost > 0 {
		fmt.Fprintln(s.w, warnStyle.Render(fmt.Sprintf("%d image%s could not be saved", s.lost, plural(s.lost))))
	}
	if s.failed > 0 {
		fmt.Fprintln(s.w, warnStyle.Render(fmt.Sprintf("%d item%s skipped after errors", s.failed, plural(s.failed))))
	}
}

// Stopping marks the live line until the current item finishes.
func (s *Writer) Stopping() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return
	}
	s.stopping = true
	if s.linesWritten > 0 {
		s.updateLocked(s.liveLine())
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
