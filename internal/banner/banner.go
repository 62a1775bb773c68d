package banner

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/chr1sbest/imagebatch/internal/config"
)

var (
	purple = lipgloss.Color("99")
	dim    = lipgloss.Color("243")
	faint  = lipgloss.Color("238")

	titleStyle = lipgloss.NewStyle().Foreground(purple).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(dim)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(faint).
			Padding(0, 1)
)

// Banner handles pretty startup output
type Banner struct {
	writer io.Writer
	width  int
}

// New creates a new Banner that writes to stdout
func New() *Banner {
	return &Banner{
		writer: os.Stdout,
		width:  60,
	}
}

// NewWithWriter creates a Banner with a custom writer (for testing)
func NewWithWriter(w io.Writer) *Banner {
	return &Banner{
		writer: w,
		width:  60,
	}
}

// Print displays the startup banner for a run of items prompts.
func (b *Banner) Print(cfg *config.Config, items int, version string) {
	target := cfg.Browser.HostURL
	if cfg.Browser.RemoteURL != "" {
		target = cfg.Browser.RemoteURL + " (attached)"
	}

	rows := [][2]string{
		{"config", cfg.Name},
		{"driver", cfg.Browser.Driver},
		{"target", target},
		{"items", strconv.Itoa(items)},
		{"output", cfg.DownloadDir},
		{"on error", cfg.FailurePolicy},
	}

	body := titleStyle.Render("imagebatch") + " " + labelStyle.Render(version) + "\n"
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		body += "\n" + labelStyle.Render(fmt.Sprintf("%-9s", r[0])) + " " + truncate(r[1], b.width-16)
	}

	fmt.Fprintln(b.writer)
	fmt.Fprintln(b.writer, boxStyle.Width(b.width).Render(body))
	fmt.Fprintln(b.writer)
}

func truncate(s string, n int) string {
	if n <= 3 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
