package browser

import (
	"context"
	"fmt"

	"github.com/chr1sbest/imagebatch/internal/logger"
)

// Drivers.
const (
	DriverChromedp = "chromedp"
	DriverRod      = "rod"
)

// Options selects and configures the browser connection.
type Options struct {
	Driver      string
	RemoteURL   string
	Headless    bool
	UserDataDir string
	HostURL     string
}

// Session is an open connection to the host tab.
type Session struct {
	Driver string
	Page   *Page
	close  func() error
}

// Open connects to the browser with the chosen driver. An empty driver means
// chromedp.
func Open(ctx context.Context, opts Options, log logger.Logger) (*Session, error) {
	switch opts.Driver {
	case "", DriverChromedp:
		return openChromedp(ctx, opts, log)
	case DriverRod:
		return openRod(ctx, opts, log)
	default:
		return nil, fmt.Errorf("unknown browser driver %q", opts.Driver)
	}
}

// Close releases the session. A launched browser is shut down; an attached
// one is left running.
func (s *Session) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}
