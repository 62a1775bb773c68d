package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"github.com/chr1sbest/imagebatch/internal/logger"
)

type rodEvaluator struct {
	page *rod.Page
}

func (r rodEvaluator) Evaluate(ctx context.Context, expression string) ([]byte, error) {
	res, err := r.page.Context(ctx).Eval("() => " + expression)
	if err != nil {
		return nil, err
	}
	return []byte(res.Value.JSON("", "")), nil
}

// openRod connects to a running Chrome when RemoteURL is set and picks the
// host tab, otherwise launches Chrome with the configured profile and opens
// HostURL in a stealth page.
func openRod(ctx context.Context, opts Options, log logger.Logger) (*Session, error) {
	var controlURL string
	var err error
	if opts.RemoteURL != "" {
		controlURL, err = launcher.ResolveURL(opts.RemoteURL)
	} else {
		l := launcher.New().Leakless(true).Headless(opts.Headless)
		if opts.UserDataDir != "" {
			l = l.UserDataDir(opts.UserDataDir)
		}
		controlURL, err = l.Launch()
	}
	if err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	closeBrowser := func() error {
		if opts.RemoteURL != "" {
			// Leave an attached browser running.
			return nil
		}
		return b.Close()
	}

	var page *rod.Page
	if opts.RemoteURL != "" {
		pages, err := b.Pages()
		if err != nil {
			_ = closeBrowser()
			return nil, fmt.Errorf("list browser tabs: %w", err)
		}
		for _, p := range pages {
			info, err := p.Info()
			if err != nil {
				continue
			}
			if opts.HostURL == "" || strings.HasPrefix(info.URL, opts.HostURL) {
				log.Info("Attaching to host tab", logger.F("target", string(info.TargetID)))
				page = p
				break
			}
		}
	}
	if page == nil {
		page, err = stealth.Page(b)
		if err != nil {
			_ = closeBrowser()
			return nil, fmt.Errorf("create stealth page: %w", err)
		}
		if opts.HostURL != "" {
			log.Info("Opening host page", logger.F("url", opts.HostURL))
			if err := page.Navigate(opts.HostURL); err != nil {
				_ = closeBrowser()
				return nil, fmt.Errorf("open host page: %w", err)
			}
			if err := page.WaitLoad(); err != nil {
				_ = closeBrowser()
				return nil, fmt.Errorf("wait for host page: %w", err)
			}
		}
	}

	return &Session{
		Driver: DriverRod,
		Page:   NewPage(rodEvaluator{page: page}),
		close:  closeBrowser,
	}, nil
}
