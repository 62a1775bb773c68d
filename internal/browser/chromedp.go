package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/chr1sbest/imagebatch/internal/logger"
)

// chromedpEvaluator evaluates in the tab bound to ctx.
type chromedpEvaluator struct {
	tab context.Context
}

func (c chromedpEvaluator) Evaluate(ctx context.Context, expression string) ([]byte, error) {
	callCtx, cancel := boundContext(c.tab, ctx)
	defer cancel()

	var raw []byte
	err := chromedp.Run(callCtx, chromedp.Evaluate(expression, &raw, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithAwaitPromise(true)
	}))
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		var exc *runtime.ExceptionDetails
		if errors.As(err, &exc) {
			return nil, fmt.Errorf("page script failed: %s", exceptionText(exc))
		}
		return nil, err
	}
	return raw, nil
}

// boundContext derives a context from tab, keeping its chromedp target, that
// is also cancelled when caller is. Cancelling it ends the call, not the tab.
func boundContext(tab, caller context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(tab)
	stop := context.AfterFunc(caller, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func exceptionText(exc *runtime.ExceptionDetails) string {
	if exc.Exception != nil && exc.Exception.Description != "" {
		return exc.Exception.Description
	}
	return exc.Text
}

// openChromedp attaches to the host tab of a running Chrome when RemoteURL is
// set, otherwise launches Chrome with the configured profile and opens
// HostURL.
func openChromedp(ctx context.Context, opts Options, log logger.Logger) (*Session, error) {
	var allocCtx context.Context
	var cancelAlloc context.CancelFunc
	if opts.RemoteURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(ctx, opts.RemoteURL)
	} else {
		execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.WindowSize(1440, 960),
		)
		if opts.UserDataDir != "" {
			execOpts = append(execOpts, chromedp.UserDataDir(opts.UserDataDir))
		}
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(ctx, execOpts...)
	}

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			log.Debug("chromedp", logger.F("message", fmt.Sprintf(format, args...)))
		}),
	)
	closeAll := func() error {
		cancelBrowser()
		cancelAlloc()
		return nil
	}

	tabCtx := browserCtx
	if opts.RemoteURL != "" {
		targets, err := chromedp.Targets(browserCtx)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("list browser tabs: %w", err)
		}
		id, ok := findHostTarget(targets, opts.HostURL)
		if ok {
			log.Info("Attaching to host tab", logger.F("target", string(id)))
			var cancelTab context.CancelFunc
			tabCtx, cancelTab = chromedp.NewContext(browserCtx, chromedp.WithTargetID(id))
			closeAll = func() error {
				cancelTab()
				cancelBrowser()
				cancelAlloc()
				return nil
			}
		}
	}

	if err := chromedp.Run(tabCtx); err != nil {
		closeAll()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	if tabCtx == browserCtx && opts.HostURL != "" {
		log.Info("Opening host page", logger.F("url", opts.HostURL))
		if err := chromedp.Run(tabCtx, chromedp.Navigate(opts.HostURL)); err != nil {
			closeAll()
			return nil, fmt.Errorf("open host page: %w", err)
		}
	}

	return &Session{
		Driver: DriverChromedp,
		Page:   NewPage(chromedpEvaluator{tab: tabCtx}),
		close:  closeAll,
	}, nil
}

// findHostTarget returns the first page target whose URL starts with hostURL.
func findHostTarget(targets []*target.Info, hostURL string) (target.ID, bool) {
	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		if hostURL == "" || strings.HasPrefix(t.URL, hostURL) {
			return t.TargetID, true
		}
	}
	return "", false
}
