package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/chr1sbest/imagebatch/internal/hostpage"
	"github.com/chr1sbest/imagebatch/internal/hostpage/hostpagetest"
	"github.com/chr1sbest/imagebatch/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewNoopLogger()
}

func fastTiming() Timing {
	return Timing{
		ElementTimeout:   200 * time.Millisecond,
		PollInterval:     time.Millisecond,
		ImageIterations:  50,
		DetailIterations: 50,
		SettleDelay:      0,
	}
}

type savedImage struct {
	url      string
	filename string
}

// recordingDownloader records every download. URLs in fail are reported as
// failed and not recorded.
type recordingDownloader struct {
	mu    sync.Mutex
	saved []savedImage
	fail  map[string]bool
}

func (d *recordingDownloader) Download(_ context.Context, url, filename string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail[url] {
		return "", false
	}
	d.saved = append(d.saved, savedImage{url: url, filename: filename})
	return "out/" + filename, true
}

func (d *recordingDownloader) filenames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.saved))
	for i, s := range d.saved {
		out[i] = s.filename
	}
	return out
}

// newHostPage builds a fake chat page that answers every send with a message
// holding images images, and opens a detail view when one is clicked.
func newHostPage(images int) *hostpagetest.Fake {
	sel := hostpage.DefaultSelectors()
	page := hostpagetest.New()
	for _, s := range []string{
		sel.NewConversation, sel.ChatInput, sel.Send,
		sel.ConversationTitle, sel.RenameAction, sel.RenameInput, sel.RenameConfirm,
	} {
		page.Add(s, hostpagetest.NewNode())
	}

	replies := 0
	page.OnClick(sel.Send, func(f *hostpagetest.Fake, _ *hostpage.Element) {
		replies++
		msg := hostpagetest.NewNode()
		for i := 0; i < images; i++ {
			msg.Add(sel.MessageImage, hostpagetest.NewNode("data-url", fmt.Sprintf("https://img.test/%d/%d.png", replies, i)))
		}
		f.Add(sel.ImageMessage, msg)
	})
	page.OnClick(sel.MessageImage, func(f *hostpagetest.Fake, el *hostpage.Element) {
		url, _ := f.Attribute(context.Background(), el, "data-url")
		f.Set(sel.DetailImage, hostpagetest.NewNode(sel.DetailImageAttr, url))
	})
	return page
}

// interactions keeps the clicks and value writes of a fake's action log.
func interactions(actions []string) []string {
	var out []string
	for _, a := range actions {
		if strings.HasPrefix(a, "click ") || strings.HasPrefix(a, "set-value ") {
			out = append(out, a)
		}
	}
	return out
}

func diffLines(want, got []string) string {
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(strings.Join(want, "\n")),
		B:        difflib.SplitLines(strings.Join(got, "\n")),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  3,
	})
	return diff
}

func assertLines(t *testing.T, want, got []string) {
	t.Helper()
	if strings.Join(want, "\n") != strings.Join(got, "\n") {
		t.Errorf("sequence mismatch:\n%s", diffLines(want, got))
	}
}
