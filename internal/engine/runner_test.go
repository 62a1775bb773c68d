package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/chr1sbest/imagebatch/internal/hostpage"
	"github.com/chr1sbest/imagebatch/internal/hostpage/hostpagetest"
	"github.com/chr1sbest/imagebatch/internal/task"
)

// hookObserver records callbacks and lets a test act at chosen points.
type hookObserver struct {
	NopObserver
	events       []string
	onItemStart  func(index int)
	onStepStart  func(index int, step string)
	onItemFinish func(index int, err error)
}

func (o *hookObserver) ItemStarted(index, total int, item task.Item) {
	o.events = append(o.events, fmt.Sprintf("start %d/%d %s", index, total, item.Description()))
	if o.onItemStart != nil {
		o.onItemStart(index)
	}
}

func (o *hookObserver) StepStarted(index int, step string) {
	if o.onStepStart != nil {
		o.onStepStart(index, step)
	}
}

func (o *hookObserver) ImageSaved(index int, _ task.Item, path string) {
	o.events = append(o.events, fmt.Sprintf("image %d %s", index, path))
}

func (o *hookObserver) ImageFailed(index int, _ task.Item, filename string) {
	o.events = append(o.events, fmt.Sprintf("image-failed %d %s", index, filename))
}

func (o *hookObserver) ItemFinished(index, _ int, _ task.Item, err error) {
	o.events = append(o.events, fmt.Sprintf("finish %d err=%v", index, err != nil))
	if o.onItemFinish != nil {
		o.onItemFinish(index, err)
	}
}

func newForm(t *testing.T, prefix string, descs ...string) task.Form {
	t.Helper()
	list, err := task.NewList(descs...)
	if err != nil {
		t.Fatalf("NewList: %v", err)
	}
	return list.Form(prefix)
}

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2024, 3, 7, 9, 5, 2, 0, time.Local) }
}

func countPrefix(lines []string, prefix string) int {
	n := 0
	for _, l := range lines {
		if len(l) >= len(prefix) && l[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func TestRunnerEndToEnd(t *testing.T) {
	sel := hostpage.DefaultSelectors()
	page := newHostPage(1)
	dl := &recordingDownloader{}
	r := NewRunner(page, dl, testLogger(), WithTiming(fastTiming()), WithClock(fixedClock()))

	if r.State().IsRunning {
		t.Fatal("runner should be idle before Start")
	}
	if err := r.Start(context.Background(), newForm(t, "P", "A", "B")); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if st := r.State(); st.IsRunning || st.CancelRequested {
		t.Errorf("state after run = %+v, want idle", st)
	}

	var want []string
	for _, desc := range []string{"A", "B"} {
		want = append(want,
			"click "+sel.NewConversation,
			fmt.Sprintf("set-value %s %q", sel.ChatInput, "P\n"+desc),
			"click "+sel.Send,
			"click "+sel.ConversationTitle,
			"click "+sel.RenameAction,
			fmt.Sprintf("set-value %s %q", sel.RenameInput, desc),
			"click "+sel.RenameConfirm,
			"click "+sel.MessageImage,
		)
	}
	assertLines(t, want, interactions(page.Actions()))

	names := dl.filenames()
	if len(names) != 2 {
		t.Fatalf("downloads = %v, want 2", names)
	}
	for i, pattern := range []string{"A_*.png", "B_*.png"} {
		if ok, _ := filepath.Match(pattern, names[i]); !ok {
			t.Errorf("download %d = %q, want %s", i, names[i], pattern)
		}
	}
	if names[0] != "A_0307_090502.png" {
		t.Errorf("filename = %q, want A_0307_090502.png", names[0])
	}
	if dl.saved[1].url != "https://img.test/2/0.png" {
		t.Errorf("second item url = %q", dl.saved[1].url)
	}
}

func TestRunnerDownloadsEveryImageOfNewestMessage(t *testing.T) {
	page := newHostPage(3)
	dl := &recordingDownloader{}
	r := NewRunner(page, dl, testLogger(), WithTiming(fastTiming()), WithClock(fixedClock()))

	if err := r.Start(context.Background(), newForm(t, "", "one", "two")); err != nil {
		t.Fatalf("Start: %v", err)
	}
	var urls []string
	for _, s := range dl.saved {
		urls = append(urls, s.url)
	}
	want := []string{
		"https://img.test/1/0.png", "https://img.test/1/1.png", "https://img.test/1/2.png",
		"https://img.test/2/0.png", "https://img.test/2/1.png", "https://img.test/2/2.png",
	}
	assertLines(t, want, urls)
}

func TestFailedDownloadIsNotReportedAsSaved(t *testing.T) {
	page := newHostPage(2)
	dl := &recordingDownloader{fail: map[string]bool{"https://img.test/1/0.png": true}}
	obs := &hookObserver{}
	r := NewRunner(page, dl, testLogger(), WithTiming(fastTiming()), WithObserver(obs), WithClock(fixedClock()))

	if err := r.Start(context.Background(), newForm(t, "", "fox")); err != nil {
		t.Fatalf("Start: %v", err)
	}
	want := []string{
		"start 0/1 fox",
		"image-failed 0 fox_0307_090502.png",
		"image 0 out/fox_0307_090502.png",
		"finish 0 err=false",
	}
	assertLines(t, want, obs.events)
}

func TestStartIsIdempotentWhileRunning(t *testing.T) {
	page := newHostPage(1)
	obs := &hookObserver{}
	r := NewRunner(page, &recordingDownloader{}, testLogger(), WithTiming(fastTiming()), WithObserver(obs))

	var during RunState
	var nestedErr error
	obs.onItemStart = func(index int) {
		if index != 0 {
			return
		}
		nestedErr = r.Start(context.Background(), newForm(t, "", "other", "another", "more"))
		during = r.State()
	}

	if err := r.Start(context.Background(), newForm(t, "", "a", "b")); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if nestedErr != nil {
		t.Errorf("nested Start returned %v, want nil", nestedErr)
	}
	if !during.IsRunning || during.CancelRequested {
		t.Errorf("state after nested Start = %+v, want running", during)
	}
	if got := countPrefix(obs.events, "start "); got != 2 {
		t.Errorf("items started = %d, want 2 (%v)", got, obs.events)
	}
}

func TestItemsRunStrictlyInOrder(t *testing.T) {
	page := newHostPage(1)
	obs := &hookObserver{}
	r := NewRunner(page, &recordingDownloader{}, testLogger(),
		WithTiming(fastTiming()), WithObserver(obs), WithClock(fixedClock()))

	if err := r.Start(context.Background(), newForm(t, "", "x", "y", "z")); err != nil {
		t.Fatalf("Start: %v", err)
	}
	want := []string{
		"start 0/3 x", "image 0 out/x_0307_090502.png", "finish 0 err=false",
		"start 1/3 y", "image 1 out/y_0307_090502.png", "finish 1 err=false",
		"start 2/3 z", "image 2 out/z_0307_090502.png", "finish 2 err=false",
	}
	assertLines(t, want, obs.events)
}

func TestStopLetsCurrentItemFinish(t *testing.T) {
	page := newHostPage(1)
	dl := &recordingDownloader{}
	obs := &hookObserver{}
	r := NewRunner(page, dl, testLogger(), WithTiming(fastTiming()), WithObserver(obs))

	obs.onStepStart = func(index int, step string) {
		if index == 0 && step == StepSend {
			r.Stop()
			if st := r.State(); !st.IsRunning || !st.CancelRequested {
				t.Errorf("state after Stop = %+v, want running with cancel", st)
			}
		}
	}

	if err := r.Start(context.Background(), newForm(t, "", "first", "second")); err != nil {
		t.Fatalf("Start: %v", err)
	}
	names := dl.filenames()
	if len(names) != 1 {
		t.Fatalf("downloads = %v, want 1", names)
	}
	want := []string{"start 0/2 first", "image 0 out/" + names[0], "finish 0 err=false"}
	assertLines(t, want, obs.events)
	if st := r.State(); st.IsRunning || st.CancelRequested {
		t.Errorf("state after run = %+v, want idle", st)
	}
}

func TestStopWhileIdleIsNoop(t *testing.T) {
	r := NewRunner(newHostPage(1), &recordingDownloader{}, testLogger(), WithTiming(fastTiming()))
	r.Stop()
	if st := r.State(); st.IsRunning || st.CancelRequested {
		t.Errorf("state = %+v, want idle", st)
	}
	if err := r.Start(context.Background(), newForm(t, "", "a")); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if n := countPrefix(fakeOf(r).Actions(), "click "+hostpage.DefaultSelectors().NewConversation); n != 1 {
		t.Errorf("new conversation clicks = %d, want 1", n)
	}
}

func fakeOf(r *Runner) *hostpagetest.Fake {
	return r.doc.(*hostpagetest.Fake)
}

func TestImageTimeoutAbortsBatch(t *testing.T) {
	sel := hostpage.DefaultSelectors()
	fake := newHostPage(1)
	fake.OnClick(sel.Send, func(*hostpagetest.Fake, *hostpage.Element) {})
	timing := fastTiming()
	timing.ImageIterations = 5
	obs := &hookObserver{}
	r := NewRunner(fake, &recordingDownloader{}, testLogger(), WithTiming(timing), WithObserver(obs))

	err := r.Start(context.Background(), newForm(t, "", "first", "second"))
	if !errors.Is(err, ErrAttributeUnchanged) {
		t.Fatalf("err = %v, want ErrAttributeUnchanged", err)
	}
	var ie *ItemError
	if !errors.As(err, &ie) || ie.Index != 0 || ie.Description != "first" {
		t.Errorf("unexpected item error %#v", ie)
	}
	if n := countPrefix(fake.Actions(), "click "+sel.NewConversation); n != 1 {
		t.Errorf("new conversation clicks = %d, want 1", n)
	}
	if n := countPrefix(obs.events, "start "); n != 1 {
		t.Errorf("items started = %d, want 1", n)
	}
	if st := r.State(); st != (RunState{}) {
		t.Errorf("state = %+v, want zero", st)
	}
}

func TestImageWaitSurvivesClearedMessages(t *testing.T) {
	sel := hostpage.DefaultSelectors()
	fake := newHostPage(1)
	fake.Add(sel.ImageMessage, hostpagetest.NewNode().Add(sel.MessageImage, hostpagetest.NewNode("data-url", "https://img.test/old.png")))
	fake.OnClick(sel.Send, func(f *hostpagetest.Fake, _ *hostpage.Element) {
		f.Remove(sel.ImageMessage)
		msg := hostpagetest.NewNode().
			Add(sel.MessageImage, hostpagetest.NewNode("data-url", "https://img.test/new/0.png")).
			Add(sel.MessageImage, hostpagetest.NewNode("data-url", "https://img.test/new/1.png"))
		f.AddAfter(20*time.Millisecond, sel.ImageMessage, msg)
	})
	timing := fastTiming()
	timing.ImageIterations = 2000
	dl := &recordingDownloader{}
	r := NewRunner(fake, dl, testLogger(), WithTiming(timing))

	if err := r.Start(context.Background(), newForm(t, "", "a")); err != nil {
		t.Fatalf("Start: %v", err)
	}
	var urls []string
	for _, s := range dl.saved {
		urls = append(urls, s.url)
	}
	assertLines(t, []string{"https://img.test/new/0.png", "https://img.test/new/1.png"}, urls)
}

func TestMissingElementAbortsBatch(t *testing.T) {
	sel := hostpage.DefaultSelectors()
	fake := newHostPage(1)
	fake.Remove(sel.RenameConfirm)
	timing := fastTiming()
	timing.ElementTimeout = 10 * time.Millisecond
	r := NewRunner(fake, &recordingDownloader{}, testLogger(), WithTiming(timing))

	err := r.Start(context.Background(), newForm(t, "", "first", "second"))
	var nf *ElementNotFoundError
	if !errors.As(err, &nf) || nf.Selector != sel.RenameConfirm {
		t.Fatalf("err = %v, want ElementNotFoundError for rename confirm", err)
	}
}

func TestSkipPolicyContinuesAfterFailure(t *testing.T) {
	sel := hostpage.DefaultSelectors()
	fake := newHostPage(1)
	sends := 0
	fake.OnClick(sel.Send, func(f *hostpagetest.Fake, _ *hostpage.Element) {
		sends++
		if sends == 1 {
			return
		}
		msg := hostpagetest.NewNode().Add(sel.MessageImage, hostpagetest.NewNode("data-url", "https://img.test/ok.png"))
		f.Add(sel.ImageMessage, msg)
	})
	timing := fastTiming()
	timing.ImageIterations = 5
	dl := &recordingDownloader{}
	r := NewRunner(fake, dl, testLogger(), WithTiming(timing), WithFailurePolicy(FailSkip))

	err := r.Start(context.Background(), newForm(t, "", "bad", "good"))
	var ie *ItemError
	if !errors.As(err, &ie) || ie.Index != 0 {
		t.Fatalf("err = %v, want ItemError for item 0", err)
	}
	if names := dl.filenames(); len(names) != 1 {
		t.Errorf("downloads = %v, want one for the second item", names)
	}
}

func TestStartResetsStateOnPanic(t *testing.T) {
	obs := &hookObserver{onItemStart: func(int) { panic("observer exploded") }}
	r := NewRunner(newHostPage(1), &recordingDownloader{}, testLogger(), WithTiming(fastTiming()), WithObserver(obs))

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_ = r.Start(context.Background(), newForm(t, "", "a"))
	}()
	if st := r.State(); st.IsRunning || st.CancelRequested {
		t.Errorf("state after panic = %+v, want idle", st)
	}
}

func TestStartWithCancelledContext(t *testing.T) {
	fake := newHostPage(1)
	r := NewRunner(fake, &recordingDownloader{}, testLogger(), WithTiming(fastTiming()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := r.Start(ctx, newForm(t, "", "a")); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(fake.Actions()) != 0 {
		t.Errorf("no actions expected, got %v", fake.Actions())
	}
}

func TestSetSelectorsAppliesFromNextItem(t *testing.T) {
	fake := newHostPage(1)
	fake.Add("#new-chat-v2", hostpagetest.NewNode())
	obs := &hookObserver{}
	r := NewRunner(fake, &recordingDownloader{}, testLogger(), WithTiming(fastTiming()), WithObserver(obs))
	obs.onItemFinish = func(index int, _ error) {
		if index == 0 {
			r.SetSelectors(hostpage.DefaultSelectors().Merge(hostpage.Selectors{NewConversation: "#new-chat-v2"}))
		}
	}

	if err := r.Start(context.Background(), newForm(t, "", "a", "b")); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if n := countPrefix(fake.Actions(), "click #new-chat-v2"); n != 1 {
		t.Errorf("clicks on reloaded selector = %d, want 1", n)
	}
}

func TestImageFilename(t *testing.T) {
	ts := time.Date(2025, 12, 31, 23, 59, 58, 0, time.UTC)
	if got := ImageFilename("sunset over hills", ts); got != "sunset over hills_1231_235958.png" {
		t.Errorf("ImageFilename = %q", got)
	}
}

func TestScriptSteps(t *testing.T) {
	want := []string{StepNewConversation, StepWritePrompt, StepSend, StepAwaitImages, StepRename, StepDownloadImages}
	assertLines(t, want, ScriptSteps())
}

func TestObserversFanOut(t *testing.T) {
	a, b := &hookObserver{}, &hookObserver{}
	obs := Observers{a, b}

	item := task.MustItem("fox")
	obs.ItemStarted(0, 1, item)
	obs.StepStarted(0, StepSend)
	obs.ImageSaved(0, item, "fox.png")
	obs.ImageFailed(0, item, "fox_2.png")
	obs.ItemFinished(0, 1, item, nil)
	obs.RunFinished(1, nil)

	want := []string{"start 0/1 fox", "image 0 fox.png", "image-failed 0 fox_2.png", "finish 0 err=false"}
	for name, o := range map[string]*hookObserver{"first": a, "second": b} {
		if diff := diffLines(want, o.events); diff != "" {
			t.Errorf("%s observer events differ:\n%s", name, diff)
		}
	}
}
