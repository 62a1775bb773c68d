package engine

import (
	"context"
	"fmt"

	"github.com/chr1sbest/imagebatch/internal/hostpage"
	"github.com/chr1sbest/imagebatch/internal/logger"
	"github.com/chr1sbest/imagebatch/internal/task"
)

// scriptStep is one named stage of the per-item script.
type scriptStep struct {
	Name string
	Run  func(run *itemRun, ctx context.Context) error
}

// Step names, in script order.
const (
	StepNewConversation = "new-conversation"
	StepWritePrompt     = "write-prompt"
	StepSend            = "send"
	StepAwaitImages     = "await-images"
	StepRename          = "rename"
	StepDownloadImages  = "download-images"
)

func itemScript() []scriptStep {
	return []scriptStep{
		{Name: StepNewConversation, Run: (*itemRun).newConversation},
		{Name: StepWritePrompt, Run: (*itemRun).writePrompt},
		{Name: StepSend, Run: (*itemRun).send},
		{Name: StepAwaitImages, Run: (*itemRun).awaitImages},
		{Name: StepRename, Run: (*itemRun).rename},
		{Name: StepDownloadImages, Run: (*itemRun).downloadImages},
	}
}

// ScriptSteps returns the step names of the per-item script in order.
func ScriptSteps() []string {
	steps := itemScript()
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	return names
}

// itemRun carries what one item's script reads and discovers.
type itemRun struct {
	runner *Runner
	waiter *Waiter
	sel    hostpage.Selectors
	timing Timing
	prefix string
	index  int
	item   task.Item
	log    logger.Logger

	imageBaseline int
	images        []*hostpage.Element
}

func (it *itemRun) doc() hostpage.Document { return it.runner.doc }

// clickWhenPresent waits for selector and clicks the match.
func (it *itemRun) clickWhenPresent(ctx context.Context, selector string) error {
	el, err := it.waiter.AwaitElement(ctx, selector, it.timing.ElementTimeout)
	if err != nil {
		return err
	}
	if err := it.doc().Click(ctx, el); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func (it *itemRun) writeWhenPresent(ctx context.Context, selector, value string) error {
	el, err := it.waiter.AwaitElement(ctx, selector, it.timing.ElementTimeout)
	if err != nil {
		return err
	}
	it.runner.input.WriteValue(ctx, el, value)
	return nil
}

func (it *itemRun) newConversation(ctx context.Context) error {
	return it.clickWhenPresent(ctx, it.sel.NewConversation)
}

func (it *itemRun) writePrompt(ctx context.Context) error {
	form := task.Form{CommonPrefix: it.prefix}
	return it.writeWhenPresent(ctx, it.sel.ChatInput, form.PromptText(it.item))
}

// send captures the image container count before clicking, so a reply that
// renders within the settle delay still counts as growth.
func (it *itemRun) send(ctx context.Context) error {
	existing, err := it.doc().QueryAll(ctx, nil, it.sel.ImageMessage)
	if err != nil {
		return fmt.Errorf("count image messages: %w", err)
	}
	it.imageBaseline = len(existing)
	return it.clickWhenPresent(ctx, it.sel.Send)
}

func (it *itemRun) awaitImages(ctx context.Context) error {
	after, err := it.waiter.AwaitGrowth(ctx, it.sel.ImageMessage, it.imageBaseline, it.timing.ImageIterations)
	if err != nil {
		return err
	}

	containers, err := it.doc().QueryAll(ctx, nil, it.sel.ImageMessage)
	if err != nil {
		return fmt.Errorf("list image messages: %w", err)
	}
	if len(containers) == 0 {
		return fmt.Errorf("image messages disappeared after growing to %d", after)
	}
	newest := containers[len(containers)-1]
	images, err := it.doc().QueryAll(ctx, newest, it.sel.MessageImage)
	if err != nil {
		return fmt.Errorf("list images in newest message: %w", err)
	}
	if len(images) == 0 {
		it.log.Warn("Newest message has no images", logger.F("selector", it.sel.MessageImage))
	}
	it.images = images
	it.log.Debug("Images ready", logger.F("count", len(images)))
	return nil
}

func (it *itemRun) rename(ctx context.Context) error {
	if err := it.clickWhenPresent(ctx, it.sel.ConversationTitle); err != nil {
		return err
	}
	if err := it.clickWhenPresent(ctx, it.sel.RenameAction); err != nil {
		return err
	}
	if err := it.writeWhenPresent(ctx, it.sel.RenameInput, it.item.Description()); err != nil {
		return err
	}
	return it.clickWhenPresent(ctx, it.sel.RenameConfirm)
}

func (it *itemRun) downloadImages(ctx context.Context) error {
	get := AttributeOf(it.doc(), it.sel.DetailImageAttr)
	for n, img := range it.images {
		// A missing detail view reads as "", which is a valid baseline.
		baseline, err := it.waiter.read(ctx, it.sel.DetailImage, get)
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if err := it.doc().Click(ctx, img); err != nil {
			return fmt.Errorf("open image %d: %w", n, err)
		}
		url, err := it.waiter.AwaitChangeFrom(ctx, it.sel.DetailImage, get, baseline, it.timing.DetailIterations)
		if err != nil {
			return err
		}

		filename := ImageFilename(it.item.Description(), it.runner.now())
		if path, ok := it.runner.download.Download(ctx, url, filename); ok {
			it.runner.observer.ImageSaved(it.index, it.item, path)
		} else {
			it.runner.observer.ImageFailed(it.index, it.item, filename)
		}

		if err := sleep(ctx, it.timing.SettleDelay); err != nil {
			return err
		}
		it.closeDetail(ctx)
	}
	return nil
}

// closeDetail dismisses the detail view when a close control is configured
// and currently present.
func (it *itemRun) closeDetail(ctx context.Context) {
	if it.sel.DetailClose == "" {
		return
	}
	el, err := it.doc().Query(ctx, it.sel.DetailClose)
	if err != nil || el == nil {
		return
	}
	if err := it.doc().Click(ctx, el); err != nil {
		it.log.Debug("Closing detail view failed", logger.F("error", err))
	}
}
