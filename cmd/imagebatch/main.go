package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const defaultStateDir = ".imagebatch"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "imagebatch",
		Short: "Batch image generation through a chat page in Chrome",
		Long: `imagebatch drives an image-generating chat page in Chrome. For every
prompt in a task file it opens a new conversation, sends the prompt,
waits for the images, names the conversation after the prompt and saves
every image it produced.`,
		Version:       shortVersion(),
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetVersionTemplate(versionLine() + "\n")

	root.AddCommand(newRunCmd())
	root.AddCommand(newStopCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newTasksCmd())
	root.AddCommand(newVersionCmd())
	return root
}
