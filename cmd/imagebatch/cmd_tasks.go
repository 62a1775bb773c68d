package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chr1sbest/imagebatch/internal/download"
	"github.com/chr1sbest/imagebatch/internal/engine"
	"github.com/chr1sbest/imagebatch/internal/task"
)

func newTasksCmd() *cobra.Command {
	var (
		prefix     string
		showPrompt bool
	)
	cmd := &cobra.Command{
		Use:   "tasks <file>",
		Short: "List the prompts a task file would run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, filePrefix, err := task.LoadFile(args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("prefix") {
				filePrefix = prefix
			}
			form := list.Form(filePrefix)

			now := time.Now()
			out := cmd.OutOrStdout()
			if form.CommonPrefix != "" {
				fmt.Fprintf(out, "prefix: %s\n\n", firstLine(form.CommonPrefix))
			}
			for i, item := range form.Items {
				name := download.SanitizeFilename(engine.ImageFilename(item.Description(), now))
				fmt.Fprintf(out, "%3d. %s\n", i+1, firstLine(item.Description()))
				fmt.Fprintf(out, "     saved as: %s\n", name)
				if showPrompt {
					for _, line := range strings.Split(form.PromptText(item), "\n") {
						fmt.Fprintf(out, "     | %s\n", line)
					}
				}
			}
			fmt.Fprintf(out, "\n%d prompt%s\n", len(form.Items), plural(len(form.Items)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "Common prompt prefix (overrides the task file)")
	cmd.Flags().BoolVar(&showPrompt, "prompt", false, "Show the full text sent for each prompt")
	return cmd
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
