package main

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

var version = "dev"

var commit = "none"

var date = "unknown"

func unset(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == "none" || s == "unknown"
}

// buildMetadata fills commit and date from the embedded VCS info when the
// linker did not set them.
func buildMetadata() (string, string) {
	c := strings.TrimSpace(commit)
	d := strings.TrimSpace(date)

	if unset(c) || unset(d) {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				v := strings.TrimSpace(s.Value)
				switch s.Key {
				case "vcs.revision":
					if unset(c) && v != "" {
						c = v
					}
				case "vcs.time":
					if unset(d) && v != "" {
						d = v
					}
				}
			}
		}
	}

	if !unset(c) && len(c) > 7 {
		c = c[:7]
	}
	return c, d
}

func shortVersion() string {
	return version
}

func versionLine() string {
	if version != "dev" {
		return fmt.Sprintf("imagebatch version %s", version)
	}

	c, d := buildMetadata()
	switch {
	case unset(c) && unset(d):
		return "imagebatch version dev"
	case unset(c):
		return fmt.Sprintf("imagebatch version dev (built %s)", d)
	case unset(d):
		return fmt.Sprintf("imagebatch version dev (commit %s)", c)
	}
	return fmt.Sprintf("imagebatch version dev (commit %s, built %s)", c, d)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionLine())
		},
	}
}
