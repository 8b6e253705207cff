package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for spider.
// The root command itself performs the crawl; the subcommands manage
// configuration, history and saved images.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spider [flags] URL",
		Short: "Download the images of a web page and the pages it links to",
		Long: `spider fetches a web page, downloads every image it references
(.jpg, .jpeg, .png, .gif, .bmp) into a directory, and with -r follows the
page's links depth-first up to a depth limit.

Each page is visited at most once. Image downloads on one page run
concurrently; pages are crawled one at a time.

Examples:
  # Download the images of a single page into ./data/
  spider https://example.com/gallery

  # Follow links up to 2 hops from the seed
  spider -r -l 2 https://example.com/

  # Save images somewhere else and print a Markdown report
  spider -r -p ./images --report markdown https://example.com/

  # Only follow links on the seed's host
  spider -r --origin host https://example.com/

Configuration file (.spider) example:
  defaults:
    workers: 4
  sites:
    example.com:
      depth: 3
      cookie: "session=abc123"
      ignorePatterns:
        - "/logout*"`,
		Version:       getVersion(),
		Args:          cobra.ExactArgs(1),
		RunE:          runCrawlCmd,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	addCrawlFlags(cmd)

	// Add subcommands
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInspectCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
