package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for deepcrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deepcrawl",
		Short: "Adaptive deep-crawl scheduler",
		Long: `deepcrawl crawls websites breadth-first, depth-first or best-first.

Every fetch passes a shared rate limiter, may go out through a rotating pool
of HTTP or SOCKS5 proxies, and runs under a concurrency bound that can follow
system memory and CPU load. Finished runs are stored locally and can be
inspected with 'deepcrawl history'.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
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
