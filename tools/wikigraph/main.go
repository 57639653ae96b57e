// Build a link graph out of a wikipedia multistream dump.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "wikigraph",
		Short: "Build article link graphs from wikipedia dumps",
		Long: `wikigraph reads a multistream pages-articles dump and its index and
builds the graph of links between articles.

Examples:
  wikigraph build --index enwiki-index.txt.bz2 --dump enwiki-multistream.xml.bz2 --tsv out/
  wikigraph ranges --index enwiki-index.txt.bz2
  wikigraph links page.wiki`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newBuildCmd(), newRangesCmd(), newLinksCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "wikigraph: %v\n", err)
		stop()
		os.Exit(exitCode(err))
	}
}
