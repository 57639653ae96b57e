package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dustin/go-wikigraph"
	"github.com/spf13/cobra"
)

func newLinksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "links FILE",
		Short: "Print the link targets in a wikitext file",
		Long: `Links prints every link target found in the wikitext of FILE ("-" for
stdin) with how many times it's referenced, most referenced first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			text, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			printLinks(cmd.OutOrStdout(), wikigraph.CountLinks(string(text)))
			return nil
		},
	}
}

func printLinks(w io.Writer, counts map[string]int) {
	targets := make([]string, 0, len(counts))
	for t := range counts {
		targets = append(targets, t)
	}
	sort.Slice(targets, func(i, j int) bool {
		a, b := targets[i], targets[j]
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		return a < b
	})
	for _, t := range targets {
		fmt.Fprintf(w, "%d\t%s\n", counts[t], t)
	}
}
