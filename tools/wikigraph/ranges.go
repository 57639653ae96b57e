package main

import (
	"fmt"

	"github.com/dustin/go-wikigraph"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRangesCmd() *cobra.Command {
	var index string
	cmd := &cobra.Command{
		Use:   "ranges",
		Short: "Print the dump block ranges named by an index",
		Long: `Ranges prints one line per compressed block of the dump: the byte
range it covers and how many pages the index lists in it.  Malformed index
lines are reported on stderr and skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(LogConfig{Level: "warn"}, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return printRanges(cmd, index, log)
		},
	}
	cmd.Flags().StringVar(&index, "index", "", "multistream index file (plain or .bz2)")
	cmd.MarkFlagRequired("index")
	return cmd
}

func printRanges(cmd *cobra.Command, path string, log logrus.FieldLogger) error {
	r, err := wikigraph.OpenIndex(path)
	if err != nil {
		return err
	}
	defer r.Close()

	sums, err := wikigraph.SummarizeIndex(r, log)
	if err != nil {
		return err
	}
	offsets := make([]int64, len(sums))
	for i, s := range sums {
		offsets[i] = s.Offset
	}
	out := cmd.OutOrStdout()
	for i, br := range wikigraph.Ranges(offsets) {
		fmt.Fprintf(out, "%v\t%d\n", br, sums[i].Count)
	}
	return nil
}
