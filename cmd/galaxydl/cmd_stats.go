package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd(flags *rootFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the archive's contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.openArchiver()
			if err != nil {
				return err
			}
			st, err := a.Stats()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				data, err := json.MarshalIndent(st, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}
			fmt.Fprintf(out, "builds:    %d (%d games)\n", st.Builds, st.Games)
			for gen, n := range st.BuildsByGen {
				fmt.Fprintf(out, "  %s: %d\n", gen, n)
			}
			fmt.Fprintf(out, "manifests: %d\n", st.Manifests)
			fmt.Fprintf(out, "chunks:    %d (%s)\n", st.Chunks, humanBytes(st.ChunkBytes))
			fmt.Fprintf(out, "blobs:     %d (%s)\n", st.Blobs, humanBytes(st.BlobBytes))
			fmt.Fprintf(out, "total:     %s\n", humanBytes(st.TotalBytes))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit indented JSON")
	return cmd
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}
