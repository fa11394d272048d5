package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check every archived chunk and blob window against its checksums",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.openArchiver()
			if err != nil {
				return err
			}
			res, err := a.Validate(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "builds checked: %d\n", res.BuildsChecked)
			fmt.Fprintf(out, "chunks: %d verified, %d missing, %d corrupt\n",
				res.ChunksVerified, res.ChunksMissing, res.ChunksCorrupt)
			fmt.Fprintf(out, "blob files: %d verified, %d failed\n",
				res.FilesVerified, res.FilesFailed)
			for _, e := range res.Errors {
				fmt.Fprintf(out, "error: %s\n", e)
			}
			if !res.OK() {
				return fmt.Errorf("archive validation failed")
			}
			fmt.Fprintln(out, "archive OK")
			return nil
		},
	}
}
