package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExtractCmd(flags *rootFlags) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "extract <game-id> <build-id> <platform> <file>",
		Short: "Extract one file from an archived v1 blob",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.openArchiver()
			if err != nil {
				return err
			}
			b, ok := a.Database().Get(args[0], args[1], args[2])
			if !ok {
				return fmt.Errorf("build %s/%s/%s is not archived", args[0], args[1], args[2])
			}
			dest := output
			if dest == "" {
				dest = args[3]
			}
			if err := a.ExtractBuildFile(b, args[3], dest); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "extracted %s -> %s\n", args[3], dest)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "destination path (default the file name)")
	return cmd
}
