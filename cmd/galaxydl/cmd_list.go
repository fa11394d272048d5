package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newListCmd(flags *rootFlags) *cobra.Command {
	var gameID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived builds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.openArchiver()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, b := range a.Database().Builds() {
				if gameID != "" && b.GameID != gameID {
					continue
				}
				fmt.Fprintf(out, "%-10s %-14s %-8s %-4s %-20s %d manifests\n",
					b.GameID, b.BuildID, b.Platform, b.Gen,
					time.Unix(b.Timestamp, 0).Format("2006-01-02 15:04:05"),
					len(b.ManifestsReferenced))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&gameID, "game", "", "only builds of this game")
	return cmd
}
