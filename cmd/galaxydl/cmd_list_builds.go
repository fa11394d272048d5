package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newListBuildsCmd(flags *rootFlags) *cobra.Command {
	var platforms []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list-builds <game-id>",
		Short: "List a game's builds across platforms and generations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.openArchiver()
			if err != nil {
				return err
			}
			plats, err := flags.platforms(platforms)
			if err != nil {
				return err
			}

			builds, err := a.ListBuilds(cmd.Context(), args[0], plats)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				data, err := json.MarshalIndent(builds, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}
			for _, b := range builds {
				fmt.Fprintf(out, "%-14s %-8s %-4s %-22s %s\n",
					b.BuildID, b.Platform, b.Gen, b.DatePublished, b.VersionName)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&platforms, "platform", nil, "platforms to query (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit indented JSON")
	return cmd
}
