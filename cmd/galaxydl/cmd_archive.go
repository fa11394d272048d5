package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Dimensional/GalaxyDL/pkg/archive"
)

func newArchiveCmd(flags *rootFlags) *cobra.Command {
	var platforms []string
	var withContent bool

	cmd := &cobra.Command{
		Use:   "archive <game-id> [build-id]",
		Short: "Archive builds: manifests, depot manifests, and optionally content",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.openArchiver()
			if err != nil {
				return err
			}
			plats, err := flags.platforms(platforms)
			if err != nil {
				return err
			}
			gameID := args[0]
			ctx := cmd.Context()

			var res *archive.Result
			if len(args) == 2 {
				res = &archive.Result{}
				for _, platform := range plats {
					if err := a.ArchiveBuild(ctx, gameID, args[1], platform, res); err != nil {
						res.Errors = append(res.Errors, fmt.Sprintf("%s/%s: %v", args[1], platform, err))
					}
				}
			} else {
				res, err = a.ArchiveGame(ctx, gameID, plats)
				if err != nil {
					return err
				}
			}

			if withContent {
				for _, b := range a.Database().Builds() {
					if b.GameID != gameID {
						continue
					}
					if err := a.FetchBuildContent(ctx, b, res); err != nil {
						res.Errors = append(res.Errors, fmt.Sprintf("content for %s: %v", b.Key(), err))
					}
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "builds: %d archived, %d skipped\n", res.BuildsArchived, res.BuildsSkipped)
			fmt.Fprintf(out, "manifests: %d archived, %d skipped\n", res.ManifestsArchived, res.ManifestsSkipped)
			if withContent {
				fmt.Fprintf(out, "chunks: %d fetched, %d skipped, %d bytes\n",
					res.ChunksFetched, res.ChunksSkipped, res.BytesFetched)
			}
			for _, e := range res.Errors {
				fmt.Fprintf(out, "error: %s\n", e)
			}
			if !res.Complete() {
				return fmt.Errorf("%d units failed", len(res.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&platforms, "platform", nil, "platforms to archive (default from config)")
	cmd.Flags().BoolVar(&withContent, "content", false, "also fetch chunk/blob payloads")
	return cmd
}
