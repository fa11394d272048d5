package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "galaxydl",
		Short: "Archive GOG Galaxy builds, manifests, and content",
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default galaxydl.toml)")
	root.PersistentFlags().StringVar(&flags.root, "root", "", "archive root directory")
	root.PersistentFlags().IntVar(&flags.workers, "workers", 0, "parallel chunk downloads")
	root.PersistentFlags().StringVar(&flags.token, "token", "", "bearer token for authorized endpoints")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newArchiveCmd(flags))
	root.AddCommand(newListBuildsCmd(flags))
	root.AddCommand(newListCmd(flags))
	root.AddCommand(newValidateCmd(flags))
	root.AddCommand(newExtractCmd(flags))
	root.AddCommand(newStatsCmd(flags))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("galaxydl 0.1.0-dev")
		},
	}
}
