package main

import (
	"github.com/spf13/cobra"

	"github.com/maauso/media-compiler/internal/bootstrap"
)

func newRootCmd(opts ...bootstrap.Option) *cobra.Command {
	root := &cobra.Command{
		Use:           "media-compiler",
		Short:         "Compile images or a motion clip and an audio track into a video.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(opts...), newCompileCmd(opts...))
	return root
}
