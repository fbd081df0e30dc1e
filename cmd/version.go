// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"nowplaying/pkg/build"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := build.GetBuildInfo()
			fmt.Fprintln(cmd.OutOrStdout(), info.String())
			if build.IsDev() {
				fmt.Fprintln(cmd.OutOrStdout(), "development build")
			}
		},
	}
}
