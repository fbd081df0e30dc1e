// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"nowplaying/internal/audio"
	"nowplaying/internal/tui"
)

func newListCommand(g *globals) *cobra.Command {
	var interactive bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := g.load(); err != nil {
				return err
			}
			if err := audio.Initialize(); err != nil {
				return err
			}
			defer audio.Terminate()

			if !interactive {
				return audio.ListDevices(cmd.OutOrStdout())
			}
			sel, ok, err := tui.PickDevice(nil)
			if err != nil || !ok {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "--device %d --sample-rate %.0f  # %s\n", sel.DeviceID, sel.SampleRate, sel.Name)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Browse devices in the terminal and print the chosen flags")
	return cmd
}
