// SPDX-License-Identifier: MIT
package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"nowplaying/internal/audio"
	"nowplaying/internal/spectrum"
	"nowplaying/internal/transport"
)

func newAnalyzeCommand(g *globals) *cobra.Command {
	var (
		stereo bool
		frames bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <file.wav>",
		Short: "Run a WAV file through the spectrum pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)

			var encErr error
			handler := func(o spectrum.Output) {
				if !frames || encErr != nil {
					return
				}
				encErr = enc.Encode(transport.NewFrameMessage(o))
			}
			stats, err := audio.AnalyzeFile(cmd.Context(), args[0], cfg.SpectrumConfig(), stereo || cfg.Audio.Stereo, handler)
			if err != nil {
				return err
			}
			if encErr != nil {
				return encErr
			}
			fmt.Fprintf(out, "%s: %d Hz, %d ch, %d-bit, %s, %d sample frames -> %d spectrum frames\n",
				args[0], stats.SampleRate, stats.Channels, stats.BitDepth,
				stats.Duration, stats.Samples, stats.Frames)
			return nil
		},
	}
	cmd.Flags().BoolVar(&stereo, "stereo", false, "Analyze left and right channels separately")
	cmd.Flags().BoolVar(&frames, "frames", false, "Print every frame as a JSON line")
	return cmd
}
