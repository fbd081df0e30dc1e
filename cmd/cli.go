// SPDX-License-Identifier: MIT

// Package cmd defines the command line interface.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"nowplaying/internal/config"
	"nowplaying/internal/log"
	"nowplaying/pkg/build"
)

// globals are the persistent flags shared by every command.
type globals struct {
	configPath string
	verbose    bool
}

// runFlags override configuration file values for the run command. Only
// flags the user actually set are applied.
type runFlags struct {
	deviceID        int
	channels        int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	stereo          bool
	fftSize         int
	bars            int
	window          string
	record          bool
	outputDir       string
	wsAddr          string
	udpTarget       string
	player          string
	metrics         bool
	noUI            bool
	noSession       bool
	pick            bool
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	info := build.GetBuildInfo()
	g := &globals{}
	rf := &runFlags{}

	rootCmd := &cobra.Command{
		Use:           info.Name,
		Short:         info.Description,
		Version:       info.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if err := rf.apply(cmd, cfg); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, rf.pick)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "C", "", "Path to a YAML configuration file (default ./config.yaml if present)")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "Show debug output")

	rf.register(rootCmd)

	rootCmd.AddCommand(
		newListCommand(g),
		newAnalyzeCommand(g),
		newVersionCommand(),
	)
	return rootCmd
}

// load reads the configuration and applies --verbose.
func (g *globals) load() (*config.Config, error) {
	if g.verbose {
		log.SetLevel(log.LevelDebug)
	}
	cfg, err := config.LoadConfig(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.verbose {
		cfg.Debug = true
	}
	log.SetLevel(cfg.Level())
	return cfg, nil
}

func (rf *runFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()

	// Audio device configuration
	f.IntVarP(&rf.deviceID, "device", "d", config.DefaultDeviceID,
		"Input device ID. Use the 'list' command to see available devices.")
	f.IntVarP(&rf.channels, "channels", "c", config.DefaultChannels,
		"Number of channels to capture (1=mono, 2=stereo)")
	f.Float64VarP(&rf.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	f.IntVarP(&rf.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	f.BoolVarP(&rf.lowLatency, "low-latency", "l", false,
		"Use the device's low input latency")
	f.BoolVarP(&rf.pick, "pick", "p", false,
		"Choose the input device interactively before starting")

	// Spectrum configuration
	f.BoolVar(&rf.stereo, "stereo", false, "Analyze left and right channels separately")
	f.IntVar(&rf.fftSize, "fft-size", config.DefaultFFTSize, "FFT window size (power of two)")
	f.IntVar(&rf.bars, "bars", config.DefaultBars, "Number of spectrum bars")
	f.StringVar(&rf.window, "window", "hann", "Window function: hann, hamming, blackman, blackmannuttall, bartletthann, lanczos, nuttall")

	// Recording configuration
	f.BoolVarP(&rf.record, "record", "r", false, "Record the captured audio to a WAV file")
	f.StringVarP(&rf.outputDir, "output-dir", "o", "./recordings", "Directory for recordings")

	// Outputs
	f.StringVar(&rf.wsAddr, "ws", "", "Serve frames and snapshots over websocket on this address, e.g. 127.0.0.1:8765")
	f.StringVar(&rf.udpTarget, "udp", "", "Send binary frames over UDP to this address, e.g. 127.0.0.1:9090")
	f.StringVar(&rf.player, "player", "", "Preferred media player, e.g. spotify")
	f.BoolVar(&rf.metrics, "metrics", false, "Expose /metrics on the websocket server")
	f.BoolVar(&rf.noUI, "no-ui", false, "Run without the terminal panel")
	f.BoolVar(&rf.noSession, "no-session", false, "Do not watch media sessions")
}

// apply copies the flags set on cmd into cfg and validates the result.
func (rf *runFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	set := cmd.Flags().Changed
	if set("device") {
		cfg.Audio.InputDevice = rf.deviceID
	}
	if set("channels") {
		cfg.Audio.InputChannels = rf.channels
	}
	if set("sample-rate") {
		cfg.Audio.SampleRate = rf.sampleRate
	}
	if set("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = rf.framesPerBuffer
	}
	if set("low-latency") {
		cfg.Audio.LowLatency = rf.lowLatency
	}
	if set("stereo") {
		cfg.Audio.Stereo = rf.stereo
	}
	if set("fft-size") {
		cfg.Spectrum.FFTSize = rf.fftSize
	}
	if set("bars") {
		cfg.Spectrum.Bars = rf.bars
	}
	if set("window") {
		cfg.Spectrum.Window = rf.window
	}
	if set("record") {
		cfg.Recording.Enabled = rf.record
	}
	if set("output-dir") {
		cfg.Recording.OutputDir = rf.outputDir
	}
	if set("ws") {
		cfg.Transport.WebSocketEnabled = true
		cfg.Transport.WebSocketAddr = rf.wsAddr
	}
	if set("udp") {
		cfg.Transport.UDPEnabled = true
		cfg.Transport.UDPTargetAddress = rf.udpTarget
	}
	if set("player") {
		cfg.Session.Player = rf.player
	}
	if set("metrics") {
		cfg.Metrics.Enabled = rf.metrics
	}
	if rf.noUI {
		cfg.UI.Enabled = false
	}
	if rf.noSession {
		cfg.Session.Enabled = false
	}
	return cfg.Validate()
}

// Execute runs the command line against args.
func Execute(ctx context.Context, args []string) error {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}
