// SPDX-License-Identifier: MIT
package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"nowplaying/internal/config"
)

func parseRunFlags(t *testing.T, args ...string) (*cobra.Command, *runFlags) {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	rf := &runFlags{}
	rf.register(cmd)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags(%v): %v", args, err)
	}
	return cmd, rf
}

func TestApplyOnlyChangedFlags(t *testing.T) {
	cfg := config.Default()
	cfg.Audio.SampleRate = 44100
	cfg.Spectrum.Bars = 48

	cmd, rf := parseRunFlags(t, "--fft-size", "4096", "-c", "1")
	if err := rf.apply(cmd, cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if cfg.Spectrum.FFTSize != 4096 {
		t.Errorf("FFTSize = %d, want 4096", cfg.Spectrum.FFTSize)
	}
	if cfg.Audio.InputChannels != 1 {
		t.Errorf("InputChannels = %d, want 1", cfg.Audio.InputChannels)
	}
	// Unset flags keep the file values, not the flag defaults.
	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("SampleRate = %v, want 44100", cfg.Audio.SampleRate)
	}
	if cfg.Spectrum.Bars != 48 {
		t.Errorf("Bars = %d, want 48", cfg.Spectrum.Bars)
	}
}

func TestApplyOutputs(t *testing.T) {
	cfg := config.Default()
	cmd, rf := parseRunFlags(t,
		"--ws", "127.0.0.1:9000",
		"--udp", "127.0.0.1:9001",
		"--metrics",
		"--player", "spotify",
		"--no-ui",
		"--no-session",
	)
	if err := rf.apply(cmd, cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}

	tr := cfg.Transport
	if !tr.WebSocketEnabled || tr.WebSocketAddr != "127.0.0.1:9000" {
		t.Errorf("websocket = %v %q", tr.WebSocketEnabled, tr.WebSocketAddr)
	}
	if !tr.UDPEnabled || tr.UDPTargetAddress != "127.0.0.1:9001" {
		t.Errorf("udp = %v %q", tr.UDPEnabled, tr.UDPTargetAddress)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics not enabled")
	}
	if cfg.Session.Player != "spotify" {
		t.Errorf("Player = %q", cfg.Session.Player)
	}
	if cfg.UI.Enabled || cfg.Session.Enabled {
		t.Errorf("UI.Enabled = %v, Session.Enabled = %v; want both false", cfg.UI.Enabled, cfg.Session.Enabled)
	}
}

func TestApplyRevalidates(t *testing.T) {
	tests := [][]string{
		{"--fft-size", "1000"},
		{"--bars", "0"},
		{"--window", "square"},
		{"--sample-rate", "1000"},
		{"--ws", "no-port"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			cmd, rf := parseRunFlags(t, args...)
			err := rf.apply(cmd, config.Default())
			if !errors.Is(err, config.ErrInvalid) {
				t.Errorf("apply(%v) = %v, want ErrInvalid", args, err)
			}
		})
	}
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out.String(), "nowplaying ") {
		t.Errorf("version output = %q", out.String())
	}
}

func TestAnalyzeNeedsFile(t *testing.T) {
	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"analyze"})
	if err := root.Execute(); err == nil {
		t.Fatal("analyze without a file succeeded")
	}
}
