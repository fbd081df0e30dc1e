// SPDX-License-Identifier: MIT
package audio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-audio/wav"
)

func decodeWAV(t *testing.T, path string) *wav.Decoder {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatalf("%s is not a valid WAV file", path)
	}
	return dec
}

func TestRecorderWritesWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.wav")
	rec, err := NewRecorder(path, testSampleRate, 2, 16, 0)
	if err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}

	for i := range 4 {
		if err := rec.Write(sine(440, testFrameSize, 2, 0.5, i*testFrameSize)); err != nil {
			t.Fatal(err)
		}
	}
	if got := rec.Frames(); got != 4*testFrameSize {
		t.Errorf("Frames = %d, want %d", got, 4*testFrameSize)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Failed to stop recording: %v", err)
	}
	// Second close and late writes are no-ops.
	if err := rec.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := rec.Write(sine(440, 16, 2, 0.5, 0)); err != nil {
		t.Errorf("Write after Close: %v", err)
	}

	dec := decodeWAV(t, path)
	if dec.SampleRate != testSampleRate || dec.NumChans != 2 || dec.BitDepth != 16 {
		t.Errorf("header = %d Hz, %d ch, %d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(pcm.Data), 4*testFrameSize*2; got != want {
		t.Errorf("decoded %d samples, want %d", got, want)
	}
}

func TestRecorderMaxDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.wav")
	// 10 ms at 48 kHz is 480 frames.
	rec, err := NewRecorder(path, testSampleRate, 1, 24, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	for range 3 {
		if err := rec.Write(sine(1000, 256, 1, 0.9, 0)); err != nil {
			t.Fatal(err)
		}
	}
	if got := rec.Frames(); got != 480 {
		t.Errorf("Frames = %d, want 480", got)
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestRecorderErrorCases(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		desc          string
		path          string
		channels      int
		bitDepth      int
		errorContains string
	}{
		{"Unsupported bit depth", filepath.Join(dir, "a.wav"), 2, 12, "bit depth"},
		{"No channels", filepath.Join(dir, "b.wav"), 0, 16, "invalid recording layout"},
		{"Invalid path", "/nonexistent/path/file.wav", 2, 16, ""},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			rec, err := NewRecorder(tt.path, testSampleRate, tt.channels, tt.bitDepth, 0)
			if err == nil {
				rec.Close()
				t.Fatal("Expected error but got none")
			}
			if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("Error %q does not contain %q", err.Error(), tt.errorContains)
			}
		})
	}
}

func TestRecordingPath(t *testing.T) {
	at := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	got := RecordingPath("out", at)
	if want := filepath.Join("out", "nowplaying-20260314-150926.wav"); got != want {
		t.Errorf("RecordingPath = %q, want %q", got, want)
	}
}
