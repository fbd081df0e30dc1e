// SPDX-License-Identifier: MIT
package session

import "strings"

// SignalKind is a bit set of reasons a refresh was requested.
type SignalKind uint8

const (
	SessionChanged SignalKind = 1 << iota
	MediaPropertiesChanged
	PlaybackInfoChanged
	TimelineChanged
	RefreshRequested

	None SignalKind = 0
)

// mediaPropertyKinds are the signals that warrant fetching title, artist
// and artwork. Timeline ticks alone do not.
const mediaPropertyKinds = SessionChanged | MediaPropertiesChanged | PlaybackInfoChanged | RefreshRequested

var kindNames = []struct {
	kind SignalKind
	name string
}{
	{SessionChanged, "SessionChanged"},
	{MediaPropertiesChanged, "MediaPropertiesChanged"},
	{PlaybackInfoChanged, "PlaybackInfoChanged"},
	{TimelineChanged, "TimelineChanged"},
	{RefreshRequested, "RefreshRequested"},
}

// Has reports whether any bit of other is set in k.
func (k SignalKind) Has(other SignalKind) bool { return k&other != 0 }

func (k SignalKind) String() string {
	if k == None {
		return "None"
	}
	var parts []string
	for _, kn := range kindNames {
		if k&kn.kind != 0 {
			parts = append(parts, kn.name)
		}
	}
	return strings.Join(parts, "|")
}
