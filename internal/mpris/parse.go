// SPDX-License-Identifier: MIT
package mpris

import (
	"sort"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"nowplaying/internal/session"
)

const (
	busPrefix   = "org.mpris.MediaPlayer2."
	objectPath  = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	playerIface = "org.mpris.MediaPlayer2.Player"
	propsIface  = "org.freedesktop.DBus.Properties"
)

// isPlayerName reports whether a bus name belongs to an MPRIS player.
func isPlayerName(name string) bool {
	return strings.HasPrefix(name, busPrefix) && len(name) > len(busPrefix)
}

// appID strips the MPRIS prefix and any ".instanceN" suffix, so
// "org.mpris.MediaPlayer2.firefox.instance_1_42" becomes "firefox".
func appID(busName string) string {
	id := strings.TrimPrefix(busName, busPrefix)
	if i := strings.Index(id, ".instance"); i > 0 {
		id = id[:i]
	}
	return id
}

func parseStatus(s string) session.PlaybackStatus {
	switch s {
	case "Playing":
		return session.StatusPlaying
	case "Paused":
		return session.StatusPaused
	case "Stopped":
		return session.StatusStopped
	default:
		return session.StatusClosed
	}
}

// microseconds converts the integer types players use for mpris:length and
// Position. Anything else is treated as unknown.
func microseconds(v any) (time.Duration, bool) {
	switch n := v.(type) {
	case int64:
		return time.Duration(n) * time.Microsecond, true
	case uint64:
		return time.Duration(n) * time.Microsecond, true
	case int32:
		return time.Duration(n) * time.Microsecond, true
	case uint32:
		return time.Duration(n) * time.Microsecond, true
	case float64:
		return time.Duration(n * float64(time.Microsecond)), true
	default:
		return 0, false
	}
}

// parseMetadata extracts the fields the panel shows plus the track length.
func parseMetadata(md map[string]dbus.Variant) (session.MediaProperties, time.Duration) {
	var props session.MediaProperties
	if v, ok := md["xesam:title"]; ok {
		props.Title, _ = v.Value().(string)
	}
	if v, ok := md["xesam:artist"]; ok {
		switch a := v.Value().(type) {
		case []string:
			props.Artist = strings.Join(a, ", ")
		case string:
			props.Artist = a
		}
	}
	if v, ok := md["mpris:artUrl"]; ok {
		if u, _ := v.Value().(string); u != "" {
			props.Thumbnail = &session.Thumbnail{URL: u}
		}
	}
	var length time.Duration
	if v, ok := md["mpris:length"]; ok {
		length, _ = microseconds(v.Value())
	}
	return props, length
}

// candidate is a player considered for the current session.
type candidate struct {
	name   string
	status session.PlaybackStatus
}

// pickCurrent chooses the session to report. A player whose app id matches
// preferred always wins; otherwise a playing player beats a paused one,
// which beats everything else. Ties go to the lowest bus name so the choice
// is stable.
func pickCurrent(cands []candidate, preferred string) (string, bool) {
	if len(cands) == 0 {
		return "", false
	}
	sorted := append([]candidate(nil), cands...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })

	if preferred != "" {
		for _, c := range sorted {
			if strings.EqualFold(appID(c.name), preferred) {
				return c.name, true
			}
		}
	}
	rank := func(s session.PlaybackStatus) int {
		switch s {
		case session.StatusPlaying:
			return 2
		case session.StatusPaused:
			return 1
		default:
			return 0
		}
	}
	best := sorted[0]
	for _, c := range sorted[1:] {
		if rank(c.status) > rank(best.status) {
			best = c
		}
	}
	return best.name, true
}
