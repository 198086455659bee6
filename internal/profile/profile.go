// Package profile holds the compression profile registry. A profile is
// resolved once at worker startup and never changes afterwards; an unknown
// preset name is a startup failure, never a silent fallback.
package profile

import (
	"fmt"
	"sort"
	"strings"
)

// Profile is a named bundle of encoder parameters.
type Profile struct {
	Name         string
	CRF          int
	SpeedPreset  string
	MaxHeight    int
	AudioBitrate string
	VideoProfile string
	Level        string
	BFrames      int
	GOPSize      int
}

var registry = map[string]Profile{
	"quality-1080": {
		Name:         "quality-1080",
		CRF:          19,
		SpeedPreset:  "slow",
		MaxHeight:    1080,
		AudioBitrate: "192k",
		VideoProfile: "high",
		Level:        "4.2",
		BFrames:      3,
		GOPSize:      240,
	},
	"balanced-720": {
		Name:         "balanced-720",
		CRF:          23,
		SpeedPreset:  "medium",
		MaxHeight:    720,
		AudioBitrate: "128k",
		VideoProfile: "main",
		Level:        "4.0",
		BFrames:      2,
		GOPSize:      240,
	},
	"compact-480": {
		Name:         "compact-480",
		CRF:          28,
		SpeedPreset:  "veryfast",
		MaxHeight:    480,
		AudioBitrate: "96k",
		VideoProfile: "main",
		Level:        "3.1",
		BFrames:      2,
		GOPSize:      250,
	},
}

// Resolve returns the profile registered under name. Unknown names are an
// error so that a misconfigured worker refuses to start.
func Resolve(name string) (Profile, error) {
	p, ok := registry[strings.TrimSpace(name)]
	if !ok {
		return Profile{}, fmt.Errorf("unknown compression preset %q (available: %s)",
			name, strings.Join(Names(), ", "))
	}
	return p, nil
}

// Names returns the registered preset names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
