package quality

import (
	"fmt"
	"strings"
)

// Mode selects the ratio between display and render resolution.
type Mode int

const (
	UltraQuality Mode = iota
	Quality
	Balanced
	Performance
	UltraPerformance
)

type modeInfo struct {
	name        string
	displayName string
	scale       float64
}

var modes = [...]modeInfo{
	UltraQuality:     {"ultra_quality", "Ultra Quality", 1.3},
	Quality:          {"quality", "Quality", 1.5},
	Balanced:         {"balanced", "Balanced", 1.7},
	Performance:      {"performance", "Performance", 2.0},
	UltraPerformance: {"ultra_performance", "Ultra Performance", 3.0},
}

// Modes returns every quality mode from highest to lowest render resolution.
func Modes() []Mode {
	return []Mode{UltraQuality, Quality, Balanced, Performance, UltraPerformance}
}

func (m Mode) valid() bool {
	return m >= UltraQuality && m <= UltraPerformance
}

// Scale returns the display/render ratio. Unknown modes scale like Balanced.
func (m Mode) Scale() float64 {
	if !m.valid() {
		return modes[Balanced].scale
	}
	return modes[m].scale
}

func (m Mode) String() string {
	if !m.valid() {
		return fmt.Sprintf("mode(%d)", int(m))
	}
	return modes[m].name
}

func (m Mode) DisplayName() string {
	if !m.valid() {
		return m.String()
	}
	return modes[m].displayName
}

// Next cycles to the following mode, wrapping around.
func (m Mode) Next() Mode {
	if !m.valid() {
		return Balanced
	}
	return (m + 1) % Mode(len(modes))
}

// ParseMode accepts a mode name, case-insensitive, with '-' or '_' separators.
func ParseMode(s string) (Mode, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for i, info := range modes {
		if info.name == key {
			return Mode(i), nil
		}
	}
	return Balanced, fmt.Errorf("unknown quality mode %q", s)
}

func (m Mode) MarshalText() ([]byte, error) {
	if !m.valid() {
		return nil, fmt.Errorf("invalid quality mode %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
