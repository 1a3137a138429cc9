package stepper

import "strings"

// Preset returns a ready-made Config for a known motor. The caller
// still supplies the pins; everything else is filled in. Presets
// replace per-motor subclasses: one generic constructor, many
// configurations.
func Preset(name string) (Config, bool) {
	switch strings.ToLower(name) {
	case "28byj-48", "28byj48":
		// Geared unipolar motor behind a ULN2003 board, 4 lines,
		// 2048 full steps per output revolution.
		return Config{Name: name, StepsPerRev: 2048}, true
	case "nema17":
		// Direct-drive 1.8 deg bipolar motor on a dual H-bridge.
		return Config{Name: name, StepsPerRev: 200}, true
	default:
		return Config{}, false
	}
}
