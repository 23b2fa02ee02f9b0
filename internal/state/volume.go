// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package state

import (
	"encoding/json"
	"fmt"
)

// VolumeLevelMax is the loudest representable level, 10x the origin.
const VolumeLevelMax = 1000

// VolumeLevelOrigin is the neutral level: audio passes through unscaled.
const VolumeLevelOrigin = 100

// Volume is an audio gain in percent steps plus a mute flag.
type Volume struct {
	Level uint16 `json:"level"`
	Muted bool   `json:"muted"`
}

// VolumeOrigin returns the neutral, unmuted volume.
func VolumeOrigin() Volume {
	return Volume{Level: VolumeLevelOrigin}
}

// NewVolumeLevel validates level against the [0, 1000] bound.
func NewVolumeLevel(level int32) (uint16, error) {
	if level < 0 || level > VolumeLevelMax {
		return 0, fmt.Errorf("volume level %d out of [0, %d]", level, VolumeLevelMax)
	}
	return uint16(level), nil
}

// Fraction renders the volume as the decimal multiplier FFmpeg's volume
// filter expects: level/100 with two decimals, "0.00" when muted.
func (v Volume) Fraction() string {
	if v.Muted {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", float64(v.Level)/100)
}

// UnmarshalJSON decodes and bounds-checks the level.
func (v *Volume) UnmarshalJSON(data []byte) error {
	type alias Volume
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Level > VolumeLevelMax {
		return fmt.Errorf("volume level %d out of [0, %d]", a.Level, VolumeLevelMax)
	}
	*v = Volume(a)
	return nil
}
