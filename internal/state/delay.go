// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package state

import (
	"encoding/json"
	"fmt"
	"time"
)

// Delay postpones a mixin's audio relative to the origin. It serializes as
// whole milliseconds and is never negative.
type Delay time.Duration

// NewDelayMillis validates ms and converts it to a Delay.
func NewDelayMillis(ms int64) (Delay, error) {
	if ms < 0 {
		return 0, fmt.Errorf("delay must not be negative, got %dms", ms)
	}
	return Delay(time.Duration(ms) * time.Millisecond), nil
}

// Millis returns the delay in whole milliseconds.
func (d Delay) Millis() int64 {
	return time.Duration(d).Milliseconds()
}

// MarshalJSON renders the delay as integer milliseconds.
func (d Delay) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Millis())
}

// UnmarshalJSON parses integer milliseconds, rejecting negatives.
func (d *Delay) UnmarshalJSON(data []byte) error {
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	parsed, err := NewDelayMillis(ms)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
