// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package state

import (
	"encoding/json"
	"fmt"
	"regexp"

	"golang.org/x/text/unicode/norm"
)

var (
	keyPattern   = regexp.MustCompile(`^[a-z0-9_-]{1,20}$`)
	labelPattern = regexp.MustCompile(`^[^,\n\t\r\f\v]{1,70}$`)
)

// RestreamKey names a restream; it doubles as the app segment of the
// media-server URLs, hence the tight charset.
type RestreamKey string

// NewRestreamKey validates s against ^[a-z0-9_-]{1,20}$.
func NewRestreamKey(s string) (RestreamKey, error) {
	if !keyPattern.MatchString(s) {
		return "", fmt.Errorf("restream key %q must match %s", s, keyPattern)
	}
	return RestreamKey(s), nil
}

// UnmarshalJSON validates the key on decode.
func (k *RestreamKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	key, err := NewRestreamKey(s)
	if err != nil {
		return err
	}
	*k = key
	return nil
}

// InputKey names an input within a restream; it is the stream segment of the
// media-server URLs.
type InputKey string

// NewInputKey validates s against ^[a-z0-9_-]{1,20}$.
func NewInputKey(s string) (InputKey, error) {
	if !keyPattern.MatchString(s) {
		return "", fmt.Errorf("input key %q must match %s", s, keyPattern)
	}
	return InputKey(s), nil
}

// UnmarshalJSON validates the key on decode.
func (k *InputKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	key, err := NewInputKey(s)
	if err != nil {
		return err
	}
	*k = key
	return nil
}

// Label is a human-readable caption attached to restreams, endpoints and
// outputs. NFC-normalized on ingress; commas and control characters are
// rejected, length is capped at 70.
type Label string

// NewLabel normalizes and validates s.
func NewLabel(s string) (Label, error) {
	s = norm.NFC.String(s)
	if !labelPattern.MatchString(s) {
		return "", fmt.Errorf("label %q must match %s", s, labelPattern)
	}
	return Label(s), nil
}

// UnmarshalJSON validates the label on decode.
func (l *Label) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	label, err := NewLabel(s)
	if err != nil {
		return err
	}
	*l = label
	return nil
}
