// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package state

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// InputSrcURL is a pull source for an input: an RTMP origin or an HLS
// playlist.
type InputSrcURL string

// ParseInputSrcURL accepts rtmp(s)://host/... or http(s)://host/....m3u8.
func ParseInputSrcURL(s string) (InputSrcURL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("input src url: %w", err)
	}
	switch u.Scheme {
	case "rtmp", "rtmps":
		if u.Host == "" {
			return "", fmt.Errorf("input src url %q: missing host", s)
		}
	case "http", "https":
		if u.Host == "" || !strings.HasSuffix(u.Path, ".m3u8") {
			return "", fmt.Errorf("input src url %q: HTTP source must point at a .m3u8 playlist", s)
		}
	default:
		return "", fmt.Errorf("input src url %q: unsupported scheme %q", s, u.Scheme)
	}
	return InputSrcURL(s), nil
}

// URL returns the parsed form. The value was validated on construction.
func (u InputSrcURL) URL() *url.URL {
	parsed, _ := url.Parse(string(u))
	return parsed
}

// Scheme returns the URL scheme.
func (u InputSrcURL) Scheme() string { return u.URL().Scheme }

// UnmarshalJSON validates on decode.
func (u *InputSrcURL) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseInputSrcURL(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// OutputDstURL is a push destination: a remote RTMP/SRT/Icecast sink or a
// local recording file.
type OutputDstURL string

// ParseOutputDstURL accepts rtmp(s)|srt|icecast://host/... or
// file:///<name>.(flv|wav|mp3) with a single path level and no dot-dot.
func ParseOutputDstURL(s string) (OutputDstURL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("output dst url: %w", err)
	}
	switch u.Scheme {
	case "rtmp", "rtmps", "srt", "icecast":
		if u.Host == "" {
			return "", fmt.Errorf("output dst url %q: missing host", s)
		}
	case "file":
		if u.Host != "" {
			return "", fmt.Errorf("output dst url %q: file destination must not carry a host", s)
		}
		name := strings.TrimPrefix(u.Path, "/")
		if name == "" || strings.Contains(name, "/") || strings.Contains(name, "..") {
			return "", fmt.Errorf("output dst url %q: file destination must be a single-level name", s)
		}
		switch path.Ext(name) {
		case ".flv", ".wav", ".mp3":
		default:
			return "", fmt.Errorf("output dst url %q: file extension must be flv, wav or mp3", s)
		}
	default:
		return "", fmt.Errorf("output dst url %q: unsupported scheme %q", s, u.Scheme)
	}
	return OutputDstURL(s), nil
}

// URL returns the parsed form. The value was validated on construction.
func (u OutputDstURL) URL() *url.URL {
	parsed, _ := url.Parse(string(u))
	return parsed
}

// Scheme returns the URL scheme.
func (u OutputDstURL) Scheme() string { return u.URL().Scheme }

// FileName returns the bare file name of a file: destination, or "" for
// remote destinations.
func (u OutputDstURL) FileName() string {
	parsed := u.URL()
	if parsed.Scheme != "file" {
		return ""
	}
	return strings.TrimPrefix(parsed.Path, "/")
}

// UnmarshalJSON validates on decode.
func (u *OutputDstURL) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseOutputDstURL(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// MixinSrcURL is an auxiliary audio source mixed into an output: a
// voice-chat capture (ts://) or a remote MP3 stream.
type MixinSrcURL string

// ParseMixinSrcURL accepts ts://host/... or http(s)://host/....mp3.
func ParseMixinSrcURL(s string) (MixinSrcURL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("mixin src url: %w", err)
	}
	switch u.Scheme {
	case "ts":
		if u.Host == "" {
			return "", fmt.Errorf("mixin src url %q: missing host", s)
		}
	case "http", "https":
		if u.Host == "" || !strings.HasSuffix(u.Path, ".mp3") {
			return "", fmt.Errorf("mixin src url %q: HTTP source must point at an .mp3 stream", s)
		}
	default:
		return "", fmt.Errorf("mixin src url %q: unsupported scheme %q", s, u.Scheme)
	}
	return MixinSrcURL(s), nil
}

// URL returns the parsed form. The value was validated on construction.
func (u MixinSrcURL) URL() *url.URL {
	parsed, _ := url.Parse(string(u))
	return parsed
}

// Scheme returns the URL scheme.
func (u MixinSrcURL) Scheme() string { return u.URL().Scheme }

// IsTeamspeak reports whether the mixin is a voice-chat capture.
func (u MixinSrcURL) IsTeamspeak() bool { return u.Scheme() == "ts" }

// UnmarshalJSON validates on decode.
func (u *MixinSrcURL) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMixinSrcURL(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
