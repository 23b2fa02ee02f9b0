// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package vc captures auxiliary voice-chat audio for mixing into outputs.
// A connection yields raw PCM frames (48 kHz, stereo, little-endian float32)
// which the process supervisor pumps into the named FIFO of a mixin.
package vc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/ManuGH/restreamer/internal/state"
)

// ConnConfig identifies one voice-chat capture: which server, which channel,
// and how the capture announces itself there.
type ConnConfig struct {
	// Host is the server address, host or host:port.
	Host string
	// Channel is the channel to join, taken from the source URL path.
	Channel string
	// Name is the display name announced in the channel.
	Name string
	// Identity restores a previously issued client identity; empty means a
	// fresh one is generated server-side.
	Identity string
}

// ConnConfigFromURL derives the capture parameters from a ts:// mixin source.
// The display name falls back to the output label, then to the mixin id.
func ConnConfigFromURL(src state.MixinSrcURL, label *state.Label, mixinID uuid.UUID) ConnConfig {
	u := src.URL()
	q := u.Query()
	name := q.Get("name")
	if name == "" {
		if label != nil {
			name = fmt.Sprintf("🤖 %s", *label)
		} else {
			name = fmt.Sprintf("🤖 %s", mixinID)
		}
	}
	return ConnConfig{
		Host:     u.Host,
		Channel:  strings.TrimPrefix(u.Path, "/"),
		Name:     name,
		Identity: q.Get("identity"),
	}
}

// Transport dials a voice-chat server and yields its captured audio stream.
type Transport interface {
	Dial(ctx context.Context, cfg ConnConfig) (io.ReadCloser, error)
}

// WebsocketTransport streams PCM over a websocket: one binary message per
// audio frame, concatenated into a continuous byte stream.
type WebsocketTransport struct {
	// Client overrides the HTTP client used for the websocket handshake.
	Client *http.Client
}

// Dial connects to ws://<host>/channels/<channel> announcing name and,
// when present, the restored identity.
func (t *WebsocketTransport) Dial(ctx context.Context, cfg ConnConfig) (io.ReadCloser, error) {
	q := url.Values{}
	q.Set("name", cfg.Name)
	if cfg.Identity != "" {
		q.Set("identity", cfg.Identity)
	}
	u := url.URL{
		Scheme:   "ws",
		Host:     cfg.Host,
		Path:     "/channels/" + cfg.Channel,
		RawQuery: q.Encode(),
	}

	conn, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		HTTPClient: t.Client,
	})
	if err != nil {
		return nil, fmt.Errorf("dial voice chat %s: %w", cfg.Host, err)
	}
	conn.SetReadLimit(1 << 20)
	return websocket.NetConn(ctx, conn, websocket.MessageBinary), nil
}
