// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package state

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ClientID is the base URL of a sibling restreamer polled for statistics.
type ClientID string

// ParseClientID validates and canonicalizes a peer URL: http(s), host
// required, no trailing slash.
func ParseClientID(s string) (ClientID, error) {
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("client url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("client url %q: must be http(s) with a host", s)
	}
	return ClientID(strings.TrimRight(s, "/")), nil
}

// UnmarshalJSON validates on decode.
func (c *ClientID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := ParseClientID(s)
	if err != nil {
		return err
	}
	*c = id
	return nil
}

// Client is a sibling restreamer tracked on the dashboard. Statistics are
// runtime-only, filled by the peer poller.
type Client struct {
	ID         ClientID                  `json:"id"`
	Statistics *ClientStatisticsResponse `json:"-"`
}

// Clone copies the client; the statistics payload is immutable once stored
// and shared between snapshots.
func (c Client) Clone() Client {
	return c
}

// CloneClients copies a client list; the Clients cell uses it as its
// snapshot copier.
func CloneClients(cs []Client) []Client {
	if cs == nil {
		return nil
	}
	out := make([]Client, len(cs))
	for i, c := range cs {
		out[i] = c.Clone()
	}
	return out
}

// StatusStatistics counts restream inputs or outputs sharing one status.
type StatusStatistics struct {
	Status Status `json:"status"`
	Count  int32  `json:"count"`
}

// ClientStatistics is the aggregate health report a peer serves on its
// statistics endpoint.
type ClientStatistics struct {
	ClientTitle string             `json:"clientTitle"`
	Timestamp   time.Time          `json:"timestamp"`
	Inputs      []StatusStatistics `json:"inputs"`
	Outputs     []StatusStatistics `json:"outputs"`
	ServerInfo  ServerInfo         `json:"serverInfo"`
}

// ClientStatisticsResponse carries either a peer's statistics or the errors
// of the last poll attempt.
type ClientStatisticsResponse struct {
	Data   *ClientStatistics `json:"data,omitempty"`
	Errors []string          `json:"errors,omitempty"`
}
