// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package netutil holds small network helpers: loopback classification for
// the callback policy and public-IP detection for startup.
package netutil

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// IsLoopbackAddr reports whether addr — an IP literal, optionally with a
// port — refers to the local host.
func IsLoopbackAddr(addr string) bool {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	ip := net.ParseIP(strings.TrimSpace(host))
	return ip != nil && ip.IsLoopback()
}

const detectURL = "https://api.ipify.org"

// DetectPublicIP asks an external echo service for the address this host is
// reachable at. Used only when no public host is configured explicitly.
func DetectPublicIP(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, detectURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("detect public ip: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("detect public ip: %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", fmt.Errorf("detect public ip: %w", err)
	}
	s := strings.TrimSpace(string(body))
	if net.ParseIP(s) == nil {
		return "", fmt.Errorf("detect public ip: unparseable answer %q", s)
	}
	return s, nil
}
