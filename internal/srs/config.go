// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package srs supervises the embedded SRS media server: it renders the
// server config, keeps the binary running, and kicks stale clients over
// the SRS HTTP API.
package srs

import (
	"bytes"
	"fmt"
	"path/filepath"
	"text/template"

	"github.com/google/renameio/v2"
)

// Config describes one embedded media-server instance.
type Config struct {
	// BinPath is the SRS executable.
	BinPath string
	// WorkDir holds the rendered config and the server's runtime files.
	WorkDir string
	// HTTPServerDir is served by the SRS HTTP server (HLS segments).
	HTTPServerDir string

	RTMPPort       uint16
	HTTPServerPort uint16
	// APIPort exposes the SRS HTTP API used for client kickoff.
	APIPort uint16
	// CallbackPort is where our own callback endpoint listens; SRS is
	// configured to deliver its HTTP hooks there.
	CallbackPort uint16
}

// ConfPath is where the rendered config lives inside the work dir.
func (c Config) ConfPath() string {
	return filepath.Join(c.WorkDir, "srs.conf")
}

func (c Config) callbackURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d/callback", c.CallbackPort)
}

// The hook list mirrors the callback actions the endpoint understands.
// HLS fragments are kept short so endpoint liveness reacts quickly.
var confTemplate = template.Must(template.New("srs.conf").Parse(
	`listen              {{.RTMPPort}};
max_connections     1000;
daemon              off;
srs_log_tank        console;

http_api {
    enabled         on;
    listen          127.0.0.1:{{.APIPort}};
}

http_server {
    enabled         on;
    listen          {{.HTTPServerPort}};
    dir             {{.HTTPServerDir}};
}

vhost hls {
    hls {
        enabled         on;
        hls_path        {{.HTTPServerDir}};
        hls_fragment    1;
        hls_window      5;
        hls_cleanup     on;
        hls_dispose     10;
    }
    http_hooks {
        enabled         on;
        on_hls          {{.CallbackURL}};
    }
}

vhost __defaultVhost__ {
    http_hooks {
        enabled         on;
        on_connect      {{.CallbackURL}};
        on_publish      {{.CallbackURL}};
        on_unpublish    {{.CallbackURL}};
        on_play         {{.CallbackURL}};
        on_stop         {{.CallbackURL}};
    }
}
`))

// Render produces the config text for c.
func (c Config) Render() ([]byte, error) {
	var buf bytes.Buffer
	err := confTemplate.Execute(&buf, struct {
		Config
		CallbackURL string
	}{c, c.callbackURL()})
	if err != nil {
		return nil, fmt.Errorf("render srs config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteConf renders the config and installs it atomically at ConfPath.
func (c Config) WriteConf() error {
	data, err := c.Render()
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(c.ConfPath(), data, 0o640); err != nil {
		return fmt.Errorf("write srs config: %w", err)
	}
	return nil
}
