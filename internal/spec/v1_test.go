// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package spec

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/restreamer/internal/state"
)

const sampleSpec = `{
  "version": "v1.0",
  "settings": {"title": "Studio A", "delete_confirmation": true},
  "restreams": [
    {
      "key": "live1",
      "label": "Main show",
      "input": {
        "key": "live1",
        "endpoints": [{"kind": "RTMP"}],
        "enabled": true,
        "src": {
          "failover_inputs": [
            {"key": "main", "endpoints": [{"kind": "RTMP"}], "enabled": true,
             "src": {"remote_url": "rtmp://origin.example/app/main"}},
            {"key": "backup", "endpoints": [{"kind": "RTMP"}], "enabled": true}
          ]
        }
      },
      "outputs": [
        {
          "dst": "rtmp://dst.example/app/key",
          "volume": {"level": 80, "muted": false},
          "mixins": [
            {"src": "ts://vc.example/room", "delay": 3500},
            {"src": "https://radio.example/stream.mp3", "sidechain": true}
          ],
          "enabled": true
        }
      ]
    }
  ]
}`

func TestParseValidSpec(t *testing.T) {
	s, err := Parse([]byte(sampleSpec))
	require.NoError(t, err)
	require.Len(t, s.Restreams, 1)

	r := s.Restreams[0]
	assert.Equal(t, state.RestreamKey("live1"), r.Key)
	require.NotNil(t, r.Input.Src)
	require.Len(t, r.Input.Src.FailoverInputs, 2)
	require.Len(t, r.Outputs, 1)
	assert.Equal(t, int64(3500), r.Outputs[0].Mixins[0].Delay.Millis())
	require.NotNil(t, s.Settings)
	assert.Equal(t, "Studio A", *s.Settings.Title)
}

func TestParseRejectsWrongVersion(t *testing.T) {
	_, err := Parse([]byte(`{"version": "v2.0", "restreams": []}`))
	assert.ErrorContains(t, err, "unsupported spec version")
}

func TestParseRejectsInvariantViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			"duplicate restream keys",
			`{"version":"v1.0","restreams":[
				{"key":"a","input":{"key":"a","endpoints":[{"kind":"RTMP"}]}},
				{"key":"a","input":{"key":"a","endpoints":[{"kind":"RTMP"}]}}]}`,
			"duplicate Restream.key",
		},
		{
			"missing RTMP endpoint",
			`{"version":"v1.0","restreams":[
				{"key":"a","input":{"key":"a","endpoints":[{"kind":"HLS"}]}}]}`,
			"at least one RTMP",
		},
		{
			"duplicate endpoint kinds",
			`{"version":"v1.0","restreams":[
				{"key":"a","input":{"key":"a","endpoints":[{"kind":"RTMP"},{"kind":"RTMP"}]}}]}`,
			"duplicate InputEndpoint.kind",
		},
		{
			"duplicate output dst",
			`{"version":"v1.0","restreams":[
				{"key":"a","input":{"key":"a","endpoints":[{"kind":"RTMP"}]},
				 "outputs":[{"dst":"rtmp://x/y"},{"dst":"rtmp://x/y"}]}]}`,
			"duplicate Output.dst",
		},
		{
			"duplicate failover keys",
			`{"version":"v1.0","restreams":[
				{"key":"a","input":{"key":"a","endpoints":[{"kind":"RTMP"}],
				 "src":{"failover_inputs":[
					{"key":"m","endpoints":[{"kind":"RTMP"}]},
					{"key":"m","endpoints":[{"kind":"RTMP"}]}]}}}]}`,
			"duplicate Input.key",
		},
		{
			"duplicate mixin src",
			`{"version":"v1.0","restreams":[
				{"key":"a","input":{"key":"a","endpoints":[{"kind":"RTMP"}]},
				 "outputs":[{"dst":"rtmp://x/y","mixins":[
					{"src":"ts://vc/a"},{"src":"ts://vc/a"}]}]}]}`,
			"duplicate mixin source",
		},
		{
			"invalid restream key",
			`{"version":"v1.0","restreams":[
				{"key":"NoCaps","input":{"key":"a","endpoints":[{"kind":"RTMP"}]}}]}`,
			"must match",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestRoundTripThroughStore(t *testing.T) {
	s, err := Parse([]byte(sampleSpec))
	require.NoError(t, err)

	store := state.NewStore()
	require.NoError(t, s.ApplyTo(store, true))

	exported := Export(store.Settings.Get(), store.Restreams.Get())
	data, err := json.Marshal(exported)
	require.NoError(t, err)

	reparsed, err := Parse(data)
	require.NoError(t, err)

	// Re-applying the export with replace must be a no-op: same UUIDs, same
	// tree.
	before := store.Restreams.Get()
	require.NoError(t, reparsed.ApplyTo(store, true))
	after := store.Restreams.Get()
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("replace re-import changed state (-before +after):\n%s", diff)
	}
}

func TestApplyToPreservesEnabledAndPasswords(t *testing.T) {
	store := state.NewStore()
	s, err := Parse([]byte(sampleSpec))
	require.NoError(t, err)
	require.NoError(t, s.ApplyTo(store, true))

	hash := "$argon2id$v=19$..."
	store.Settings.Update(func(cur *state.Settings) { cur.PasswordHash = &hash })

	id := store.Restreams.Get()[0].ID
	_, found := store.SetRestreamEnabled(id, false)
	require.True(t, found)

	require.NoError(t, s.ApplyTo(store, true))
	assert.False(t, store.Restreams.Get()[0].Input.Enabled)
	require.NotNil(t, store.Settings.Get().PasswordHash)
	assert.Equal(t, hash, *store.Settings.Get().PasswordHash)
}
