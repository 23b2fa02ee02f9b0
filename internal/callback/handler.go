// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package callback receives the embedded media server's HTTP hooks and turns
// them into endpoint liveness and client-handle updates. It is the only
// writer of an input endpoint's Online status.
package callback

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ManuGH/restreamer/internal/log"
	"github.com/ManuGH/restreamer/internal/metrics"
	"github.com/ManuGH/restreamer/internal/netutil"
	"github.com/ManuGH/restreamer/internal/state"
)

// Action is the hook name delivered by the media server.
type Action string

const (
	ActionOnConnect   Action = "on_connect"
	ActionOnPublish   Action = "on_publish"
	ActionOnUnpublish Action = "on_unpublish"
	ActionOnPlay      Action = "on_play"
	ActionOnStop      Action = "on_stop"
	ActionOnHls       Action = "on_hls"
)

// Request is the hook payload. Stream is absent on on_connect.
type Request struct {
	Action   Action            `json:"action"`
	App      state.RestreamKey `json:"app"`
	Stream   state.InputKey    `json:"stream,omitempty"`
	Vhost    string            `json:"vhost"`
	IP       string            `json:"ip"`
	ClientID state.SrsClientID `json:"client_id"`
}

// HandleFactory wraps a media-server client id into a handle whose release
// kicks the client.
type HandleFactory func(state.SrsClientID) *state.SrsClientHandle

// Handler answers the media server's hooks against the state store.
type Handler struct {
	store   *state.Store
	handles HandleFactory
	logger  zerolog.Logger
}

// NewHandler builds the hook handler. handles must not be nil.
func NewHandler(store *state.Store, handles HandleFactory) *Handler {
	return &Handler{
		store:   store,
		handles: handles,
		logger:  log.WithComponent("callback"),
	}
}

// NewRouter mounts the handler on POST /callback.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/callback", h.ServeHTTP)
	return r
}

// httpError maps a domain failure onto an HTTP status.
type httpError struct {
	status int
	msg    string
}

func (e *httpError) Error() string { return e.msg }

func errNotFound(what string) *httpError {
	return &httpError{http.StatusNotFound, fmt.Sprintf("no such %s", what)}
}

func errForbidden(msg string) *httpError {
	return &httpError{http.StatusForbidden, msg}
}

// errNotReady keeps HLS players away until the transcoder has caught up.
var errNotReady = &httpError{http.StatusTeapot, "not ready to serve"}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RecordCallback("invalid", "bad_request")
		http.Error(w, "unparseable hook payload", http.StatusBadRequest)
		return
	}

	err := h.handle(&req)
	if err != nil {
		hErr := &httpError{http.StatusBadRequest, err.Error()}
		if e, ok := err.(*httpError); ok { //nolint:errorlint
			hErr = e
		}
		metrics.RecordCallback(string(req.Action), "rejected")
		h.logger.Info().
			Str(log.FieldEvent, "callback.reject").
			Str(log.FieldAction, string(req.Action)).
			Str("app", string(req.App)).
			Str("stream", string(req.Stream)).
			Str(log.FieldClient, string(req.ClientID)).
			Int("status", hErr.status).
			Msg(hErr.msg)
		http.Error(w, hErr.msg, hErr.status)
		return
	}

	metrics.RecordCallback(string(req.Action), "ok")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("0"))
}

func (h *Handler) handle(req *Request) error {
	switch req.Action {
	case ActionOnConnect:
		return h.onConnect(req)
	case ActionOnPublish:
		return h.onStart(req, true)
	case ActionOnPlay:
		return h.onStart(req, false)
	case ActionOnUnpublish:
		return h.onStop(req, true)
	case ActionOnStop:
		return h.onStop(req, false)
	case ActionOnHls:
		return h.onHls(req)
	default:
		return fmt.Errorf("unknown hook action %q", req.Action)
	}
}

// onConnect only verifies the app refers to an enabled restream.
func (h *Handler) onConnect(req *Request) error {
	for _, r := range h.store.Restreams.Get() {
		if r.Key == req.App && r.Input.Enabled {
			return nil
		}
	}
	return errNotFound("app")
}

func endpointKind(vhost string) state.EndpointKind {
	if vhost == "hls" {
		return state.EndpointHLS
	}
	return state.EndpointRTMP
}

// onStart handles on_publish (publishing=true) and on_play.
func (h *Handler) onStart(req *Request, publishing bool) error {
	kind := endpointKind(req.Vhost)

	var result error
	h.store.Restreams.Update(func(rs *[]state.Restream) {
		result = func() error {
			r := findByApp(*rs, req.App, true)
			if r == nil {
				return errNotFound("app")
			}
			in := r.Input.FindByKey(req.Stream, true)
			if in == nil {
				return errNotFound("stream")
			}
			e := in.Endpoint(kind)
			if e == nil {
				return errForbidden("no such vhost on this stream")
			}

			if publishing {
				// External clients may only publish to push-type RTMP
				// inputs; pulled and HLS endpoints are fed locally.
				if !netutil.IsLoopbackAddr(req.IP) &&
					(in.Src != nil || e.Kind != state.EndpointRTMP) {
					return errForbidden("stream is allowed only locally")
				}
				if e.Publisher.ID() != req.ClientID {
					e.SetPublisher(h.handles(req.ClientID))
				}
				e.Status = state.StatusOnline
				return nil
			}

			if _, ok := e.Players[req.ClientID]; !ok {
				if e.Players == nil {
					e.Players = make(map[state.SrsClientID]*state.SrsClientHandle)
				}
				e.Players[req.ClientID] = h.handles(req.ClientID)
			}
			return nil
		}()
	})
	return result
}

// onStop handles on_unpublish (publishing=true) and on_stop. Unlike onStart
// it also matches disabled inputs: a teardown must always find its endpoint.
func (h *Handler) onStop(req *Request, publishing bool) error {
	kind := endpointKind(req.Vhost)

	var result error
	h.store.Restreams.Update(func(rs *[]state.Restream) {
		result = func() error {
			r := findByApp(*rs, req.App, false)
			if r == nil {
				return errNotFound("app")
			}
			in := r.Input.FindByKey(req.Stream, false)
			if in == nil {
				return errNotFound("stream")
			}
			e := in.Endpoint(kind)
			if e == nil {
				return errForbidden("no such vhost on this stream")
			}

			if publishing {
				e.SetPublisher(nil)
				e.Status = state.StatusOffline
			} else if p, ok := e.Players[req.ClientID]; ok {
				p.Release()
				delete(e.Players, req.ClientID)
			}
			return nil
		}()
	})
	return result
}

// onHls admits an HLS player once the endpoint is actually serving.
func (h *Handler) onHls(req *Request) error {
	if req.Vhost != "hls" {
		return errForbidden("no such vhost on this stream")
	}

	var result error
	h.store.Restreams.Update(func(rs *[]state.Restream) {
		result = func() error {
			r := findByApp(*rs, req.App, true)
			if r == nil {
				return errNotFound("app")
			}
			in := r.Input.FindByKey(req.Stream, true)
			if in == nil {
				return errNotFound("stream")
			}
			e := in.Endpoint(state.EndpointHLS)
			if e == nil {
				return errNotFound("stream")
			}
			if e.Status != state.StatusOnline {
				return errNotReady
			}

			if _, ok := e.Players[req.ClientID]; !ok {
				if e.Players == nil {
					e.Players = make(map[state.SrsClientID]*state.SrsClientHandle)
				}
				e.Players[req.ClientID] = h.handles(req.ClientID)
			}
			return nil
		}()
	})
	return result
}

func findByApp(rs []state.Restream, app state.RestreamKey, enabledOnly bool) *state.Restream {
	for i := range rs {
		if rs[i].Key == app && (!enabledOnly || rs[i].Input.Enabled) {
			return &rs[i]
		}
	}
	return nil
}
