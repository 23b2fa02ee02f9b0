// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package graphqlapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-transport-ws/graphqlws"
	"github.com/rs/zerolog"

	"github.com/ManuGH/restreamer/internal/log"
	"github.com/ManuGH/restreamer/internal/state"
)

// Handler serves the four GraphQL surfaces. Each one pairs an HTTP schema
// (queries and mutations) with a websocket schema (subscriptions); the
// engine binds a field name to exactly one resolver method, so the two
// operation sets live in separate schemas sharing the entity resolvers.
type Handler struct {
	deps   Deps
	debug  bool
	logger zerolog.Logger

	api          *graphql.Schema
	apiSub       *graphql.Schema
	mix          *graphql.Schema
	mixSub       *graphql.Schema
	dashboard    *graphql.Schema
	dashboardSub *graphql.Schema
	statistics   *graphql.Schema
}

// NewHandler parses all schemas against their resolvers; a mismatch is a
// programming error and panics at startup.
func NewHandler(deps Deps, debug bool) *Handler {
	return &Handler{
		deps:         deps,
		debug:        debug,
		logger:       log.WithComponent("graphql"),
		api:          graphql.MustParseSchema(apiSDL, &apiResolver{deps: deps}),
		apiSub:       graphql.MustParseSchema(apiSubscriptionSDL, &apiSubscription{deps: deps}),
		mix:          graphql.MustParseSchema(mixSDL, &mixResolver{deps: deps}),
		mixSub:       graphql.MustParseSchema(mixSubscriptionSDL, &mixSubscription{deps: deps}),
		dashboard:    graphql.MustParseSchema(dashboardSDL, &dashboardResolver{deps: deps}),
		dashboardSub: graphql.MustParseSchema(dashboardSubscriptionSDL, &dashboardSubscription{deps: deps}),
		statistics:   graphql.MustParseSchema(statisticsSDL, &statisticsResolver{deps: deps}),
	}
}

// Mount attaches the surfaces to r. The statistics endpoint stays open so
// sibling restreamers can poll it; the mixing surface accepts the output
// password and falls back to the main one when no output password is set.
func (h *Handler) Mount(r chi.Router) {
	h.mount(r, "/api", graphqlws.NewHandlerFunc(h.apiSub, h.exec(h.api)), state.PasswordMain)
	h.mount(r, "/api-mix", graphqlws.NewHandlerFunc(h.mixSub, h.exec(h.mix)),
		state.PasswordOutput, state.PasswordMain)
	h.mount(r, "/api-dashboard", graphqlws.NewHandlerFunc(h.dashboardSub, h.exec(h.dashboard)),
		state.PasswordMain)

	r.Handle("/api-statistics", h.exec(h.statistics))
	if h.debug {
		r.Get("/api-statistics/playground", h.playground("/api-statistics"))
	}
}

func (h *Handler) mount(r chi.Router, path string, endpoint http.Handler, kinds ...state.PasswordKind) {
	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth(kinds...))
		r.Handle(path, endpoint)
		if h.debug {
			r.Get(path+"/playground", h.playground(path))
		}
	})
}

// exec serves a single POSTed GraphQL request. Domain errors raise the HTTP
// status of the whole response; plain resolver errors stay 200 as usual.
func (h *Handler) exec(schema *graphql.Schema) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var params struct {
			Query         string                 `json:"query"`
			OperationName string                 `json:"operationName"`
			Variables     map[string]interface{} `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}
		resp := schema.Exec(r.Context(), params.Query, params.OperationName, params.Variables)
		body, err := json.Marshal(resp)
		if err != nil {
			h.logger.Error().Err(err).Msg("response marshal failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(httpStatus(resp.Errors))
		_, _ = w.Write(body)
	})
}
