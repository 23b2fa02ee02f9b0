// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package graphqlapi

import (
	"fmt"
	"net/http"
)

// playgroundHTML is a minimal GraphiQL page; the endpoint path is injected
// for both the HTTP fetcher and the websocket subscription transport.
const playgroundHTML = `<!DOCTYPE html>
<html>
<head>
	<title>GraphiQL</title>
	<style>html, body, #graphiql { height: 100%%; margin: 0; }</style>
	<link rel="stylesheet" href="https://unpkg.com/graphiql/graphiql.min.css" />
	<script src="https://unpkg.com/react/umd/react.production.min.js"></script>
	<script src="https://unpkg.com/react-dom/umd/react-dom.production.min.js"></script>
	<script src="https://unpkg.com/graphiql/graphiql.min.js"></script>
</head>
<body>
	<div id="graphiql"></div>
	<script>
		const wsProto = location.protocol === 'https:' ? 'wss:' : 'ws:';
		const fetcher = GraphiQL.createFetcher({
			url: '%s',
			subscriptionUrl: wsProto + '//' + location.host + '%s',
		});
		ReactDOM.render(
			React.createElement(GraphiQL, { fetcher: fetcher }),
			document.getElementById('graphiql'),
		);
	</script>
</body>
</html>
`

// playground serves the GraphiQL page for one endpoint; mounted only in
// debug mode.
func (h *Handler) playground(endpoint string) http.HandlerFunc {
	page := []byte(fmt.Sprintf(playgroundHTML, endpoint, endpoint))
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	}
}
