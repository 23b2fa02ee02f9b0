// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package graphqlapi

// sharedSDL carries the entity types common to every schema.
const sharedSDL = `
scalar Time

enum Status {
	OFFLINE
	INITIALIZING
	ONLINE
	UNSTABLE
}

enum InputEndpointKind {
	RTMP
	HLS
}

type ServerInfo {
	cpuUsage: Float
	cpuCores: Int
	ramTotal: Float
	ramFree: Float
	txDelta: Float
	rxDelta: Float
	errorMsg: String
}

type Volume {
	level: Int!
	muted: Boolean!
}

type Mixin {
	id: ID!
	src: String!
	volume: Volume!
	delay: Int!
	sidechain: Boolean!
	status: Status!
}

type Output {
	id: ID!
	dst: String!
	label: String
	previewUrl: String
	volume: Volume!
	mixins: [Mixin!]!
	enabled: Boolean!
	status: Status!
}

type InputEndpoint {
	id: ID!
	kind: InputEndpointKind!
	status: Status!
	label: String
}

type RemoteInputSrc {
	url: String!
}

type FailoverInputSrc {
	inputs: [Input!]!
}

union InputSrc = RemoteInputSrc | FailoverInputSrc

type Input {
	id: ID!
	key: String!
	endpoints: [InputEndpoint!]!
	src: InputSrc
	enabled: Boolean!
}

type Restream {
	id: ID!
	key: String!
	label: String
	input: Input!
	outputs: [Output!]!
}
`

// infoSDL is the server info/settings type of the client surface.
const infoSDL = `
type Info {
	publicHost: String!
	title: String
	deleteConfirmation: Boolean!
	enableConfirmation: Boolean!
	passwordHash: String
	passwordOutputHash: String
}
`

// statisticsTypesSDL carries the aggregate health-report types shared by the
// dashboard and statistics surfaces.
const statisticsTypesSDL = `
type StatusStatistics {
	status: Status!
	count: Int!
}

type ClientStatistics {
	clientTitle: String!
	timestamp: Time!
	inputs: [StatusStatistics!]!
	outputs: [StatusStatistics!]!
	serverInfo: ServerInfo!
}

type Client {
	id: String!
	statistics: ClientStatistics
	errors: [String!]
}
`

// apiSDL is the full control surface served on /api.
const apiSDL = sharedSDL + infoSDL + `
enum PasswordKind {
	MAIN
	OUTPUT
}

schema {
	query: Query
	mutation: Mutation
}

type Query {
	info: Info!
	serverInfo: ServerInfo!
	allRestreams: [Restream!]!
	dvrFiles(id: ID!): [String!]!
	export(ids: [ID!]): String
}

type Mutation {
	import(spec: String!, replace: Boolean!, restreamId: ID): Boolean
	setRestream(key: String!, src: String, backupSrc: String, label: String, withBackup: Boolean!, withHls: Boolean!, id: ID): Boolean
	removeRestream(id: ID!): Boolean
	enableRestream(id: ID!): Boolean
	disableRestream(id: ID!): Boolean
	enableInput(restreamId: ID!, inputId: ID!): Boolean
	disableInput(restreamId: ID!, inputId: ID!): Boolean
	changeEndpointLabel(restreamId: ID!, inputId: ID!, endpointId: ID!, label: String!): Boolean
	setOutput(restreamId: ID!, dst: String!, label: String, previewUrl: String, mixins: [String!]!, id: ID): Boolean
	removeOutput(restreamId: ID!, outputId: ID!): Boolean
	enableOutput(restreamId: ID!, outputId: ID!): Boolean
	disableOutput(restreamId: ID!, outputId: ID!): Boolean
	enableAllOutputs(restreamId: ID!): Boolean
	disableAllOutputs(restreamId: ID!): Boolean
	enablesAllOutputsOfRestreams: Boolean
	disableAllOutputsOfRestreams: Boolean
	tuneVolume(restreamId: ID!, outputId: ID!, mixinId: ID, level: Int!, muted: Boolean!): Boolean
	tuneDelay(restreamId: ID!, outputId: ID!, mixinId: ID!, delay: Int!): Boolean
	tuneSidechain(restreamId: ID!, outputId: ID!, mixinId: ID!, sidechain: Boolean!): Boolean
	removeDvrFile(path: String!): Boolean!
	setPassword(new: String, old: String, kind: PasswordKind): Boolean!
	setSettings(title: String, deleteConfirmation: Boolean, enableConfirmation: Boolean): Boolean!
}
`

// apiSubscriptionSDL is the websocket companion of /api. The query root is a
// liveness probe only: the engine binds a field name to a single resolver
// method, so the subscription fields cannot double as queries here.
const apiSubscriptionSDL = sharedSDL + infoSDL + `
schema {
	query: Query
	subscription: Subscription
}

type Query {
	ping: Boolean!
}

type Subscription {
	info: Info!
	serverInfo: ServerInfo!
	allRestreams: [Restream!]!
}
`

// mixSDL is the per-output mixing surface served on /api-mix.
const mixSDL = sharedSDL + `
schema {
	query: Query
	mutation: Mutation
}

type Query {
	output(restreamId: ID!, outputId: ID!): Output
}

type Mutation {
	tuneVolume(restreamId: ID!, outputId: ID!, mixinId: ID, level: Int!, muted: Boolean!): Boolean
	tuneDelay(restreamId: ID!, outputId: ID!, mixinId: ID!, delay: Int!): Boolean
}
`

// mixSubscriptionSDL is the websocket companion of /api-mix.
const mixSubscriptionSDL = sharedSDL + `
schema {
	query: Query
	subscription: Subscription
}

type Query {
	ping: Boolean!
}

type Subscription {
	output(restreamId: ID!, outputId: ID!): Output
}
`

// dashboardSDL manages the peer list served on /api-dashboard.
const dashboardSDL = sharedSDL + statisticsTypesSDL + `
schema {
	query: Query
	mutation: Mutation
}

type Query {
	clients: [Client!]!
}

type Mutation {
	addClient(clientId: String!): Boolean!
	removeClient(clientId: String!): Boolean!
}
`

// dashboardSubscriptionSDL is the websocket companion of /api-dashboard.
const dashboardSubscriptionSDL = sharedSDL + statisticsTypesSDL + `
schema {
	query: Query
	subscription: Subscription
}

type Query {
	ping: Boolean!
}

type Subscription {
	clients: [Client!]!
}
`

// statisticsSDL is the public health report served on /api-statistics.
const statisticsSDL = sharedSDL + statisticsTypesSDL + `
schema {
	query: Query
}

type Query {
	statistics: ClientStatistics!
}
`
