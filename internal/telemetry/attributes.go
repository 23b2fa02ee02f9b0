// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys so spans stay queryable across components.
const (
	// GraphQL attributes
	GraphQLSurfaceKey   = "graphql.surface"
	GraphQLOperationKey = "graphql.operation"

	// Restream attributes
	RestreamIDKey  = "restream.id"
	RestreamKeyKey = "restream.key"
	OutputIDKey    = "output.id"
	MixinSrcKey    = "mixin.src"

	// Process attributes
	ProcessKindKey     = "process.kind"
	ProcessRestartsKey = "process.restarts"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// GraphQLAttributes creates span attributes for a GraphQL request.
func GraphQLAttributes(surface, operation string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(GraphQLSurfaceKey, surface),
	}
	if operation != "" {
		attrs = append(attrs, attribute.String(GraphQLOperationKey, operation))
	}
	return attrs
}

// RestreamAttributes creates span attributes for a restream target.
func RestreamAttributes(id, key string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RestreamIDKey, id),
		attribute.String(RestreamKeyKey, key),
	}
}

// ProcessAttributes creates span attributes for a supervised process.
func ProcessAttributes(kind string, restarts int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ProcessKindKey, kind),
		attribute.Int(ProcessRestartsKey, restarts),
	}
}

// ErrorAttributes creates error span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
