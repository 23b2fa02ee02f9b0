// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldProcessID = "process_id"
	FieldRestream  = "restream_id"
	FieldInput     = "input_id"
	FieldEndpoint  = "endpoint_id"
	FieldOutput    = "output_id"
	FieldMixin     = "mixin_id"
	FieldClient    = "client_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldExitCode  = "exit_code"

	// State fields
	FieldOldStatus = "old_status"
	FieldNewStatus = "new_status"

	// Path / URL fields
	FieldPath    = "path"
	FieldFromURL = "from_url"
	FieldToURL   = "to_url"

	// Network fields
	FieldPort   = "port"
	FieldAction = "action"
)
