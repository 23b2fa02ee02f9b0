// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package graphqlapi exposes the configuration tree over four GraphQL
// schemas: the full control surface (/api), the per-output mixing surface
// (/api-mix), peer management (/api-dashboard) and the public statistics
// endpoint (/api-statistics).
package graphqlapi

import (
	"errors"
	"net/http"

	gqlerrors "github.com/graph-gophers/graphql-go/errors"

	"github.com/ManuGH/restreamer/internal/state"
)

// Domain error codes rendered into errors[*].extensions.code.
const (
	CodeDuplicateRestreamKey   = "DUPLICATE_RESTREAM_KEY"
	CodeDuplicateOutputURL     = "DUPLICATE_OUTPUT_URL"
	CodeTooManyMixins          = "TOO_MUCH_MIXIN_URLS"
	CodeDuplicateMixin         = "DUPLICATE_MIXIN_URL"
	CodeTooManyTeamspeakMixins = "TOO_MUCH_TEAMSPEAK_MIXIN_URLS"
	CodeInvalidDvrFilePath     = "INVALID_DVR_FILE_PATH"
	CodeNoOldPassword          = "NO_OLD_PASSWORD"
	CodeWrongOldPassword       = "WRONG_OLD_PASSWORD"
	CodeWrongTitleLength       = "WRONG_TITLE_LENGTH"
	CodeInvalidSpec            = "INVALID_SPEC"
	CodeUnknown                = "UNKNOWN"
)

// Error is a domain error surfaced to GraphQL clients. Code lands in the
// error extensions; Status drives the HTTP status of the whole response.
type Error struct {
	Code    string
	Status  int
	Message string
}

// Error implements error.
func (e *Error) Error() string { return e.Message }

// Extensions renders the code and status into the GraphQL error extensions.
func (e *Error) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.Code, "status": e.Status}
}

func newError(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// errUnknown wraps an unexpected failure as the 400 fallback code.
func errUnknown(err error) *Error {
	return newError(CodeUnknown, http.StatusBadRequest, err.Error())
}

// mapStateErr translates the state-layer validation sentinels onto domain
// error codes.
func mapStateErr(err error) *Error {
	switch {
	case errors.Is(err, state.ErrRestreamKeyTaken):
		return newError(CodeDuplicateRestreamKey, http.StatusConflict, err.Error())
	case errors.Is(err, state.ErrOutputDstTaken):
		return newError(CodeDuplicateOutputURL, http.StatusConflict, err.Error())
	case errors.Is(err, state.ErrTooManyMixins):
		return newError(CodeTooManyMixins, http.StatusBadRequest, err.Error())
	case errors.Is(err, state.ErrDuplicateMixin):
		return newError(CodeDuplicateMixin, http.StatusBadRequest, err.Error())
	case errors.Is(err, state.ErrTooManyTeamspeak):
		return newError(CodeTooManyTeamspeakMixins, http.StatusBadRequest, err.Error())
	default:
		return errUnknown(err)
	}
}

// httpStatus picks the HTTP status of a response: the first domain error's
// status, 200 otherwise.
func httpStatus(errs []*gqlerrors.QueryError) int {
	for _, qe := range errs {
		var derr *Error
		if errors.As(qe.ResolverError, &derr) {
			return derr.Status
		}
	}
	return http.StatusOK
}
