package models

import (
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

// ErrorKind classifies failures of the payee engine.
type ErrorKind string

const (
	ErrorKindValidation          ErrorKind = "validation_failure"
	ErrorKindNotFound            ErrorKind = "not_found"
	ErrorKindExternalUnavailable ErrorKind = "external_unavailable"
	ErrorKindExternalCall        ErrorKind = "external_call_failure"
)

const errorKindMetaKey = "kind"

var kindStatus = map[ErrorKind]int{
	ErrorKindValidation:          http.StatusBadRequest,
	ErrorKindNotFound:            http.StatusNotFound,
	ErrorKindExternalUnavailable: http.StatusServiceUnavailable,
	ErrorKindExternalCall:        http.StatusBadGateway,
}

func newKindError(kind ErrorKind, format string, args ...any) *httperror.HTTPError {
	return httperror.NewHTTPError(kindStatus[kind], fmt.Sprintf(format, args...)).
		AddMetaValue(errorKindMetaKey, string(kind))
}

func NewValidationError(format string, args ...any) *httperror.HTTPError {
	return newKindError(ErrorKindValidation, format, args...)
}

func NewNotFoundError(format string, args ...any) *httperror.HTTPError {
	return newKindError(ErrorKindNotFound, format, args...)
}

// NewExternalUnavailableError lists the configuration the gateway is missing.
func NewExternalUnavailableError(missing []string, format string, args ...any) *httperror.HTTPError {
	return newKindError(ErrorKindExternalUnavailable, format, args...).AddMetaValue("missing", missing)
}

func NewExternalCallError(batchIndex int, err error) *httperror.HTTPError {
	return newKindError(ErrorKindExternalCall, "semantic gateway batch %d failed: %v", batchIndex, err).
		AddMetaValue("batch_index", batchIndex)
}

// KindOf returns the ErrorKind carried by err, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	if err == nil || !httperror.IsHTTPError(err) {
		return ""
	}
	httperr := httperror.ToHTTPError(err)
	if httperr == nil || httperr.Meta == nil {
		return ""
	}
	kind, _ := httperr.Meta[errorKindMetaKey].(string)
	return ErrorKind(kind)
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
