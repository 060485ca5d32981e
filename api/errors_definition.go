//nolint:lll
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error is the type returned by every handler in this package. It satisfies
// the error interface: Error() returns a human-readable description.
//
// Error codes in the 40001-49999 range are the caller's fault, and return
// HTTP Status 400, 403 or 404, whatever is most appropriate.
//
// Error codes 50001-59999 are this gateway's fault and return HTTP Status
// 500, 502 or 503, whatever is most appropriate.
//
// NEVER change any of the current error codes, only append new errors after
// the current last 4XXX or 5XXX. If you notice a gap in the numbering, don't
// fill it in, that code was used in the past for some error (not anymore)
// and shouldn't be reused. There's no correlation between Code and
// HTTPstatus beyond what's set here.
type Error struct {
	Code       int
	HTTPstatus int
	Err        error
}

// Error implements the error interface.
func (e Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("error %d", e.Code)
	}
	return e.Err.Error()
}

// WithErr returns a copy of e with its message wrapping err.
func (e Error) WithErr(err error) Error {
	e.Err = fmt.Errorf("%w: %w", e.Err, err)
	return e
}

// Withf returns a copy of e with its message extended by a formatted detail.
func (e Error) Withf(format string, args ...any) Error {
	e.Err = fmt.Errorf("%w: "+format, append([]any{e.Err}, args...)...)
	return e
}

// Write serializes the error as JSON and writes it to w with the
// corresponding HTTP status code.
func (e Error) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPstatus)
	if e.HTTPstatus == http.StatusNoContent {
		return
	}
	body := struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}{Code: e.Code, Message: e.Error()}
	_ = json.NewEncoder(w).Encode(body)
}

var (
	ErrResourceNotFound   = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody      = Error{Code: 40002, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrUnknownRequestKind = Error{Code: 40003, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("unknown request kind")}
	ErrMalformedAddress   = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed address")}
	ErrMalformedHex       = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed hex value")}
	ErrNotWhitelisted     = Error{Code: 40006, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("address not in contract whitelist")}
	ErrRawSigningDisabled = Error{Code: 40007, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("raw transaction signing is disabled")}
	ErrCreationDisabled   = Error{Code: 40008, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("contract creation is disabled")}
	ErrNonpayableValue    = Error{Code: 40009, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("nonzero value in call to non-payable function")}
	ErrUnknownFunction    = Error{Code: 40010, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("unknown function")}
	ErrUnknownToken       = Error{Code: 40011, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("unknown ethtoken spec")}
	ErrUnknownEvent       = Error{Code: 40012, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("unknown event")}
	ErrArgCount           = Error{Code: 40013, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("wrong argument count")}
	ErrArgType            = Error{Code: 40014, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("argument cast failed")}
	ErrUnknownTopic       = Error{Code: 40015, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("unknown topic parameter")}
	ErrNoTarget           = Error{Code: 40016, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("no target address and no default whitelist entry")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
	ErrUpstreamRPC                = Error{Code: 50003, HTTPstatus: http.StatusBadGateway, Err: fmt.Errorf("upstream node RPC error")}
	ErrUpstreamTransport          = Error{Code: 50004, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("upstream transport failure")}
)
