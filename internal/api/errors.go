package api

import (
	"fmt"
	"log"
	"net/http"
)

// apiError is the §7 error taxonomy made concrete: an *apiError carries its
// own HTTP status and client-facing message, so writeAPIError never has to
// re-derive them from a generic error; any other error becomes a 500.
type apiError struct {
	status  int
	code    string
	message string
}

func (e *apiError) Error() string { return e.message }

func badRequest(format string, a ...interface{}) *apiError {
	return &apiError{status: http.StatusBadRequest, code: "bad_request", message: fmt.Sprintf(format, a...)}
}

func notFound(message string) *apiError {
	return &apiError{status: http.StatusNotFound, code: "not_found", message: message}
}

func unauthorized(message string) *apiError {
	return &apiError{status: http.StatusUnauthorized, code: "invalid_credentials", message: message}
}

func forbidden(message string) *apiError {
	return &apiError{status: http.StatusForbidden, code: "forbidden", message: message}
}

// writeAPIError maps an error to its §7 HTTP status. A plain (non-*apiError)
// error is always a ServerError: the root cause is logged but never shown
// to the client.
func writeAPIError(w http.ResponseWriter, err error) {
	if ae, ok := err.(*apiError); ok {
		writeJSON(w, ae.status, map[string]string{"code": ae.code, "message": ae.message})
		return
	}
	log.Printf("api: server error: %v", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"code": "server_error", "message": "internal server error"})
}
