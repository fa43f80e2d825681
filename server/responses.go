package server

import (
	"encoding/json"
	"net/http"
)

const contentTypeJSON = "application/json; charset=utf-8"

// jsonError is the stable error envelope. Internal root causes collapse to
// a small set of codes so responses leak nothing beyond unauthenticated,
// forbidden, expired, or server error.
type jsonError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, code, description string, status int) {
	writeJSON(w, status, jsonError{Error: code, ErrorDescription: description})
}
