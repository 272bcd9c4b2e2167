// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-core-stack/governor/errors"
)

// largest request body accepted by the record routes
const maxBodySize = 1 << 20

type messageBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageBody{Error: msg})
}

// decodeBody reads the json request body into v, unknown fields are
// rejected
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrapf(errors.InvalidArgument, "invalid request body: %s", err)
	}
	return nil
}

// writeClientError answers the errors caused by the request itself,
// reports false for everything the governor has to map
func writeClientError(w http.ResponseWriter, err error) bool {
	switch errors.GetErrCode(err) {
	case errors.InvalidArgument:
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.NotFound:
		writeMessage(w, http.StatusNotFound, "not found")
	case errors.AlreadyExists:
		writeMessage(w, http.StatusConflict, "already exists")
	default:
		return false
	}
	return true
}
