// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// errorBody is the uniform error envelope.
type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
	promRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

func writeError(w http.ResponseWriter, detail string, status int) {
	writeJSON(w, status, errorBody{Detail: detail})
}
