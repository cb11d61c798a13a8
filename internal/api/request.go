// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
)

const maxBodyBytes = 4 << 10

type startRequest struct {
	Number json.RawMessage `json:"number"`
}

// numberFromRequest reads the phone number from a JSON body, a form field or
// the "number" query parameter, in that order. The JSON value may be a
// string or a bare number.
func numberFromRequest(w http.ResponseWriter, r *http.Request) string {
	if r.Method == http.MethodPost && r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch ct {
		case "application/json":
			if n := numberFromJSON(r.Body); n != "" {
				return n
			}
		case "application/x-www-form-urlencoded", "multipart/form-data":
			if err := r.ParseForm(); err == nil {
				if n := strings.TrimSpace(r.PostForm.Get("number")); n != "" {
					return n
				}
			}
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("number"))
}

func numberFromJSON(body io.Reader) string {
	var req startRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil || len(req.Number) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(req.Number, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(req.Number, &n); err == nil {
		return n.String()
	}
	return ""
}
