// Package httpjson holds the tiny JSON response helpers shared by handlers.
package httpjson

import (
	"encoding/json"
	"net/http"
)

func Respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Error(w http.ResponseWriter, status int, msg string) {
	Respond(w, status, map[string]string{"message": msg})
}
