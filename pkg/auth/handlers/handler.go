package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/cbodonnell/arena/pkg/log"
)

// AuthHandler is an interface for handling account requests
type AuthHandler interface {
	HandleRegister() http.HandlerFunc
	HandleLogin() http.HandlerFunc
	HandleRefresh() http.HandlerFunc
	HandleDelete() http.HandlerFunc
}

// Response matches the body of every API reply.
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Response{Status: status, Message: message, Data: data}); err != nil {
		log.Error("error encoding response: %v", err)
	}
}
