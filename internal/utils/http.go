package utils

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func HttpJsonResponse(w http.ResponseWriter, code int, res any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.Err(err).Str("module", "http").Msg("sending http json response failed")
	}
}

func HttpError(w http.ResponseWriter, code int, message string) {
	HttpJsonResponse(w, code, ErrorResponse{Error: message})
}
