package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/kevinaaaquil/bookdash/models"
	"github.com/kevinaaaquil/bookdash/service"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("handlers: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeMutationError maps coordinator errors onto HTTP statuses.
func writeMutationError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	var nf *service.NotFoundError
	var terr *service.TransportError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
	case errors.Is(err, service.ErrRowBusy):
		writeError(w, http.StatusConflict, service.ErrRowBusy.Error())
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, "book not found")
	case errors.As(err, &terr):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
