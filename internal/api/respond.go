package api

import (
	"encoding/json"
	"net/http"
)

// errorEnvelope is the uniform error shape every endpoint returns: a machine
// code plus a user-facing message and suggested action.
type errorEnvelope struct {
	OK      bool   `json:"ok"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Action  string `json:"action"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message, action string) {
	writeJSON(w, status, errorEnvelope{
		OK:      false,
		Code:    code,
		Message: message,
		Action:  action,
	})
}

func internalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", message,
		"Probeer het opnieuw. Als het probleem blijft bestaan, vernieuw de pagina of neem contact op met de ondersteuning.")
}
