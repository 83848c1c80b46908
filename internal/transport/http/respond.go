package http

import (
	"encoding/json"
	"log"
	"net/http"

	"quizlink-service/internal/domain"
)

// errorBody is the wire shape of every error: a stable kind the caller can
// branch on plus a human-readable message, never a stack trace.
type errorBody struct {
	Kind    domain.Kind `json:"kind"`
	Message string      `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
	// State carries the session state a rejected operation observed, when one
	// is available (e.g. the expiry transition a late answer triggered).
	State string `json:"state,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeErrorState(w, err, "")
}

func writeErrorState(w http.ResponseWriter, err error, state string) {
	kind := domain.KindOf(err)
	message := "internal error"
	if kind != "" {
		message = err.Error()
	} else {
		log.Printf("internal error: %v", err)
	}
	writeJSON(w, statusForKind(kind), errorEnvelope{
		Error: errorBody{Kind: kind, Message: message},
		State: state,
	})
}

// statusForKind maps the error taxonomy onto HTTP statuses. Authorization
// failures are 401 and nothing else is, so the client gateway can recognize
// them.
func statusForKind(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindInvalidState:
		return http.StatusConflict
	case domain.KindExpired:
		return http.StatusGone
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeError(w, domain.Validationf("malformed request body"))
		return false
	}
	return true
}
