package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/tjfontaine/genai-gateway/internal/domain"
)

// retryAfterSeconds is advertised when an upstream is busy.
const retryAfterSeconds = 30

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Type      domain.ErrorType     `json:"type"`
	Reason    domain.FailureReason `json:"reason,omitempty"`
	Message   string               `json:"message"`
	Provider  string               `json:"provider,omitempty"`
	Body      string               `json:"body,omitempty"`
	RequestID string               `json:"request_id,omitempty"`
}

// WriteError renders err as {"error":{type,reason,message,provider,body}}
// with the status its type maps to.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	gwErr := domain.ToGatewayError(err)
	AddError(r.Context(), gwErr)

	if gwErr.Transient() {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}

	detail := errorDetail{
		Type:      gwErr.Type,
		Reason:    gwErr.Reason,
		Message:   gwErr.Message,
		Provider:  gwErr.Provider,
		Body:      gwErr.Body,
		RequestID: GetRequestID(r.Context()),
	}
	// Internal failures keep their detail in the log only.
	if gwErr.Type == domain.ErrorTypeInternal {
		detail.Message = "internal error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(gwErr.HTTPStatusCode())
	_ = json.NewEncoder(w).Encode(errorBody{Error: detail})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
