package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/chunksync/internal/common"
)

type ctxKey string

const requestIDKey ctxKey = "requestID"

// requestIDMiddleware stamps every request with a correlation id, exposed
// to handlers via the context and echoed in the X-Request-Id header.
func (a *API) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func badRequest(msg string, err error) error {
	return fmt.Errorf("%s: %w: %v", msg, common.ErrInvalidArgument, err)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the engine's sentinel errors onto HTTP status codes.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrIncomplete):
		status = http.StatusConflict
	case errors.Is(err, common.ErrIntegrity):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		a.log.Error(r.Context(), "request failed", "method", r.Method, "url", r.URL.Path, "error", err.Error())
	} else {
		a.log.Warn(r.Context(), "request rejected", "method", r.Method, "url", r.URL.Path,
			"status", status, "error", err.Error())
	}
	a.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Error(context.Background(), "encode response", "error", err.Error())
	}
}
