package server

import (
	"encoding/json"
	"net/http"
	"path/filepath"

	"github.com/msfocb/panicbutton/internal/action"
	"github.com/msfocb/panicbutton/internal/errors"
)

// MockQueryParam selects mock mode when it is exactly "true".
const MockQueryParam = "mock"

// StatusResponse is the body of every action response.
type StatusResponse struct {
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.config.Server.StaticDir, "index.html"))
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.published)
}

// actionHandler runs kind. It is only reachable behind the key guard.
func (s *Server) actionHandler(kind action.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mock := r.URL.Query().Get(MockQueryParam) == "true"
		outcome := s.gateway.Perform(r.Context(), kind, mock)
		writeJSON(w, http.StatusOK, StatusResponse{Status: outcome.Status()})
	}
}

// rejectHandler answers a failed key check. The response is an ordinary
// NOK so callers cannot tell a bad key from a failed action.
func (s *Server) rejectHandler(kind action.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.metrics.KeyRejected(kind.String())
		s.errs.Handle(r.Context(), errors.NewAuthRejected().WithAction(kind.String()))
		writeJSON(w, http.StatusOK, StatusResponse{Status: action.StatusNOK})
	}
}
