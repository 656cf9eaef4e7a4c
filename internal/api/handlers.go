package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Read()
	s.writeJSON(w, http.StatusOK, StatusResponse{
		Status:    "online",
		Message:   serviceMessage,
		Connected: snap.Connected,
		Timestamp: snap.Timestamp,
	})
}

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Read())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Connected: s.store.Read().Connected,
		Timestamp: s.opts.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Read()
	s.writeJSON(w, http.StatusOK, DebugResponse{
		RawResponse: snap.RawResponse,
		Timestamp:   snap.Timestamp,
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, http.StatusNotFound, "not found")
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, APIError{
		Error:     msg,
		Timestamp: s.opts.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
