package server

import (
	"net/http"
)

// setupRoutes wires the API surface.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket endpoint for session status streaming
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// Analysis session API
	mux.HandleFunc("/api/analysis", s.app.AnalysisHandler.StartAnalysisHandler)  // POST - start session
	mux.HandleFunc("/api/analysis/", s.app.AnalysisHandler.SessionRoutesHandler) // GET /{id}[/positions|summary|results|activity]

	// Health check
	mux.HandleFunc("/api/health", s.healthHandler)

	return mux
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
