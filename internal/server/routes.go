package server

import "net/http"

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Live progress feed.
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// Health surface.
	mux.HandleFunc("/healthz", s.app.APIHandler.HealthHandler)

	// Jobs: create, list, inspect, cancel.
	mux.HandleFunc("/api/jobs", s.app.APIHandler.JobsHandler)
	mux.HandleFunc("/api/jobs/", s.app.APIHandler.JobRoutes)

	// Lands: lifecycle, seeds, keywords, stats.
	mux.HandleFunc("/api/lands", s.app.APIHandler.LandsHandler)
	mux.HandleFunc("/api/lands/", s.app.APIHandler.LandRoutes)

	// System.
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}
