package api

import "github.com/gorilla/mux"

func registerBaseRoutes(r *mux.Router, s *Server) {
	r.HandleFunc("/health", s.handleHealth).Methods("GET", "OPTIONS")
}

// registerTimelineRoutes wires the two auth-gated reads plus the on-demand
// refresh trigger. Every route below this subrouter passes through
// s.auth.Require first.
func registerTimelineRoutes(r *mux.Router, s *Server) {
	protected := r.NewRoute().Subrouter()
	protected.Use(s.auth.Require)

	protected.HandleFunc("/timeline/{user_id}", s.handleGetTimeline).Methods("GET", "OPTIONS")
	protected.HandleFunc("/timeline/{user_id}/raw/{platform}", s.handleGetRawSnapshot).Methods("GET", "OPTIONS")
	protected.HandleFunc("/timeline/{user_id}/refresh", s.handleRefresh).Methods("POST", "OPTIONS")
}
