// Package web provides an HTTP status server for the scale-sensor daemon.
package web

import (
	"context"
	"log"
	"net"
	"net/http"

	"github.com/sweeney/scale-sensor/internal/status"
)

// Tarer re-zeroes the scale and returns the new offset.
type Tarer interface {
	Tare(ctx context.Context) (int64, error)
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	tarer      Tarer
}

// New creates a Server that reads state from the given tracker. If tarer is
// nil the tare endpoint is not registered.
func New(addr string, tracker *status.Tracker, tarer Tarer) *Server {
	s := &Server{tracker: tracker, tarer: tarer}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	if tarer != nil {
		mux.HandleFunc("/tare", s.handleTare)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the server's request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		log.Printf("http: render index: %v", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleTare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	offset, err := s.tarer.Tare(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		log.Printf("http: tare failed: %v", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write(formatTare(offset, err))
		return
	}
	w.Write(formatTare(offset, nil))
}
