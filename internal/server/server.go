// Package server exposes Commands as a small JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/guyfedwards/feedstash/internal/commands"
	"github.com/guyfedwards/feedstash/internal/logging"
	"github.com/guyfedwards/feedstash/internal/model"
	"github.com/guyfedwards/feedstash/internal/store"
)

type Server struct {
	cmds   *commands.Commands
	log    *log.Logger
	router chi.Router
}

func New(cmds *commands.Commands, logger *log.Logger) *Server {
	s := &Server{
		cmds: cmds,
		log:  logging.OrDiscard(logger),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/storage", s.handleStorage)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/navigation", s.handleNavigate)
		r.Post("/search", s.handleSearch)
		r.Post("/active-sources", s.handleActiveSources)

		r.Get("/sources", s.handleListSources)
		r.Post("/sources", s.handleAddSource)
		r.Delete("/sources/{id}", s.handleRemoveSource)
		r.Get("/export-opml", s.handleExportOPML)

		r.Get("/bookmarks", s.handleListBookmarks)
		r.Post("/bookmarks", s.handleBookmark)
		r.Delete("/bookmarks", s.handleUnbookmark)
		r.Post("/hidden", s.handleHide)

		r.Get("/history", s.handleHistory)
		r.Post("/history", s.handleVisit)
		r.Delete("/history", s.handleClearHistory)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("server starting", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"id", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}

// statusFor maps command errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, commands.ErrItemNotFound), errors.Is(err, store.ErrSourceNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrSourceExists), errors.Is(err, commands.ErrRefreshInFlight):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

type linkRequest struct {
	Link string `json:"link"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cmds.State())
}

func (s *Server) handleStorage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cmds.StorageInfo())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	trigger := commands.TriggerInitial
	switch r.URL.Query().Get("trigger") {
	case "manual":
		trigger = commands.TriggerManual
	case "filter":
		trigger = commands.TriggerFilter
	}

	res, err := s.cmds.Refresh(r.Context(), trigger)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Navigation model.Navigation `json:"navigation"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := s.cmds.Navigate(req.Navigation); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	items, err := s.cmds.Search(req.Query)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleActiveSources(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sources []string `json:"sources"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	items, err := s.cmds.SetActiveSources(req.Sources)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cmds.State().Sources)
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL   string `json:"url"`
		Name  string `json:"name"`
		Video bool   `json:"video"`
	}
	if err := decode(w, r, &req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	src, err := s.cmds.AddFeed(r.Context(), req.URL, req.Name, req.Video)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, src)
}

func (s *Server) handleRemoveSource(w http.ResponseWriter, r *http.Request) {
	if err := s.cmds.RemoveFeed(chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportOPML(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/x-opml")
	w.Header().Set("Content-Disposition", `attachment; filename="feedstash.opml"`)
	if err := s.cmds.ExportSources(w); err != nil {
		s.log.Error("opml export failed", "err", err)
	}
}

func (s *Server) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cmds.Bookmarks())
}

func (s *Server) handleBookmark(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	added, err := s.cmds.Bookmark(req.Link)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]bool{"added": added})
}

func (s *Server) handleUnbookmark(w http.ResponseWriter, r *http.Request) {
	link := r.URL.Query().Get("link")
	if link == "" {
		writeError(w, http.StatusBadRequest, "link is required")
		return
	}
	if err := s.cmds.Unbookmark(link); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHide(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := s.cmds.Hide(req.Link); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cmds.History())
}

func (s *Server) handleVisit(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	item, err := s.cmds.Visit(req.Link)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// handleClearHistory removes one entry when ?link= is given, otherwise
// everything.
func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	var err error
	if link := r.URL.Query().Get("link"); link != "" {
		err = s.cmds.RemoveHistory(link)
	} else {
		err = s.cmds.ClearHistory()
	}
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
