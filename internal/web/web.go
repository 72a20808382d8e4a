package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"sheetcal/internal/config"
	"sheetcal/internal/engine"
	"sheetcal/internal/feed"
	"sheetcal/internal/icalexport"
	"sheetcal/internal/index"
	appLog "sheetcal/internal/log"
	"sheetcal/internal/model"
)

// Backend is the part of the engine the HTTP layer needs.
type Backend interface {
	Index() *index.Index
	Status() engine.Status
	Reload(ctx context.Context) error
}

// Server exposes the event index over HTTP.
type Server struct {
	cfg     *config.Config
	backend Backend
	router  chi.Router

	refreshLimiter *rate.Limiter
}

// NewServer constructs a Server and registers its routes.
func NewServer(cfg *config.Config, backend Backend) *Server {
	perMinute := cfg.RefreshPerMinute
	if perMinute <= 0 {
		perMinute = 1
	}
	s := &Server{
		cfg:            cfg,
		backend:        backend,
		router:         chi.NewRouter(),
		refreshLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve runs an HTTP server on cfg.Listen until ctx is canceled, then
// shuts it down gracefully.
func Serve(ctx context.Context, cfg *config.Config, backend Backend) error {
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           NewServer(cfg, backend).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.basicAuthEnabled() {
			appLog.Info("HTTP basic auth enabled")
			r.Use(s.basicAuthMiddleware)
		}

		r.Route("/api", func(r chi.Router) {
			r.Get("/status", s.handleStatus)
			r.Post("/refresh", s.handleRefresh)
			r.Get("/days/{date}", s.handleDay)
			r.Get("/months/{year}/{month}", s.handleMonth)
			r.Get("/months/{year}/{month}/days", s.handleMonthDays)
		})
		r.Get("/calendar.ics", s.handleICS)
	})
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="sheetcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"took", time.Since(start).Round(time.Microsecond),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleDay returns the visible events of one day.
//
// GET /api/days/{date}
//   - date: any recognizable date ("2024-03-05", "03/05/2024", ...)
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "date")
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	date, ok := feed.NormalizeDate(raw)
	if !ok {
		writeError(w, http.StatusBadRequest, "unrecognized date: "+raw)
		return
	}

	idx := s.backend.Index()
	writeJSON(w, http.StatusOK, dayResponse{
		Date:    date.Key(),
		IndexID: idx.ID(),
		Events:  toDTOs(idx.QueryDay(date.Key())),
	})
}

// handleMonth returns the visible events of one month.
//
// GET /api/months/{year}/{month}
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	year, month, ok := parseYearMonth(w, r)
	if !ok {
		return
	}

	idx := s.backend.Index()
	writeJSON(w, http.StatusOK, monthResponse{
		Year:    year,
		Month:   int(month),
		IndexID: idx.ID(),
		Events:  toDTOs(idx.QueryMonth(year, month)),
	})
}

// handleMonthDays returns per-day visible event counts for a month.
//
// GET /api/months/{year}/{month}/days
func (s *Server) handleMonthDays(w http.ResponseWriter, r *http.Request) {
	year, month, ok := parseYearMonth(w, r)
	if !ok {
		return
	}

	idx := s.backend.Index()
	days := idx.MonthDays(year, month)
	out := make([]dayCountDTO, 0, len(days))
	for _, d := range days {
		out = append(out, dayCountDTO{
			Date:    d.Date.Key(),
			Weekday: d.Date.Weekday().String(),
			Count:   d.Count,
		})
	}
	writeJSON(w, http.StatusOK, monthDaysResponse{
		Year:    year,
		Month:   int(month),
		IndexID: idx.ID(),
		Days:    out,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	idx := s.backend.Index()
	st := s.backend.Status()
	writeJSON(w, http.StatusOK, statusResponse{
		IndexID:     idx.ID(),
		BuiltAt:     idx.BuiltAt(),
		Events:      idx.Len(),
		Visible:     idx.VisibleLen(),
		LastAttempt: optionalTime(st.LastAttempt),
		LastSuccess: optionalTime(st.LastSuccess),
		LastError:   st.LastError,
		FromCache:   st.FromCache,
	})
}

// handleRefresh triggers a reload and waits for it. A reload that gets
// superseded by a newer one still counts as accepted.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.refreshLimiter.Allow() {
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "refresh rate limit exceeded")
		return
	}

	// The reload outlives a disconnecting client.
	err := s.backend.Reload(context.WithoutCancel(r.Context()))
	switch {
	case err == nil:
		s.handleStatus(w, r)
	case errors.Is(err, engine.ErrSuperseded):
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "superseded"})
	default:
		appLog.Error("manual refresh failed", err)
		writeError(w, http.StatusBadGateway, "refresh failed; previous data kept")
	}
}

// handleICS serves all visible events as an iCalendar feed.
func (s *Server) handleICS(w http.ResponseWriter, _ *http.Request) {
	idx := s.backend.Index()
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	err := icalexport.Write(w, idx.Events(), icalexport.Options{Name: s.cfg.Feed.ID})
	if err != nil {
		appLog.Error("failed to write calendar", err)
	}
}

func parseYearMonth(w http.ResponseWriter, r *http.Request) (int, time.Month, bool) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1 || year > 9999 {
		writeError(w, http.StatusBadRequest, "invalid year")
		return 0, 0, false
	}
	m, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || m < 1 || m > 12 {
		writeError(w, http.StatusBadRequest, "invalid month")
		return 0, 0, false
	}
	return year, time.Month(m), true
}

func toDTOs(events []model.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, eventDTO{
			Date:       ev.Date.Key(),
			Program:    ev.Program,
			Location:   ev.Location,
			Contact:    ev.Contact,
			Comments:   ev.Comments,
			Visibility: ev.Visibility,
			Initials:   ev.Initials(),
		})
	}
	return out
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
