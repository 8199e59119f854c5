package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"blockplan/internal/api"
	"blockplan/internal/cache"
	"blockplan/internal/config"
	"blockplan/internal/grid"
	"blockplan/internal/ics"
	appLog "blockplan/internal/log"
	"blockplan/internal/model"
	"blockplan/internal/store"
)

// EventStore is the persistence the server exposes over REST.
type EventStore interface {
	List(ctx context.Context, start, end time.Time) ([]model.Event, error)
	CreateEvent(ctx context.Context, in model.EventInput) (model.Event, error)
	UpdateEvent(ctx context.Context, id string, in model.EventInput) (model.Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// TaskLister returns the current task snapshot.
type TaskLister interface {
	List() []model.Task
}

// Server provides the REST API, the HTML week view and the ICS feed.
type Server struct {
	cfg    *config.Config
	events EventStore
	tasks  TaskLister
	mux    *http.ServeMux
	now    func() time.Time

	// Rendered /api/week responses keyed by week start. Writes invalidate it.
	weekCache *cache.TTL[api.WeekResponse]
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, events EventStore, tasks TaskLister) *Server {
	s := &Server{
		cfg:       cfg,
		events:    events,
		tasks:     tasks,
		mux:       http.NewServeMux(),
		now:       time.Now,
		weekCache: cache.New[api.WeekResponse](cfg.CacheTTL()),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials count as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="blockplan", charset="UTF-8"`)
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

// Reloader refreshes the task snapshot.
type Reloader interface {
	Reload() error
}

// StartServer serves the API on cfg.Listen until ctx is cancelled. If tasks
// is a Reloader it is refreshed on the cfg.RefreshCron schedule.
func StartServer(ctx context.Context, cfg *config.Config, events EventStore, tasks TaskLister) error {
	s := NewServer(cfg, events, tasks)

	if r, ok := tasks.(Reloader); ok {
		c := cron.New()
		if _, err := c.AddFunc(cfg.RefreshCron, func() {
			if err := r.Reload(); err == nil {
				s.weekCache.Invalidate()
			}
		}); err != nil {
			return fmt.Errorf("invalid refresh schedule %q: %w", cfg.RefreshCron, err)
		}
		c.Start()
		defer c.Stop()
		appLog.Info("task refresh scheduled", "cron", cfg.RefreshCron)
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/events", s.handleListEvents)
	s.mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	s.mux.HandleFunc("PATCH /api/events/{id}", s.handleUpdateEvent)
	s.mux.HandleFunc("DELETE /api/events/{id}", s.handleDeleteEvent)
	s.mux.HandleFunc("GET /api/tasks", s.handleTasks)
	s.mux.HandleFunc("GET /api/week", s.handleWeek)
	s.mux.HandleFunc("GET /week", s.handleWeekPage)
	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/week", http.StatusFound)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleListEvents returns stored events.
//
// GET /api/events?start=YYYY-MM-DD&end=YYYY-MM-DD
//   - start: first day (inclusive), optional
//   - end:   last day (exclusive), optional
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseDayParam(q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start")
		return
	}
	end, err := parseDayParam(q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end")
		return
	}

	events, err := s.events.List(r.Context(), start, end)
	if err != nil {
		appLog.Error("list events failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, api.EventsResponse{Events: events})
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}
	ev, err := s.events.CreateEvent(r.Context(), in)
	if err != nil {
		s.writeStoreError(w, "create", err)
		return
	}
	s.weekCache.Invalidate()
	appLog.Info("event created", "id", ev.ID, "start", ev.Start, "minutes", ev.Minutes())
	writeJSON(w, http.StatusCreated, api.EventResponse{Event: ev})
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}
	ev, err := s.events.UpdateEvent(r.Context(), r.PathValue("id"), in)
	if err != nil {
		s.writeStoreError(w, "update", err)
		return
	}
	s.weekCache.Invalidate()
	writeJSON(w, http.StatusOK, api.EventResponse{Event: ev})
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.events.DeleteEvent(r.Context(), id); err != nil {
		s.writeStoreError(w, "delete", err)
		return
	}
	s.weekCache.Invalidate()
	writeJSON(w, http.StatusOK, api.DeletedResponse{DeletedEventID: id})
}

func (s *Server) handleTasks(w http.ResponseWriter, _ *http.Request) {
	tasks := s.tasks.List()
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, api.TasksResponse{Tasks: tasks})
}

// handleWeek returns the render model for a week.
//
// GET /api/week?start=YYYY-MM-DD
//   - start: any day in the week; defaults to today
func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	resp, err := s.week(r.Context(), r.URL.Query().Get("start"))
	if err != nil {
		if errors.Is(err, errBadDay) {
			writeError(w, http.StatusBadRequest, "invalid start")
			return
		}
		appLog.Error("build week failed", err)
		writeError(w, http.StatusInternalServerError, "failed to build week")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleICS serves the ICS feed for the requested week (default: this week).
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	from, err := s.weekStartParam(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start")
		return
	}
	events, err := s.events.List(r.Context(), time.Time{}, time.Time{})
	if err != nil {
		appLog.Error("list events for ics failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	cal := ics.Export(events, s.tasks.List(), from, ics.Options{Name: "blockplan", Now: s.now()})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(ics.Serialize(cal))
}

// writeStoreError maps store sentinels onto HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	case errors.Is(err, store.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "end time must be after the start time")
	default:
		appLog.Error("event "+op+" failed", err)
		writeError(w, http.StatusInternalServerError, "failed to "+op+" event")
	}
}

func decodeInput(w http.ResponseWriter, r *http.Request) (model.EventInput, bool) {
	var in model.EventInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return in, false
	}
	return in, true
}

var errBadDay = errors.New("invalid day")

func parseDayParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := grid.ParseDayKey(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", errBadDay, v)
	}
	return t, nil
}

// weekStartParam resolves ?start= to the first day of its week.
func (s *Server) weekStartParam(v string) (time.Time, error) {
	day, err := parseDayParam(v)
	if err != nil {
		return time.Time{}, err
	}
	if day.IsZero() {
		day = s.now()
	}
	return grid.StartOfWeek(day, s.cfg.FirstWeekday()), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.ErrorResponse{Error: msg})
}
