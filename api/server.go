package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertof/go-rapt-exporter/brewing"
	"github.com/robertof/go-rapt-exporter/collector/model"
	"github.com/robertof/go-rapt-exporter/device"
	"github.com/rs/zerolog/log"
)

// Coordinator is implemented by *collector.Coordinator.
type Coordinator interface {
  StartSession(params brewing.SessionParams) (string, error)
  StopSession(id string) error
  DeleteSession(id string) error
  AcknowledgeAlert(id string, index int) error
  SetStage(id string, stage brewing.Stage) error
  SetNotes(id string, notes string) error
  Sessions() []*brewing.Session
  Session(id string) (*brewing.Session, error)
  Current() (*brewing.Session, bool)
  HandleFrame(f model.Frame) (device.Reading, error)
}

type Options struct {
  // Origins allowed to call the API from a browser. Empty disables CORS.
  AllowedOrigins []string
}

type Server struct {
  coordinator Coordinator
  gatherer prometheus.Gatherer
  router chi.Router
  now func() time.Time
}

func NewServer(c Coordinator, gatherer prometheus.Gatherer, opts Options) *Server {
  s := &Server{
    coordinator: c,
    gatherer: gatherer,
    router: chi.NewRouter(),
    now: time.Now,
  }

  s.router.Use(middleware.RealIP)
  s.router.Use(requestLogger)
  s.router.Use(middleware.Recoverer)

  if len(opts.AllowedOrigins) > 0 {
    s.router.Use(cors.Handler(cors.Options{
      AllowedOrigins: opts.AllowedOrigins,
      AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
      AllowedHeaders: []string{"Accept", "Content-Type"},
      MaxAge: 300,
    }))
  }

  s.setupRoutes()

  return s
}

func (s *Server) setupRoutes() {
  s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

  s.router.Route("/api", func(r chi.Router) {
    r.Post("/frames", s.HandlePushFrame)

    r.Route("/sessions", func(r chi.Router) {
      r.Get("/", s.HandleListSessions)
      r.Post("/", s.HandleStartSession)
      r.Get("/current", s.HandleGetCurrentSession)

      r.Route("/{id}", func(r chi.Router) {
        r.Get("/", s.HandleGetSession)
        r.Delete("/", s.HandleDeleteSession)
        r.Post("/stop", s.HandleStopSession)
        r.Put("/stage", s.HandleSetStage)
        r.Put("/notes", s.HandleSetNotes)
        r.Post("/alerts/{index}/ack", s.HandleAcknowledgeAlert)
      })
    })
  })
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
  s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until the context is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
  srv := &http.Server{
    Addr: addr,
    Handler: s,
    ReadTimeout: 15 * time.Second,
    WriteTimeout: 15 * time.Second,
    IdleTimeout: 60 * time.Second,
  }

  errCh := make(chan error, 1)

  go func() {
    errCh <- srv.ListenAndServe()
  }()

  select {
  case err := <-errCh:
    return err
  case <-ctx.Done():
  }

  shutdownCtx, cancel := context.WithTimeout(context.Background(), 5 * time.Second)
  defer cancel()

  if err := srv.Shutdown(shutdownCtx); err != nil {
    return err
  }

  if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
    return err
  }

  return nil
}

func requestLogger(next http.Handler) http.Handler {
  return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
    ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
    start := time.Now()

    next.ServeHTTP(ww, r)

    log.Debug().
      Str("Method", r.Method).
      Str("Path", r.URL.Path).
      Str("RemoteAddr", r.RemoteAddr).
      Int("Status", ww.Status()).
      Dur("Took", time.Since(start)).
      Msg("api: handled request")
  })
}

func respondJSON(w http.ResponseWriter, status int, v any) {
  w.Header().Set("Content-Type", "application/json")
  w.WriteHeader(status)

  if err := json.NewEncoder(w).Encode(v); err != nil {
    log.Warn().Err(err).Msg("api: failed to write response")
  }
}

func respondError(w http.ResponseWriter, status int, message string) {
  respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError maps the errors returned by the coordinator to a status.
func respondDomainError(w http.ResponseWriter, err error) {
  status := http.StatusInternalServerError

  switch {
  case errors.Is(err, brewing.ErrSessionNotFound), errors.Is(err, brewing.ErrAlertNotFound):
    status = http.StatusNotFound
  case errors.Is(err, brewing.ErrSessionNotActive):
    status = http.StatusConflict
  case errors.Is(err, device.ErrTruncatedPayload),
      errors.Is(err, device.ErrUnsupportedFormat),
      errors.Is(err, device.ErrInvalidData):
    status = http.StatusUnprocessableEntity
  }

  if status == http.StatusInternalServerError {
    log.Error().Err(err).Msg("api: request failed")
  }

  respondError(w, status, err.Error())
}
