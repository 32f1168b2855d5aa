// Package mockbackend serves a stand-in for the people search API so the
// client can be exercised without the hosted service.
package mockbackend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"people-search/internal/csvfile"
	"people-search/internal/search"
)

const (
	// APIPrefix is where the API routes are mounted. Clients use
	// http://host:port/api as their base URL.
	APIPrefix = "/api"

	ServiceName    = "people-search-api"
	ServiceVersion = "2.0"

	maxUploadSize           = 32 << 20
	gracefulShutdownTimeout = 5 * time.Second
)

type Option func(*Server)

// WithFailFirst makes the first n uploads answer 503.
func WithFailFirst(n int) Option {
	return func(s *Server) { s.failFirst = int64(n) }
}

// WithDelay holds every upload for d before answering. A request cancelled
// while waiting gets no response.
func WithDelay(d time.Duration) Option {
	return func(s *Server) { s.delay = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.log = l }
}

func WithClock(c clock.Clock) Option {
	return func(s *Server) { s.clock = c }
}

type Server struct {
	failFirst int64
	delay     time.Duration
	log       *zap.Logger
	clock     clock.Clock

	uploads  atomic.Int64
	registry *prometheus.Registry
	router   chi.Router
}

func New(opts ...Option) *Server {
	s := &Server{
		log:      zap.NewNop(),
		clock:    clock.RealClock{},
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}

	m := newRequestMetrics()
	s.registry.MustRegister(m.Collectors()...)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.Recoverer,
		m.Handler,
		requestLogger(s.log, "mock_backend"),
		cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "PUT", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			MaxAge:         300,
		}),
	)
	router.Route(APIPrefix, func(r chi.Router) {
		r.Get("/health", s.health)
		r.Post("/upload", s.upload)
		r.Post("/search", s.searchOne)
	})
	router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	s.router = router
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Uploads reports how many upload requests have been received.
func (s *Server) Uploads() int {
	return int(s.uploads.Load())
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		s.log.Info("mock backend terminated")
	}()

	s.log.Info("mock backend listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type errorReply struct {
	Error string `json:"error"`
}

type uploadReply struct {
	Success        bool                  `json:"success"`
	TotalProcessed int                   `json:"totalProcessed"`
	Found          int                   `json:"found"`
	NotFound       int                   `json:"notFound"`
	People         []search.PersonRecord `json:"people"`
}

type searchRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type searchReply struct {
	Success bool  `json:"success"`
	Result  Match `json:"result"`
}

func replyError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, errorReply{Error: msg})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, search.HealthInfo{
		Status:  "healthy",
		Service: ServiceName,
		Version: ServiceVersion,
	})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	n := s.uploads.Add(1)

	// The server only notices a client going away once the body has been
	// read, so consume it before waiting.
	parseErr := r.ParseMultipartForm(maxUploadSize)
	if parseErr != nil {
		_, _ = io.Copy(io.Discard, r.Body)
	}
	if !s.wait(r.Context()) {
		return
	}
	if n <= s.failFirst {
		replyError(w, r, http.StatusServiceUnavailable, "Service temporarily unavailable")
		return
	}

	if parseErr != nil {
		replyError(w, r, http.StatusBadRequest, "No file provided")
		return
	}
	file, header, err := r.FormFile(search.UploadFieldName)
	if errors.Is(err, http.ErrMissingFile) {
		// A part without a filename is parsed as a plain form value.
		if _, ok := r.MultipartForm.Value[search.UploadFieldName]; ok {
			replyError(w, r, http.StatusBadRequest, "No file selected")
			return
		}
		replyError(w, r, http.StatusBadRequest, "No file provided")
		return
	}
	if err != nil {
		replyError(w, r, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		replyError(w, r, http.StatusBadRequest, "No file selected")
		return
	}
	if !strings.HasSuffix(header.Filename, ".csv") {
		replyError(w, r, http.StatusBadRequest, "File must be a CSV")
		return
	}

	contacts, err := csvfile.ReadContacts(file)
	if err != nil {
		replyError(w, r, http.StatusInternalServerError, fmt.Sprintf("Processing failed: %v", err))
		return
	}

	reply := uploadReply{Success: true, People: []search.PersonRecord{}}
	for _, c := range contacts {
		reply.TotalProcessed++
		if c.Name == "" {
			continue
		}
		rec := Record(c)
		if rec.Status == search.StatusFound {
			reply.Found++
		}
		reply.People = append(reply.People, rec)
	}
	reply.NotFound = reply.TotalProcessed - reply.Found

	s.log.Debug("upload processed",
		zap.String("file", header.Filename),
		zap.Int("total", reply.TotalProcessed),
		zap.Int("found", reply.Found))
	render.JSON(w, r, reply)
}

func (s *Server) searchOne(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		replyError(w, r, http.StatusInternalServerError, fmt.Sprintf("Search failed: %v", err))
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		replyError(w, r, http.StatusBadRequest, "Name is required")
		return
	}

	m := Lookup(name, strings.TrimSpace(req.Address), strings.TrimSpace(req.Phone))
	if m.FacebookURL != nil {
		m.Details += " | " + m.facebookDetails
	}
	render.JSON(w, r, searchReply{Success: true, Result: m})
}

// wait applies the configured delay. It returns false if the client went away
// first.
func (s *Server) wait(ctx context.Context) bool {
	if s.delay <= 0 {
		return true
	}
	t := s.clock.NewTimer(s.delay)
	defer t.Stop()
	select {
	case <-t.C():
		return true
	case <-ctx.Done():
		s.log.Debug("upload abandoned by client", zap.Error(ctx.Err()))
		return false
	}
}
