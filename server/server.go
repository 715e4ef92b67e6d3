package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/naimul214/busstatus"
	"github.com/naimul214/busstatus/metrics"
	"github.com/naimul214/busstatus/model"
)

// The parts of busstatus.Manager served over HTTP.
type Pipeline interface {
	RunCycle(ctx context.Context) (*busstatus.Result, error)
	FetchFeed(ctx context.Context, kind busstatus.FeedKind) (*model.Feed, error)
}

type Options struct {
	AllowedOrigins []string
	Metrics        *metrics.Collector
}

type Server struct {
	pipeline Pipeline
	options  Options
}

type PredictionsResponse struct {
	BusPredictions model.Predictions `json:"bus_predictions"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func New(pipeline Pipeline, options Options) *Server {
	if len(options.AllowedOrigins) == 0 {
		options.AllowedOrigins = []string{"*"}
	}
	return &Server{pipeline: pipeline, options: options}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.options.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Cycle-ID"},
	}))

	r.Get("/test", s.handleTest)
	r.Get("/get_predictions", s.handlePredictions)
	r.Get("/fetch_vehicle_positions", s.handleFeed(busstatus.FeedVehiclePositions, "Failed to fetch vehicle positions data."))
	r.Get("/fetch_trip_updates", s.handleFeed(busstatus.FeedTripUpdates, "Failed to fetch trip updates data."))
	if s.options.Metrics != nil {
		r.Handle("/metrics", s.options.Metrics.Handler())
	}

	return r
}

// Serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Server is running"})
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	result, err := s.pipeline.RunCycle(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch real-time data")
		writeJSON(w, statusFor(err), ErrorResponse{Error: "Failed to fetch or process real-time data."})
		return
	}

	w.Header().Set("X-Cycle-ID", result.ID.String())

	predictions := result.Predictions
	if predictions == nil {
		predictions = model.Predictions{}
	}
	writeJSON(w, http.StatusOK, PredictionsResponse{BusPredictions: predictions})
}

func (s *Server) handleFeed(kind busstatus.FeedKind, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		feed, err := s.pipeline.FetchFeed(r.Context(), kind)
		if err != nil {
			log.Error().Err(err).Str("feed", kind.String()).Msg("failed to fetch feed")
			writeJSON(w, statusFor(err), ErrorResponse{Error: message})
			return
		}
		writeJSON(w, http.StatusOK, feed)
	}
}

// Upstream trouble is a bad gateway. Anything else is on us.
func statusFor(err error) int {
	if errors.Is(err, busstatus.ErrFetch) || errors.Is(err, busstatus.ErrDecode) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("writing response")
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
