// Package api serves segmentation over HTTP and gRPC. POST /api/segment
// and the tableseg.Segmenter/Segment RPC run one frame, /api/runs lists
// stored runs, and the debug routes expose the run database and a chart of
// the latest objects.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/tableseg/internal/annotate"
	"github.com/banshee-data/tableseg/internal/config"
	"github.com/banshee-data/tableseg/internal/httputil"
	"github.com/banshee-data/tableseg/internal/monitoring"
	"github.com/banshee-data/tableseg/internal/segment"
	"github.com/banshee-data/tableseg/internal/store"
	"github.com/banshee-data/tableseg/internal/timeutil"
	"github.com/banshee-data/tableseg/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// defaultRunLimit caps GET /api/runs without a limit parameter.
const defaultRunLimit = 50

// SegmentResponse is the body of a successful POST /api/segment.
type SegmentResponse struct {
	RunID       string               `json:"run_id,omitempty"`
	DurationMs  float64              `json:"duration_ms"`
	ValidPoints int                  `json:"valid_points"`
	Annotation  *annotate.Annotation `json:"annotation"`
}

// Server handles the segmentation API. The tuning config is fixed at
// construction; requests may override fields per call.
type Server struct {
	cfg   *config.TuningConfig
	db    *store.DB
	runs  *store.RunStore
	clock timeutil.Clock

	mu   sync.Mutex
	last *segment.Result // most recent result, for the debug chart
}

// NewServer creates a server. db may be nil, in which case runs are not
// stored and the /api/runs routes return 503.
func NewServer(cfg *config.TuningConfig, db *store.DB) *Server {
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	s := &Server{cfg: cfg, db: db, clock: timeutil.RealClock{}}
	if db != nil {
		s.runs = store.NewRunStore(db.DB)
	}
	return s
}

// SetClock replaces the clock used to time and stamp runs.
func (s *Server) SetClock(c timeutil.Clock) { s.clock = c }

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the API routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/segment", s.handleSegment)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/", s.getRun)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/version", s.showVersion)
	return mux
}

// ErrBadFrame wraps every rejection of the caller's input: undecodable
// params, a cloud that does not match its declared size, or a segmentation
// precondition failure.
var ErrBadFrame = errors.New("bad frame")

// Segment runs one frame through the segmenter, records it as the latest
// result, and stores it as a run when storage is enabled. It returns the
// context error without storing anything if ctx ends while segmenting.
func (s *Server) Segment(ctx context.Context, frame *Frame) (*SegmentResponse, error) {
	cfg := s.cfg.Merge(frame.Params)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid params: %v", ErrBadFrame, err)
	}
	pts, err := frame.Cloud()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}

	params := cfg.SegmentParams()
	start := s.clock.Now()
	res, err := segment.SegmentObjectsAboveTable(pts, frame.Planes, params, frame.Height, frame.Width)
	elapsed := s.clock.Since(start)
	if errors.Is(err, segment.ErrInvalidInput) {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	if err != nil {
		return nil, fmt.Errorf("segmentation failed: %w", err)
	}

	if err := ctx.Err(); err != nil {
		monitoring.Logf("caller went away after %v, dropping result: %v", elapsed, err)
		return nil, err
	}

	ann, err := annotate.FromResult(res)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.last = res
	s.mu.Unlock()

	resp := &SegmentResponse{
		DurationMs:  float64(elapsed.Nanoseconds()) / 1e6,
		ValidPoints: pts.CountValid(),
		Annotation:  ann,
	}
	if s.runs != nil {
		run := store.RunFromResult(res, params, frame.Source, elapsed)
		run.CreatedAtNs = start.UnixNano()
		if err := s.runs.InsertRun(run); err != nil {
			return nil, fmt.Errorf("failed to store run: %w", err)
		}
		resp.RunID = run.RunID
	}
	return resp, nil
}

func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	frame, err := DecodeFrame(r.Body)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	resp, err := s.Segment(r.Context(), frame)
	switch {
	case err == nil:
		httputil.WriteJSONOK(w, resp)
	case errors.Is(err, ErrBadFrame):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Nobody is listening.
	default:
		httputil.InternalServerError(w, err.Error())
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.runs == nil {
		httputil.ServiceUnavailable(w, "run storage is disabled")
		return
	}

	limit := defaultRunLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	runs, err := s.runs.ListRuns(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.runs == nil {
		httputil.ServiceUnavailable(w, "run storage is disabled")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if id == "" || strings.Contains(id, "/") {
		httputil.NotFound(w, "run not found")
		return
	}

	run, err := s.runs.GetRun(id)
	if errors.Is(err, store.ErrRunNotFound) {
		httputil.NotFound(w, "run not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to get run: %v", err))
		return
	}
	httputil.WriteJSONOK(w, run)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.cfg)
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, version.Info())
}

// lastResult returns the most recent segmentation result, or nil.
func (s *Server) lastResult() *segment.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
