package control

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"newspenguin/app"
	"newspenguin/domain"
)

var ErrAlreadyRunning = errors.New("already running")

// TryListen tries to bind the control address. If it's already in use, we assume an instance is running.
func TryListen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, ErrAlreadyRunning
	}
	return ln, nil
}

// Scheduler is the part of app.SchedulerService the server drives.
type Scheduler interface {
	Trigger(ctx context.Context) (domain.RunResult, error)
	SetSchedule(spec string) error
	CurrentSchedule() string
	Status() app.SchedulerStatus
}

// StateReader loads the persisted watermark and lease.
type StateReader func(ctx context.Context) (app.State, error)

type Server struct {
	sched   Scheduler
	state   StateReader
	metrics http.Handler
	logger  *slog.Logger
}

// NewServer builds the control handler. state and metrics may be nil.
func NewServer(sched Scheduler, state StateReader, metrics http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{sched: sched, state: state, metrics: metrics, logger: logger}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/status":
		s.handleStatus(w, r)
		return
	case r.Method == http.MethodPost && r.URL.Path == "/trigger":
		s.handleTrigger(w, r)
		return
	case r.Method == http.MethodPost && r.URL.Path == "/set-schedule":
		s.handleSetSchedule(w, r)
		return
	case r.Method == http.MethodGet && r.URL.Path == "/metrics" && s.metrics != nil:
		s.metrics.ServeHTTP(w, r)
		return
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var st app.State
	var err error
	if s.state != nil {
		st, err = s.state(r.Context())
	}
	writeJSON(w, http.StatusOK, newStatusReport(s.sched.Status(), st, err))
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	// a client that disconnects must not cut the run short
	res, err := s.sched.Trigger(context.WithoutCancel(r.Context()))
	if errors.Is(err, app.ErrRunInProgress) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	s.logger.Info("manual run finished", "run_id", res.RunID, "outcome", res.Outcome)
	// a failed run is still reported with 200; the report carries the error
	writeJSON(w, http.StatusOK, NewRunReport(res, err))
}

func (s *Server) handleSetSchedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Schedule string `json:"schedule"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	old := s.sched.CurrentSchedule()
	if err := s.sched.SetSchedule(req.Schedule); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "old": old, "new": req.Schedule})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
