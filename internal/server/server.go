package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tpitkanen/potku/internal/config"
	"github.com/tpitkanen/potku/internal/logging"
	"github.com/tpitkanen/potku/internal/optimization"
	"github.com/tpitkanen/potku/internal/optimization/linear"
	"github.com/tpitkanen/potku/internal/recoil"
	"github.com/tpitkanen/potku/internal/simulation"
	"github.com/tpitkanen/potku/internal/spectrum"
)

// Logger defines the logging interface used by the server.
// This allows us to be flexible with our logging implementation.
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Job tracks one optimization run: its lifecycle state, the latest
// progress message and the outcome. Access is guarded by the server's
// job mutex.
type Job struct {
	ID          string
	Target      string
	Status      string // "pending", "running", "completed", "failed", "cancelled"
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time

	State           optimization.State
	EvaluationsDone int
	EvaluationsLeft int
	Error           string

	cancel context.CancelFunc
}

// Server manages recoil optimization jobs over HTTP and JSON-RPC.
type Server struct {
	cfg    *config.Config
	logger Logger

	// newSimulator builds the simulator collaborator for one job.
	newSimulator func() simulation.Simulator

	mu          sync.RWMutex
	jobs        map[string]*Job
	busyTargets map[string]bool
}

// NewServer creates a server. newSimulator may be nil, in which case every
// job gets an echo simulator (development mode).
func NewServer(cfg *config.Config, logger Logger, newSimulator func() simulation.Simulator) *Server {
	if newSimulator == nil {
		newSimulator = func() simulation.Simulator { return &simulation.EchoSimulator{} }
	}
	return &Server{
		cfg:          cfg,
		logger:       logger,
		newSimulator: newSimulator,
		jobs:         make(map[string]*Job),
		busyTargets:  make(map[string]bool),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/optimization/{id}", s.handleCancel)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// startRequest is the wire form of one optimization job.
type startRequest struct {
	Element struct {
		Symbol  string `json:"symbol"`
		Isotope int    `json:"isotope"`
	} `json:"element"`

	// Measured holds inline (x, y) samples; MeasuredFile points at a
	// two-column spectrum file. Exactly one must be given.
	Measured     [][2]float64 `json:"measured,omitempty"`
	MeasuredFile string       `json:"measured_file,omitempty"`
	CutFile      string       `json:"cut_file,omitempty"`

	// ParamsFile is an optional YAML job-parameter file; inline fields
	// below override it.
	ParamsFile     string  `json:"params_file,omitempty"`
	RecoilType     string  `json:"recoil_type,omitempty"`
	SolSize        int     `json:"sol_size,omitempty"`
	ChannelWidth   float64 `json:"channel_width,omitempty"`
	OptimizeByArea bool    `json:"optimize_by_area,omitempty"`
	SkipSimulation bool    `json:"skip_simulation,omitempty"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request struct {
		JSONRPC string        `json:"jsonrpc"`
		ID      interface{}   `json:"id"`
		Method  string        `json:"method"`
		Params  []interface{} `json:"params,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, -32700, "Parse error", nil)
		return
	}

	if request.JSONRPC != "2.0" {
		s.respondWithError(w, -32600, "Invalid Request", nil)
		return
	}

	var result interface{}
	var err error

	switch request.Method {
	case "optimization.start":
		result, err = s.rpcStart(request.Params)
	case "optimization.status":
		result, err = s.rpcStatus(request.Params)
	case "optimization.cancel":
		err = s.rpcCancel(request.Params)
	default:
		s.respondWithError(w, -32601, "Method not found", request.ID)
		return
	}

	if err != nil {
		s.respondWithError(w, -32000, err.Error(), request.ID)
		return
	}

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) rpcStart(params []interface{}) (interface{}, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("missing required parameters")
	}
	raw, err := json.Marshal(params[0])
	if err != nil {
		return nil, fmt.Errorf("invalid parameter format, expected object")
	}
	var req startRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("invalid parameter format: %v", err)
	}
	return s.startJob(&req)
}

func (s *Server) rpcStatus(params []interface{}) (interface{}, error) {
	id, err := paramID(params)
	if err != nil {
		return nil, err
	}
	return s.jobStatus(id)
}

func (s *Server) rpcCancel(params []interface{}) error {
	id, err := paramID(params)
	if err != nil {
		return err
	}
	return s.cancelJob(id)
}

func paramID(params []interface{}) (string, error) {
	if len(params) == 0 {
		return "", fmt.Errorf("missing required parameters")
	}
	paramMap, ok := params[0].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("invalid parameter format, expected object")
	}
	id, ok := paramMap["optimization_id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("optimization_id is required")
	}
	return id, nil
}

// startJob validates the request, reserves the target and launches the
// optimization goroutine. A target with a job still in flight is rejected.
func (s *Server) startJob(req *startRequest) (interface{}, error) {
	if req.Element.Symbol == "" {
		return nil, fmt.Errorf("element symbol is required")
	}

	measured, err := loadMeasured(req)
	if err != nil {
		return nil, err
	}

	cfg, err := buildJobConfig(req, s.cfg)
	if err != nil {
		return nil, err
	}

	element := recoil.Element{Symbol: req.Element.Symbol, Isotope: req.Element.Isotope}
	targetName := element.String()

	s.mu.Lock()
	if s.busyTargets[targetName] {
		s.mu.Unlock()
		return nil, optimization.ErrAlreadyRunning
	}
	s.busyTargets[targetName] = true
	s.mu.Unlock()

	mainRecoil := recoil.NewRecoilElement(
		element, recoil.Box6Window(0, recoil.DefaultMaxX).Points(), "red", "main")
	target := simulation.NewElementSimulation(targetName, mainRecoil,
		cfg.ChannelWidth, s.cfg.Optimization.ResultsDir, s.newSimulator())

	measurement := &optimization.StaticMeasurement{
		Spectrum: measured,
		Cut:      req.CutFile,
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	job := &Job{
		ID:          id,
		Target:      targetName,
		Status:      "pending",
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
		cancel:      cancel,
	}

	s.mu.Lock()
	s.jobs[id] = job
	s.mu.Unlock()

	go s.runOptimization(ctx, job, target, measurement, cfg)

	return map[string]interface{}{
		"optimization_id": id,
		"status":          "pending",
	}, nil
}

// runOptimization executes one optimization job to completion.
func (s *Server) runOptimization(ctx context.Context, job *Job,
	target *simulation.ElementSimulation, measurement optimization.MeasurementSource,
	cfg linear.Config) {
	defer func() {
		s.mu.Lock()
		delete(s.busyTargets, job.Target)
		s.mu.Unlock()
	}()

	s.updateJob(job, func(j *Job) { j.Status = "running" })
	activeJobs.Inc()
	defer activeJobs.Dec()
	start := time.Now()

	callbacks := optimization.Callbacks{
		OnProgress: func(msg optimization.Message) {
			s.updateJob(job, func(j *Job) {
				j.State = msg.State
				j.EvaluationsDone = msg.EvaluationsDone
				j.EvaluationsLeft = msg.EvaluationsLeft
			})
		},
		OnError: func(msg optimization.Message) {
			s.updateJob(job, func(j *Job) {
				j.Status = "failed"
				j.State = msg.State
				j.Error = msg.Err.Error()
				now := time.Now()
				j.EndTime = &now
			})
		},
		OnCompleted: func(msg optimization.Message) {
			s.updateJob(job, func(j *Job) {
				j.State = msg.State
				j.EvaluationsDone = msg.EvaluationsDone
				if msg.Cancelled {
					j.Status = "cancelled"
				} else {
					j.Status = "completed"
				}
				now := time.Now()
				j.EndTime = &now
			})
		},
	}

	opt := linear.New(target, measurement, cfg,
		s.logger.WithFields(map[string]interface{}{"optimization_id": job.ID}),
		callbacks)

	err := opt.StartOptimization(ctx)
	jobDuration.Observe(time.Since(start).Seconds())
	// Counted after the run so refinement evaluations, which emit no
	// progress messages, are included.
	evaluationsTotal.Add(float64(opt.Evaluations()))

	s.mu.RLock()
	status := job.Status
	s.mu.RUnlock()
	jobsTotal.WithLabelValues(status).Inc()

	if err != nil {
		s.logger.Error("optimization job finished with error", map[string]interface{}{
			"optimization_id": job.ID,
			"error":           err.Error(),
		})
		return
	}
	s.logger.Info("optimization job finished", map[string]interface{}{
		"optimization_id": job.ID,
		"status":          status,
	})
}

func (s *Server) updateJob(job *Job, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(job)
	job.LastUpdated = time.Now()
}

func (s *Server) jobStatus(id string) (interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, fmt.Errorf("optimization not found")
	}

	response := map[string]interface{}{
		"status":           job.Status,
		"state":            job.State.String(),
		"target":           job.Target,
		"evaluations_done": job.EvaluationsDone,
		"evaluations_left": job.EvaluationsLeft,
		"start_time":       job.StartTime.Format(time.RFC3339),
		"last_update":      job.LastUpdated.Format(time.RFC3339),
	}
	if job.EndTime != nil {
		response["end_time"] = job.EndTime.Format(time.RFC3339)
	}
	if job.Error != "" {
		response["error"] = job.Error
	}
	return response, nil
}

func (s *Server) cancelJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("optimization not found")
	}

	switch job.Status {
	case "completed", "failed", "cancelled":
		return fmt.Errorf("cannot cancel optimization with status: %s", job.Status)
	}

	// Cancellation is cooperative: the optimizer checks between simulator
	// invocations and reports the terminal message itself.
	if job.cancel != nil {
		job.cancel()
	}

	s.logger.Info("optimization cancellation requested", map[string]interface{}{
		"optimization_id": id,
	})
	return nil
}

// loadMeasured materializes the measured spectrum from the request.
func loadMeasured(req *startRequest) (spectrum.Spectrum, error) {
	switch {
	case len(req.Measured) > 0 && req.MeasuredFile != "":
		return nil, fmt.Errorf("measured and measured_file are mutually exclusive")
	case len(req.Measured) > 0:
		s := make(spectrum.Spectrum, len(req.Measured))
		for i, p := range req.Measured {
			s[i] = spectrum.Sample{X: p[0], Y: p[1]}
		}
		return s, nil
	case req.MeasuredFile != "":
		return spectrum.ReadFile(req.MeasuredFile)
	default:
		return nil, fmt.Errorf("measured spectrum is required")
	}
}

// buildJobConfig merges service defaults, the optional YAML parameter file
// and inline request fields, in that order.
func buildJobConfig(req *startRequest, svc *config.Config) (linear.Config, error) {
	cfg := linear.DefaultConfig()
	cfg.ChannelWidth = svc.Optimization.ChannelWidth
	cfg.NumWindows = svc.Optimization.NumWindows
	cfg.NumberOfProcesses = svc.Simulator.Processes
	cfg.RecoilType = "two-peak"

	if req.ParamsFile != "" {
		params, err := config.LoadJobParams(req.ParamsFile)
		if err != nil {
			return cfg, err
		}
		if params.Type == "fluence" {
			cfg.Type = optimization.TypeFluence
		}
		if params.RecoilType != "" {
			cfg.RecoilType = params.RecoilType
		}
		if params.SolSize != 0 {
			cfg.SolSize = params.SolSize
		}
		if params.ChannelWidth != 0 {
			cfg.ChannelWidth = params.ChannelWidth
		}
		if params.Processes != 0 {
			cfg.NumberOfProcesses = params.Processes
		}
		if params.NumWindows != 0 {
			cfg.NumWindows = params.NumWindows
		}
		cfg.UpperLimits = params.UpperLimits
		cfg.LowerLimits = params.LowerLimits
		cfg.SkipSimulation = params.SkipSimulation
		cfg.OptimizeByArea = params.OptimizeByArea
		cfg.Verbose = params.Verbose
	}

	if req.RecoilType != "" {
		cfg.RecoilType = req.RecoilType
	}
	if req.SolSize != 0 {
		cfg.SolSize = req.SolSize
	}
	if req.ChannelWidth != 0 {
		cfg.ChannelWidth = req.ChannelWidth
	}
	if req.OptimizeByArea {
		cfg.OptimizeByArea = true
	}
	if req.SkipSimulation {
		cfg.SkipSimulation = true
	}
	return cfg, nil
}

// respondWithError sends a JSON-RPC 2.0 error response.
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Error("Request error", map[string]interface{}{
		"status":  code,
		"message": message,
	})

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// Close cancels all running optimizations.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.jobs {
		if job.cancel != nil {
			job.cancel()
		}
	}
	return nil
}

// handleOptimize handles POST /api/v1/optimize.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	result, err := s.startJob(&req)

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(result)
}

// handleStatus handles GET /api/v1/status/{id}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Missing optimization ID", http.StatusBadRequest)
		return
	}

	result, err := s.jobStatus(id)

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// handleCancel handles DELETE /api/v1/optimization/{id}.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Missing optimization ID", http.StatusBadRequest)
		return
	}

	err := s.cancelJob(id)

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "cancellation requested",
	})
}
