package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/config"
	"github.com/xkilldash9x/shelfcheck/internal/orchestrator"
	"github.com/xkilldash9x/shelfcheck/internal/reporting"
	"github.com/xkilldash9x/shelfcheck/internal/results"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodyBytes caps the run configuration payload.
const maxBodyBytes = 1 << 20

// RunResponse is the condensed outcome of a run returned to HTTP clients.
type RunResponse struct {
	Passed      bool `json:"passed"`
	TotalTests  int  `json:"totalTests"`
	PassedTests int  `json:"passedTests"`
	FailedTests int  `json:"failedTests"`
	// SuccessRate is a percentage rounded to one decimal.
	SuccessRate     float64          `json:"successRate"`
	Duration        int64            `json:"duration"`
	CriticalIssues  int              `json:"criticalIssues"`
	Warnings        int              `json:"warnings"`
	Recommendations []string         `json:"recommendations"`
	Reports         *reporting.Paths `json:"reports,omitempty"`
}

func newRunResponse(report *results.RunReport, paths *reporting.Paths) RunResponse {
	recs := report.Summary.Recommendations
	if recs == nil {
		recs = []string{}
	}
	return RunResponse{
		Passed:          report.Passed(),
		TotalTests:      report.TotalTests,
		PassedTests:     report.PassedTests,
		FailedTests:     report.FailedTests,
		SuccessRate:     math.Round(report.SuccessRate()*1000) / 10,
		Duration:        report.Duration,
		CriticalIssues:  report.Summary.CriticalIssues,
		Warnings:        report.Summary.Warnings,
		Recommendations: recs,
		Reports:         paths,
	}
}

func (s *Server) handleRunRequest(w http.ResponseWriter, r *http.Request) {
	if !s.busy.CompareAndSwap(false, true) {
		s.respondWithError(w, http.StatusConflict, orchestrator.ErrBusy.Error())
		return
	}
	defer s.busy.Store(false)

	var run config.TestConfiguration
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&run); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	dir, err := s.reportDir(run.OutputDir)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	run.ApplyDefaults()
	run.OutputDir = dir
	if err := run.Normalize(); err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	report, err := s.runner.Run(ctx, run)
	if err != nil {
		code := statusFor(err)
		if code >= http.StatusInternalServerError {
			s.logger.Error("Run failed.", zap.Error(err), zap.Int("status", code))
		}
		s.respondWithError(w, code, err.Error())
		return
	}

	var paths *reporting.Paths
	if run.GenerateReport {
		p, err := reporting.WriteFiles(run.OutputDir, report)
		if err != nil {
			s.logger.Error("Failed to write reports.", zap.Error(err))
			s.respondWithError(w, http.StatusInternalServerError, "Could not write reports")
			return
		}
		paths = &p
	}

	s.respondWithJSON(w, http.StatusOK, newRunResponse(report, paths))
}

// reportDir resolves a requested report directory beneath the server's
// output root. Absolute paths and paths that climb out of it are rejected.
func (s *Server) reportDir(requested string) (string, error) {
	root := s.cfg.OutputDir
	if root == "" {
		root = config.DefaultOutputDir
	}
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return root, nil
	}
	if !filepath.IsLocal(requested) {
		return "", fmt.Errorf("%w: outputDir %q must be a relative path inside the report directory", config.ErrInvalid, requested)
	}
	return filepath.Join(root, requested), nil
}

// statusFor maps run errors onto HTTP status codes.
func statusFor(err error) int {
	var setupErr *orchestrator.SetupError
	switch {
	case errors.Is(err, config.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrBusy):
		return http.StatusConflict
	case errors.As(err, &setupErr):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	s.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"busy":   s.busy.Load(),
	})
}

// --- Helper Functions ---

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("Failed to encode response.", zap.Error(err))
		code = http.StatusInternalServerError
		response = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		s.logger.Debug("Failed to write response.", zap.Error(err))
	}
}
