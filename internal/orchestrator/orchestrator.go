// File: internal/orchestrator/orchestrator.go
// Description: Drives one QA run from browser setup through the per-URL checks
// to the summarized report and teardown. It is injected with a browser driver,
// so tests run it against an in-memory one.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/shelfcheck/internal/browser"
	"github.com/xkilldash9x/shelfcheck/internal/checker"
	"github.com/xkilldash9x/shelfcheck/internal/config"
	"github.com/xkilldash9x/shelfcheck/internal/observability"
	"github.com/xkilldash9x/shelfcheck/internal/results"
)

// teardownTimeout bounds closing the browser once a run is over.
const teardownTimeout = 30 * time.Second

// ErrBusy is returned when Run is called while another run is in progress.
var ErrBusy = errors.New("a run is already in progress")

// SetupError means the browser or its browsing context could not be
// acquired. No checks ran.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string { return fmt.Sprintf("browser setup failed: %v", e.Err) }

func (e *SetupError) Unwrap() error { return e.Err }

// CheckError means a check kept failing past its retry budget. The run was
// aborted and produced no report.
type CheckError struct {
	Kind string
	URL  string
	Err  error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("%s check for %s failed: %v", e.Kind, e.URL, e.Err)
}

func (e *CheckError) Unwrap() error { return e.Err }

// State is the lifecycle position of the current or last run.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateRunning
	StateReported
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateReported:
		return "reported"
	case StateTornDown:
		return "torn_down"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Orchestrator executes runs one at a time against a single browser driver.
type Orchestrator struct {
	driver browser.Driver
	logger *zap.Logger

	running sync.Mutex
	state   atomic.Int32
}

// New creates an Orchestrator.
func New(driver browser.Driver, logger *zap.Logger) (*Orchestrator, error) {
	if driver == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	return &Orchestrator{driver: driver, logger: logger.Named("orchestrator")}, nil
}

// State reports where the current or last run is in its lifecycle.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
}

// Run validates the configuration, acquires the browser, checks every URL
// and returns the summarized report. Configuration problems wrap
// config.ErrInvalid; setup failures are a *SetupError and retry exhaustion a
// *CheckError. The browser is always closed before Run returns.
func (o *Orchestrator) Run(ctx context.Context, run config.TestConfiguration) (*results.RunReport, error) {
	if !o.running.TryLock() {
		return nil, ErrBusy
	}
	defer o.running.Unlock()

	if err := run.Validate(); err != nil {
		observability.RecordRun(observability.RunInvalidConfig)
		return nil, err
	}

	logger := o.logger.With(zap.String("run_id", uuid.NewString()))
	o.setState(StateUninitialized)
	start := time.Now()

	logger.Info("Starting run.",
		zap.String("base_url", run.BaseURL),
		zap.Int("urls", len(run.ProductURLs)),
		zap.Int("retries", run.Retries),
	)
	if err := o.driver.Start(ctx, browser.OptionsFromRun(run)); err != nil {
		observability.RecordRun(observability.RunSetupFailed)
		logger.Error("Browser setup failed.", zap.Error(err))
		return nil, &SetupError{Err: err}
	}
	o.setState(StateReady)
	defer o.teardown(ctx, logger)

	o.setState(StateRunning)
	ex := newExecution(o.driver, run, logger)
	if err := ex.checkAll(ctx); err != nil {
		observability.RecordRun(observability.RunAborted)
		logger.Error("Run aborted.", zap.Error(err))
		return nil, err
	}

	report := &results.RunReport{
		Timestamp:   start.UTC(),
		BaseURL:     run.BaseURL,
		TotalTests:  ex.total,
		PassedTests: ex.passed,
		FailedTests: ex.total - ex.passed,
		Duration:    time.Since(start).Milliseconds(),
		Results:     ex.results,
		Summary:     results.Summarize(ex.results),
	}
	o.setState(StateReported)

	outcome := observability.RunBelowThreshold
	if report.Passed() {
		outcome = observability.RunPassed
	}
	observability.RecordRun(outcome)
	logger.Info("Run complete.",
		zap.Int("total", report.TotalTests),
		zap.Int("passed", report.PassedTests),
		zap.Int("failed", report.FailedTests),
		zap.Int64("duration_ms", report.Duration),
		zap.Int("critical_issues", report.Summary.CriticalIssues),
		zap.Int("warnings", report.Summary.Warnings),
	)
	return report, nil
}

// teardown closes the browser. A failure is logged and counted but leaves
// any computed report untouched.
func (o *Orchestrator) teardown(ctx context.Context, logger *zap.Logger) {
	closeCtx, cancel := context.WithTimeout(browser.Detach(ctx), teardownTimeout)
	defer cancel()
	if err := o.driver.Close(closeCtx); err != nil {
		observability.RecordTeardownFailure()
		logger.Warn("Browser teardown failed.", zap.Error(err))
	}
	o.setState(StateTornDown)
}

// execution is the mutable state of one run's check loop.
type execution struct {
	run     config.TestConfiguration
	logger  *zap.Logger
	limiter *rate.Limiter

	product *checker.ProductPageChecker
	images  *checker.ImageChecker
	errors  *checker.ErrorObserver

	results results.Results
	total   int
	passed  int
}

func newExecution(driver browser.Driver, run config.TestConfiguration, logger *zap.Logger) *execution {
	settings := checker.SettingsFromRun(run)
	ex := &execution{
		run:     run,
		logger:  logger,
		product: checker.NewProductPageChecker(driver, logger),
		images:  checker.NewImageChecker(driver, settings, logger),
		errors:  checker.NewErrorObserver(driver, settings, logger),
		results: results.Results{
			ProductPages: []results.ProductPageResult{},
			Images:       []results.ImageResult{},
			Errors:       []results.ErrorResult{},
		},
	}
	if run.PageInterval > 0 {
		ex.limiter = rate.NewLimiter(rate.Every(run.PageInterval), 1)
	}
	return ex
}

// checkAll visits the URLs in order, running the three checks for each in
// a fixed order. Only one page is open at any time.
func (ex *execution) checkAll(ctx context.Context) error {
	for i, url := range ex.run.ProductURLs {
		ex.logger.Info("Checking page.", zap.Int("index", i+1), zap.Int("of", len(ex.run.ProductURLs)), zap.String("url", url))

		pr, err := runCheck(ctx, ex, checker.KindProductPage, url, ex.product.Check)
		if err != nil {
			return err
		}
		ex.results.ProductPages = append(ex.results.ProductPages, pr)
		ex.record(checker.KindProductPage, url, pr.Success)

		ir, err := runCheck(ctx, ex, checker.KindImages, url, ex.images.Check)
		if err != nil {
			return err
		}
		ex.results.Images = append(ex.results.Images, ir)
		ex.record(checker.KindImages, url, ir.Success)

		er, err := runCheck(ctx, ex, checker.KindErrors, url, ex.errors.Check)
		if err != nil {
			return err
		}
		ex.results.Errors = append(ex.results.Errors, er)
		ex.record(checker.KindErrors, url, er.Success)
	}
	return nil
}

func (ex *execution) record(kind, url string, passed bool) {
	ex.total++
	if passed {
		ex.passed++
	}
	observability.RecordCheck(kind, passed)
	ex.logger.Debug("Check finished.", zap.String("kind", kind), zap.String("url", url), zap.Bool("passed", passed))
}

// pace blocks until the next page visit is allowed.
func (ex *execution) pace(ctx context.Context) error {
	if ex.limiter == nil {
		return nil
	}
	return ex.limiter.Wait(ctx)
}

// runCheck runs one check under the configured retry policy.
func runCheck[T any](ctx context.Context, ex *execution, kind, url string, check func(context.Context, string) (T, error)) (T, error) {
	policy := checker.RetryPolicy{
		MaxAttempts: ex.run.Retries,
		BaseDelay:   ex.run.RetryDelay,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			observability.RecordRetry(kind)
			ex.logger.Warn("Check attempt failed, retrying.",
				zap.String("kind", kind),
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		},
	}
	result, err := checker.WithRetry(ctx, policy, func(ctx context.Context) (T, error) {
		if err := ex.pace(ctx); err != nil {
			var zero T
			return zero, err
		}
		return check(ctx, url)
	})
	if err != nil {
		if ctx.Err() != nil {
			return result, fmt.Errorf("run canceled during %s check for %s: %w", kind, url, ctx.Err())
		}
		return result, &CheckError{Kind: kind, URL: url, Err: err}
	}
	return result, nil
}
