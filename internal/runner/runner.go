// Package runner drives sequential test execution as an explicit state
// machine: Loaded -> NewTest(i) -> ... -> Pass|Fail -> Finish. The first
// failing mandatory test halts the run; optional failures accumulate
// against the score without halting.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coursekit/coursekit/internal/store"
	"github.com/coursekit/coursekit/internal/stream"
)

// Hooks are caller-supplied exit callbacks. They are side-effect-only and
// never influence control flow. OnFinish runs exactly once per run,
// whichever terminal state is reached; it is the integration point for
// workspace teardown.
type Hooks struct {
	OnPass   func()
	OnFail   func(index int)
	OnFinish func()
}

// Config carries everything a runner needs. Target and Registry are
// required; the rest default to inert implementations.
type Config struct {
	// Target is the working directory test commands run in.
	Target string
	// Registry records each outcome durably.
	Registry *store.Registry
	// Reporter forwards outcomes to the collector. Defaults to stream.Nop.
	Reporter stream.Reporter
	// Tests is the ordered subset to execute.
	Tests []store.KeyedRecord
	// Out receives learner-facing run output. Defaults to io.Discard.
	Out io.Writer
	// Hooks are the exit callbacks.
	Hooks Hooks
	// Logger receives diagnostics. Defaults to a disabled logger.
	Logger zerolog.Logger
}

// state is the tagged union of runner states. One struct per variant; the
// step function switches exhaustively.
type state interface{ runnerState() }

type stateLoaded struct{}
type stateNewTest struct{ index int }
type statePass struct{}
type stateFail struct {
	index  int
	reason string
}
type stateFinish struct{}

func (stateLoaded) runnerState()  {}
func (stateNewTest) runnerState() {}
func (statePass) runnerState()    {}
func (stateFail) runnerState()    {}
func (stateFinish) runnerState()  {}

// Runner executes an ordered test subset. The zero value is unusable;
// construct with New.
type Runner struct {
	cfg     Config
	runID   string
	log     zerolog.Logger
	state   state
	success int

	failed     bool
	failIndex  int
	failReason string
	streamErrs []error
}

// New validates the configuration and returns a runner in the Loaded
// state.
func New(cfg Config) (*Runner, error) {
	if cfg.Target == "" {
		return nil, errors.New("runner: target directory is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("runner: registry is required")
	}
	if cfg.Reporter == nil {
		cfg.Reporter = stream.Nop{}
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.Hooks.OnPass == nil {
		cfg.Hooks.OnPass = func() {}
	}
	if cfg.Hooks.OnFail == nil {
		cfg.Hooks.OnFail = func(int) {}
	}
	if cfg.Hooks.OnFinish == nil {
		cfg.Hooks.OnFinish = func() {}
	}

	runID := uuid.Must(uuid.NewV7()).String()
	return &Runner{
		cfg:   cfg,
		runID: runID,
		log:   cfg.Logger.With().Str("run_id", runID).Logger(),
		state: stateLoaded{},
	}, nil
}

// Run steps the machine until it reaches Finish.
func (r *Runner) Run(ctx context.Context) {
	for !r.Finished() {
		r.Step(ctx)
	}
}

// Finished reports whether the terminal state has been reached.
func (r *Runner) Finished() bool {
	_, ok := r.state.(stateFinish)
	return ok
}

// Failed reports whether the run ended in the Fail state. Only meaningful
// once Finished.
func (r *Runner) Failed() bool { return r.failed }

// FailureReason returns the reason recorded by the Fail state.
func (r *Runner) FailureReason() string { return r.failReason }

// FailIndex returns the index of the halting test. Only meaningful when
// Failed.
func (r *Runner) FailIndex() int { return r.failIndex }

// StreamErrors returns transport failures collected during the run. They
// never change the run's outcome.
func (r *Runner) StreamErrors() []error { return r.streamErrs }

// Step advances the machine by one transition.
func (r *Runner) Step(ctx context.Context) {
	switch s := r.state.(type) {
	case stateLoaded:
		r.state = r.stepLoaded()
	case stateNewTest:
		r.state = r.stepNewTest(ctx, s.index)
	case statePass:
		r.state = r.stepPass()
	case stateFail:
		r.state = r.stepFail(s)
	case stateFinish:
		// Terminal; stepping again is a no-op.
	default:
		panic(fmt.Sprintf("runner: unknown state %T", s))
	}
}

func (r *Runner) stepLoaded() state {
	fmt.Fprintf(r.cfg.Out, "\nYou have %d exercises left\n", len(r.cfg.Tests))

	if len(r.cfg.Tests) == 0 {
		return stateFail{index: 0, reason: "no tests found"}
	}
	return stateNewTest{index: 0}
}

func (r *Runner) stepNewTest(ctx context.Context, index int) state {
	test := r.cfg.Tests[index]
	fmt.Fprintln(r.cfg.Out, test.Record.Header())

	outcome := runCommand(ctx, r.log, test.Record.Cmd, r.cfg.Target)

	if err := r.cfg.Registry.RecordOutcome(ctx, test.Key, outcome.Passed); err != nil {
		r.log.Error().Err(err).Str("test", test.Record.Name).Msg("recording outcome failed")
		return stateFail{index: index, reason: fmt.Sprintf("failed to update test %s: %v", test.Record.Name, err)}
	}

	r.report(stream.TestReport{
		Slug:     test.Record.Slug,
		Output:   outcome.Output,
		Passed:   outcome.Passed,
		Optional: test.Record.Optional,
	})

	if outcome.Passed {
		fmt.Fprintf(r.cfg.Out, "%s\n%s\n", outcome.Output, test.Record.MessageOnSuccess)
		r.success++
		return r.advance(index)
	}

	fmt.Fprintf(r.cfg.Out, "%s\n%s\n", outcome.Output, test.Record.MessageOnFail)
	if !test.Record.Optional {
		return stateFail{index: index, reason: fmt.Sprintf("test %d:%s failed", index, test.Record.Name)}
	}
	return r.advance(index)
}

func (r *Runner) advance(index int) state {
	if index+1 < len(r.cfg.Tests) {
		return stateNewTest{index: index + 1}
	}
	return statePass{}
}

func (r *Runner) stepPass() state {
	score := float64(r.success) / float64(len(r.cfg.Tests)) * 100
	fmt.Fprintf(r.cfg.Out, "\nfinal score: %.2f%%\n", score)

	r.cfg.Hooks.OnPass()
	r.cfg.Hooks.OnFinish()
	r.finishStream(true)
	return stateFinish{}
}

func (r *Runner) stepFail(s stateFail) state {
	fmt.Fprintf(r.cfg.Out, "\nError: %s\n", s.reason)

	r.failed = true
	r.failIndex = s.index
	r.failReason = s.reason

	r.cfg.Hooks.OnFail(s.index)
	r.cfg.Hooks.OnFinish()
	r.finishStream(false)
	return stateFinish{}
}

// report forwards one outcome. Transport failures degrade to a warning:
// the store has already recorded the outcome, and the stream is advisory.
func (r *Runner) report(report stream.TestReport) {
	if err := r.cfg.Reporter.ReportTest(report); err != nil {
		r.streamErrs = append(r.streamErrs, err)
		r.log.Warn().Err(err).Str("slug", report.Slug).Msg("failed to stream test result")
	}
}

// finishStream sends the terminal status and disconnect frames. Failures
// here are surfaced after the run has already concluded locally.
func (r *Runner) finishStream(success bool) {
	if err := r.cfg.Reporter.ReportStatus(success); err != nil {
		r.streamErrs = append(r.streamErrs, err)
		fmt.Fprintln(r.cfg.Out, "warning: failed to send final status to the collector")
	}
	if err := r.cfg.Reporter.Disconnect(); err != nil {
		r.streamErrs = append(r.streamErrs, err)
		fmt.Fprintln(r.cfg.Out, "warning: failed to close the collector stream")
	}
}
