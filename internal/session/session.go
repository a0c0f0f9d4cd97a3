// Package session ties an invocation together: it opens the store,
// reconciles the registry against the course file when it changed, and
// hands out configured runners, the validator and the lister.
package session

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/coursekit/coursekit/internal/course"
	"github.com/coursekit/coursekit/internal/lister"
	"github.com/coursekit/coursekit/internal/runner"
	"github.com/coursekit/coursekit/internal/store"
	"github.com/coursekit/coursekit/internal/stream"
)

// Config for opening a session. DBPath, CoursePath and Target are
// required; Fetcher is required because reconciliation may need metadata.
type Config struct {
	DBPath     string
	CoursePath string
	// Target is the working directory test commands run in. Provisioning
	// and teardown of that directory belong to the caller.
	Target  string
	Out     io.Writer
	Fetcher course.MetadataFetcher
	Logger  zerolog.Logger
}

// Session is one CLI invocation's view of a course: the parsed
// definition plus its reconciled registry.
type Session struct {
	def *course.Definition
	st  *store.Store
	reg *store.Registry
	cfg Config
	log zerolog.Logger
}

// Open loads the course, opens the store and reconciles if the course
// file changed since the last invocation. Reconciliation preserves the
// stored outcome of every test whose identity survives the change.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}

	def, err := course.Load(cfg.CoursePath)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	reg := store.NewRegistry(st.Tree(cfg.CoursePath))

	stale, err := reg.ShouldReconcile(ctx, cfg.CoursePath)
	if err != nil {
		st.Close()
		return nil, err
	}
	if stale {
		cfg.Logger.Debug().Str("course", cfg.CoursePath).Msg("course changed, reconciling registry")

		md, err := cfg.Fetcher.FetchMetadata(ctx, def.Repo)
		if err != nil {
			st.Close()
			return nil, err
		}
		if err := reg.Reconcile(ctx, def.TestPlan(), md); err != nil {
			st.Close()
			return nil, err
		}
	}

	return &Session{def: def, st: st, reg: reg, cfg: cfg, log: cfg.Logger}, nil
}

// Close releases the store.
func (s *Session) Close() error {
	return s.st.Close()
}

// Greet prints the course banner.
func (s *Session) Greet() {
	fmt.Fprintf(s.cfg.Out, "\n%s by %s\n", s.def.Name, s.def.Author.Name)
}

// Runner builds a runner over all tests, or over the tests matching a
// slash-separated name path when one is given. On a full pass the resume
// cursor jumps to the subset size; on a failure it lands just past the
// failing test.
func (s *Session) Runner(ctx context.Context, namePath string) (*runner.Runner, error) {
	var (
		tests []store.KeyedRecord
		err   error
	)
	if namePath == "" {
		tests, err = s.reg.FetchAll(ctx)
	} else {
		tests, err = s.reg.FetchMatching(ctx, course.MatchPrefix(namePath))
	}
	if err != nil {
		return nil, err
	}

	total := len(tests)
	return s.buildRunner(ctx, tests, runner.Hooks{
		OnPass: func() { s.writeCursor(ctx, total) },
		OnFail: func(index int) { s.writeCursor(ctx, index+1) },
	})
}

// StaggeredRunner builds a runner over the resumable prefix of the test
// index: the first N tests, where N is the persisted cursor. Each full
// pass grows the window by one test.
func (s *Session) StaggeredRunner(ctx context.Context) (*runner.Runner, error) {
	cursor, err := s.reg.ResumeCursor(ctx)
	if err != nil {
		return nil, err
	}

	tests, err := s.reg.FetchWindow(ctx, cursor)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(s.cfg.Out, "\nRunning in staggered mode: one new test per verified run")

	return s.buildRunner(ctx, tests, runner.Hooks{
		OnPass: func() { s.writeCursor(ctx, cursor+1) },
		OnFail: func(index int) { s.writeCursor(ctx, index+1) },
	})
}

// List renders the registry contents.
func (s *Session) List(ctx context.Context, w io.Writer) error {
	tests, err := s.reg.FetchAll(ctx)
	if err != nil {
		return err
	}
	return lister.Render(w, tests)
}

func (s *Session) buildRunner(ctx context.Context, tests []store.KeyedRecord, hooks runner.Hooks) (*runner.Runner, error) {
	return runner.New(runner.Config{
		Target:   s.cfg.Target,
		Registry: s.reg,
		Reporter: s.dialReporter(ctx),
		Tests:    tests,
		Out:      s.cfg.Out,
		Hooks:    hooks,
		Logger:   s.log,
	})
}

// dialReporter connects the result stream. The stream is advisory, so a
// collector that cannot be reached degrades to the no-op reporter with a
// warning instead of blocking the run.
func (s *Session) dialReporter(ctx context.Context) stream.Reporter {
	md, err := s.reg.Metadata(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("no cached course metadata; results will not be streamed")
		return stream.Nop{}
	}

	client, err := stream.Dial(md.WSURL, md.LogstreamID)
	if err != nil {
		s.log.Warn().Err(err).Msg("collector unreachable; results will not be streamed")
		return stream.Nop{}
	}
	return client
}

// writeCursor persists the resume cursor from an exit hook. Hook failures
// are logged, not propagated: the run has already concluded.
func (s *Session) writeCursor(ctx context.Context, n int) {
	if err := s.reg.SetResumeCursor(ctx, n); err != nil {
		s.log.Warn().Err(err).Int("cursor", n).Msg("failed to persist resume cursor")
	}
}
