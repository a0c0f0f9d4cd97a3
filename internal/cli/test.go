package cli

import (
	"github.com/spf13/cobra"

	"github.com/coursekit/coursekit/internal/course"
	"github.com/coursekit/coursekit/internal/runner"
	"github.com/coursekit/coursekit/internal/session"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	List      bool
	Staggered bool
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test [name]",
		Short: "Run course exercise tests",
		Long: `Run the course's exercise tests in order and record each outcome.

With no arguments every known test runs. A name argument restricts the
run to the tests under that slash-separated path (leaf first, e.g.
"my-test/my-suite"). --staggered resumes from the persisted cursor,
running one more test than the last verified run. --list prints the
known tests and their last outcomes without running anything.

Exit codes:
  0 - all mandatory tests passed
  1 - a mandatory test failed
  2 - command error (unreadable course file, store failure, ...)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			if name != "" && (opts.List || opts.Staggered) {
				return NewExitError(ExitCommandError, "a test name cannot be combined with --list or --staggered")
			}
			return runTest(cmd, opts, name)
		},
	}

	cmd.Flags().BoolVar(&opts.List, "list", false, "list known tests instead of running them")
	cmd.Flags().BoolVar(&opts.Staggered, "staggered", false, "resume from the persisted cursor")
	cmd.MarkFlagsMutuallyExclusive("list", "staggered")

	return cmd
}

func runTest(cmd *cobra.Command, opts *TestOptions, name string) error {
	ctx := cmd.Context()

	s, err := session.Open(ctx, session.Config{
		DBPath:     opts.DB,
		CoursePath: opts.Course,
		Target:     opts.Target,
		Out:        cmd.OutOrStdout(),
		Fetcher:    course.NewBackendClient(opts.Backend),
		Logger:     opts.logger,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot open course session", err)
	}
	defer s.Close()

	if opts.List {
		if err := s.List(ctx, cmd.OutOrStdout()); err != nil {
			return WrapExitError(ExitCommandError, "cannot list tests", err)
		}
		return nil
	}

	s.Greet()

	var r *runner.Runner
	if opts.Staggered {
		r, err = s.StaggeredRunner(ctx)
	} else {
		r, err = s.Runner(ctx, name)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot prepare run", err)
	}

	r.Run(ctx)

	if r.Failed() {
		return NewExitError(ExitFailure, r.FailureReason())
	}
	return nil
}
