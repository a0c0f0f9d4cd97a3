// Package cli wires the coursekit commands: test (run, list or resume
// course exercises) and check (validate a course definition's slugs).
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// DefaultBackendURL is where course metadata is fetched from unless
// --backend overrides it.
const DefaultBackendURL = "https://backend.coursekit.dev"

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Course  string
	DB      string
	Target  string
	Backend string
	Verbose bool

	logger   zerolog.Logger
	closeLog func()
}

// NewRootCommand creates the coursekit root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "coursekit",
		Short:         "Run and validate course exercises",
		Long:          "coursekit runs a course's exercise tests against your working copy,\nremembers each test's outcome between runs, and validates course\ndefinitions.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, closeLog, err := setupLogging(opts.Verbose)
			if err != nil {
				return WrapExitError(ExitCommandError, "logging setup failed", err)
			}
			opts.logger = logger
			opts.closeLog = closeLog
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.closeLog != nil {
				opts.closeLog()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Course, "course", "./course.json", "path to the course definition")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "./db", "path to the local test database")
	cmd.PersistentFlags().StringVar(&opts.Target, "target", ".", "working directory test commands run in")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", DefaultBackendURL, "course backend base URL")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))

	return cmd
}
