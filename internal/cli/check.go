package cli

import (
	"github.com/spf13/cobra"

	"github.com/coursekit/coursekit/internal/course"
	"github.com/coursekit/coursekit/internal/validate"
)

// NewCheckCommand creates the check command. Checking walks the course
// tree and recomputes every declared slug; it never opens the test
// database.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a course definition's slugs",
		Long: `Walk the course definition and compare each declared slug against the
identity hash recomputed from its name path. The first mismatch stops
the walk and is reported with the expected value.

Exit codes:
  0 - every slug matches
  1 - a slug mismatch was found
  2 - command error (unreadable or malformed course file)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := course.Load(rootOpts.Course)
			if err != nil {
				return WrapExitError(ExitCommandError, "cannot load course", err)
			}

			v := validate.New(def, cmd.OutOrStdout())
			v.Run()

			if err := v.Err(); err != nil {
				return WrapExitError(ExitFailure, "course format is invalid", err)
			}
			return nil
		},
	}

	return cmd
}
