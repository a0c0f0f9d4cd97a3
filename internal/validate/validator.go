// Package validate checks that a course definition's declared slugs match
// the identity hashes recomputed from its name paths. It walks the tree
// depth-first as an explicit state machine and halts at the first
// mismatch, so a renamed ancestor is reported at its first affected
// descendant rather than silently passing deeper nodes. The validator
// never touches the registry.
package validate

import (
	"fmt"
	"io"
	"strings"

	"github.com/coursekit/coursekit/internal/course"
)

// MismatchError carries the expected and declared slug of the failing
// node. It is an expected outcome, not a bug: it is what the check
// command exists to find.
type MismatchError struct {
	Node     string
	Declared string
	Expected string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("invalid slug for %s: %q, expected %q", e.Node, e.Declared, e.Expected)
}

type state interface{ validatorState() }

type stateLoaded struct{}
type stateCourse struct{}
type stateStage struct{ stage int }
type stateLesson struct{ stage, lesson int }
type stateSuite struct{ stage, lesson, suite int }
type stateTest struct{ stage, lesson, suite, test int }
type statePass struct{}
type stateFail struct{ err *MismatchError }
type stateFinish struct{}

func (stateLoaded) validatorState() {}
func (stateCourse) validatorState() {}
func (stateStage) validatorState()  {}
func (stateLesson) validatorState() {}
func (stateSuite) validatorState()  {}
func (stateTest) validatorState()   {}
func (statePass) validatorState()   {}
func (stateFail) validatorState()   {}
func (stateFinish) validatorState() {}

// Validator walks one course definition.
type Validator struct {
	def   *course.Definition
	out   io.Writer
	state state
	err   *MismatchError
}

// New returns a validator in the Loaded state. Output lines go to out;
// pass io.Discard to validate silently.
func New(def *course.Definition, out io.Writer) *Validator {
	if out == nil {
		out = io.Discard
	}
	return &Validator{def: def, out: out, state: stateLoaded{}}
}

// Run steps until Finish.
func (v *Validator) Run() {
	for !v.Finished() {
		v.Step()
	}
}

// Finished reports whether the terminal state has been reached.
func (v *Validator) Finished() bool {
	_, ok := v.state.(stateFinish)
	return ok
}

// Err returns the mismatch that halted validation, or nil after a clean
// pass. Only meaningful once Finished.
func (v *Validator) Err() error {
	if v.err == nil {
		return nil
	}
	return v.err
}

// Step advances the walk by one node.
func (v *Validator) Step() {
	switch s := v.state.(type) {
	case stateLoaded:
		fmt.Fprintln(v.out, "Validating course format")
		v.state = stateCourse{}
	case stateCourse:
		v.state = v.checkCourse()
	case stateStage:
		v.state = v.checkStage(s)
	case stateLesson:
		v.state = v.checkLesson(s)
	case stateSuite:
		v.state = v.checkSuite(s)
	case stateTest:
		v.state = v.checkTest(s)
	case statePass:
		fmt.Fprintln(v.out, "\nCourse format is valid")
		v.state = stateFinish{}
	case stateFail:
		v.err = s.err
		fmt.Fprintf(v.out, "\nError: %s\n", s.err)
		v.state = stateFinish{}
	case stateFinish:
		// Terminal.
	default:
		panic(fmt.Sprintf("validate: unknown state %T", s))
	}
}

func (v *Validator) checkCourse() state {
	if next, ok := v.checkNode(0, "course "+v.def.Name, v.def.Slug, v.def.Name); !ok {
		return next
	}
	return stateStage{stage: 0}
}

func (v *Validator) checkStage(s stateStage) state {
	stage := v.def.Stages[s.stage]
	if next, ok := v.checkNode(1, "stage "+stage.Name, stage.Slug, v.def.Name, stage.Name); !ok {
		return next
	}
	return stateLesson{stage: s.stage, lesson: 0}
}

func (v *Validator) checkLesson(s stateLesson) state {
	stage := v.def.Stages[s.stage]
	lesson := stage.Lessons[s.lesson]
	if next, ok := v.checkNode(2, "lesson "+lesson.Name, lesson.Slug, v.def.Name, stage.Name, lesson.Name); !ok {
		return next
	}
	if len(lesson.Suites) > 0 {
		return stateSuite{stage: s.stage, lesson: s.lesson, suite: 0}
	}
	return v.nextAfterLesson(s.stage, s.lesson)
}

func (v *Validator) checkSuite(s stateSuite) state {
	stage := v.def.Stages[s.stage]
	lesson := stage.Lessons[s.lesson]
	suite := lesson.Suites[s.suite]
	if next, ok := v.checkNode(3, "suite "+suite.Name, suite.Slug, v.def.Name, stage.Name, lesson.Name, suite.Name); !ok {
		return next
	}
	return stateTest{stage: s.stage, lesson: s.lesson, suite: s.suite, test: 0}
}

func (v *Validator) checkTest(s stateTest) state {
	stage := v.def.Stages[s.stage]
	lesson := stage.Lessons[s.lesson]
	suite := lesson.Suites[s.suite]
	test := suite.Tests[s.test]
	if next, ok := v.checkNode(4, "test "+test.Name, test.Slug,
		v.def.Name, stage.Name, lesson.Name, suite.Name, test.Name); !ok {
		return next
	}

	switch {
	case s.test+1 < len(suite.Tests):
		return stateTest{stage: s.stage, lesson: s.lesson, suite: s.suite, test: s.test + 1}
	case s.suite+1 < len(lesson.Suites):
		return stateSuite{stage: s.stage, lesson: s.lesson, suite: s.suite + 1}
	default:
		return v.nextAfterLesson(s.stage, s.lesson)
	}
}

// nextAfterLesson resumes at the next sibling lesson, the next stage, or
// the terminal Pass once the whole tree has been visited.
func (v *Validator) nextAfterLesson(stage, lesson int) state {
	switch {
	case lesson+1 < len(v.def.Stages[stage].Lessons):
		return stateLesson{stage: stage, lesson: lesson + 1}
	case stage+1 < len(v.def.Stages):
		return stateStage{stage: stage + 1}
	default:
		return statePass{}
	}
}

// checkNode recomputes the slug for one node and either reports it valid
// or transitions to Fail. The bool is false when the returned state must
// replace the current one.
func (v *Validator) checkNode(depth int, node, declared string, names ...string) (state, bool) {
	expected := course.SlugFor(names...)
	name := names[len(names)-1]
	indent := strings.Repeat("  ", depth)
	prefix := ""
	if depth > 0 {
		prefix = "╰─"
	}

	if declared != expected {
		fmt.Fprintf(v.out, "%s%s%s: %s MISMATCH\n", indent, prefix, name, declared)
		return stateFail{err: &MismatchError{Node: node, Declared: declared, Expected: expected}}, false
	}

	fmt.Fprintf(v.out, "%s%s%s: %s ok\n", indent, prefix, name, declared)
	return nil, true
}
