package validate

import (
	"bytes"
	"io"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursekit/coursekit/internal/course"
)

// validDefinition builds a tree whose declared slugs all match their
// recomputed identities.
func validDefinition() *course.Definition {
	name := "Rust Basics"
	return &course.Definition{
		Version: course.VersionV1,
		Name:    name,
		Slug:    course.SlugFor(name),
		Stages: []course.Stage{
			{
				Name: "Getting Started",
				Slug: course.SlugFor(name, "Getting Started"),
				Lessons: []course.Lesson{
					{
						Name: "Hello World",
						Slug: course.SlugFor(name, "Getting Started", "Hello World"),
						Suites: []course.Suite{
							{
								Name: "Compile",
								Slug: course.SlugFor(name, "Getting Started", "Hello World", "Compile"),
								Tests: []course.Test{
									{
										Name: "builds",
										Slug: course.SlugFor(name, "Getting Started", "Hello World", "Compile", "builds"),
										Cmd:  "cargo build",
									},
									{
										Name: "lints",
										Slug: course.SlugFor(name, "Getting Started", "Hello World", "Compile", "lints"),
										Cmd:  "cargo clippy",
									},
								},
							},
							{
								Name: "Benchmarks",
								Slug: course.SlugFor(name, "Getting Started", "Hello World", "Benchmarks"),
								Tests: []course.Test{
									{
										Name: "bench",
										Slug: course.SlugFor(name, "Getting Started", "Hello World", "Benchmarks", "bench"),
										Cmd:  "cargo bench",
									},
								},
							},
						},
					},
					{
						Name: "Empty Lesson",
						Slug: course.SlugFor(name, "Getting Started", "Empty Lesson"),
					},
				},
			},
		},
	}
}

func TestRun_ValidCourse(t *testing.T) {
	v := New(validDefinition(), io.Discard)
	v.Run()

	require.True(t, v.Finished())
	assert.NoError(t, v.Err())
}

func TestRun_ValidCourseReport(t *testing.T) {
	var out bytes.Buffer
	v := New(validDefinition(), &out)
	v.Run()
	require.NoError(t, v.Err())

	goldie.New(t).Assert(t, "valid_course", out.Bytes())
}

func TestRun_CourseSlugMismatch(t *testing.T) {
	def := validDefinition()
	def.Slug = "0x0000"

	v := New(def, io.Discard)
	v.Run()

	var merr *MismatchError
	require.ErrorAs(t, v.Err(), &merr)
	assert.Equal(t, "course Rust Basics", merr.Node)
	assert.Equal(t, "0x0000", merr.Declared)
	assert.Equal(t, course.SlugFor("Rust Basics"), merr.Expected)
}

func TestRun_RenamedStageDetectedAtStage(t *testing.T) {
	// Renaming a stage without recomputing slugs invalidates the stage's
	// own declared slug first.
	def := validDefinition()
	def.Stages[0].Name = "Getting Going"

	var out bytes.Buffer
	v := New(def, &out)
	v.Run()

	var merr *MismatchError
	require.ErrorAs(t, v.Err(), &merr)
	assert.Equal(t, "stage Getting Going", merr.Node)

	// The walk stops at the first mismatch; descendants are never visited.
	assert.NotContains(t, out.String(), "Hello World")
}

func TestRun_TestSlugMismatch(t *testing.T) {
	def := validDefinition()
	def.Stages[0].Lessons[0].Suites[0].Tests[1].Slug = "0xdead"

	var out bytes.Buffer
	v := New(def, &out)
	v.Run()

	var merr *MismatchError
	require.ErrorAs(t, v.Err(), &merr)
	assert.Equal(t, "test lints", merr.Node)
	assert.Contains(t, out.String(), "lints: 0xdead MISMATCH")

	// The preceding sibling was still reported valid.
	assert.Contains(t, out.String(), "builds")
	// Validation halted before the next suite.
	assert.NotContains(t, out.String(), "Benchmarks")
}

func TestRun_MismatchReportMentionsExpected(t *testing.T) {
	def := validDefinition()
	def.Stages[0].Lessons[0].Slug = "0xbeef"

	v := New(def, io.Discard)
	v.Run()

	require.Error(t, v.Err())
	assert.Contains(t, v.Err().Error(), `invalid slug for lesson Hello World: "0xbeef"`)
}

func TestNew_NilOutput(t *testing.T) {
	v := New(validDefinition(), nil)
	v.Run()
	assert.NoError(t, v.Err())
}

func TestStep_TerminalIsIdempotent(t *testing.T) {
	v := New(validDefinition(), io.Discard)
	v.Run()
	require.True(t, v.Finished())

	v.Step()
	assert.True(t, v.Finished())
	assert.NoError(t, v.Err())
}
