package lister

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursekit/coursekit/internal/course"
	"github.com/coursekit/coursekit/internal/store"
)

func sampleRecords() []store.KeyedRecord {
	return []store.KeyedRecord{
		{
			Key: "buildscompilehelloc",
			Record: course.TestRecord{
				Name: "builds",
				Path: []course.PathLink{
					{Name: "Getting Started"}, {Name: "Hello World"}, {Name: "Compile"}, {Name: "builds"},
				},
				Passed: course.StatePass,
			},
		},
		{
			Key: "benchbenchmarkshelloc",
			Record: course.TestRecord{
				Name: "bench",
				Path: []course.PathLink{
					{Name: "Getting Started"}, {Name: "Hello World"}, {Name: "Benchmarks", Optional: true}, {Name: "bench"},
				},
				Passed:   course.StateFail,
				Optional: true,
			},
		},
		{
			Key: "lintscompilehelloc",
			Record: course.TestRecord{
				Name: "lints",
				Path: []course.PathLink{
					{Name: "Getting Started"}, {Name: "Hello World"}, {Name: "Compile"}, {Name: "lints"},
				},
				Passed: course.StateUnknown,
			},
		},
	}
}

func TestRender(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Render(&out, sampleRecords()))
	text := out.String()

	assert.Contains(t, text, "3 tests available")
	assert.Contains(t, text, "Test")
	assert.Contains(t, text, "Last result")

	assert.Contains(t, text, "builds")
	assert.Contains(t, text, "bench")
	assert.Contains(t, text, "lints")
	assert.Contains(t, text, "Getting Started/Hello World/Compile")
	assert.Contains(t, text, "pass")
	assert.Contains(t, text, "fail")
	assert.Contains(t, text, "not run")
	assert.Contains(t, text, "yes")
}

func TestRender_RowOrder(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Render(&out, sampleRecords()))
	text := out.String()

	// Rows come out in record order, not sorted.
	assert.Less(t, strings.Index(text, "builds"), strings.Index(text, "bench"))
	assert.Less(t, strings.Index(text, "bench"), strings.Index(text, "lints"))
}

func TestRender_Empty(t *testing.T) {
	var out bytes.Buffer
	err := Render(&out, nil)
	assert.ErrorIs(t, err, ErrNoTests)
	assert.Empty(t, out.String())
}
