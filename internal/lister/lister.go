// Package lister renders the registry's known tests as a table.
package lister

import (
	"errors"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/coursekit/coursekit/internal/course"
	"github.com/coursekit/coursekit/internal/store"
)

// ErrNoTests is returned when the registry holds no tests, which usually
// means the course file was never reconciled or defines none.
var ErrNoTests = errors.New("no tests found")

// Render writes one row per test in index order: name, path, whether the
// test is optional, and its last recorded outcome.
func Render(w io.Writer, records []store.KeyedRecord) error {
	if len(records) == 0 {
		return ErrNoTests
	}

	fmt.Fprintf(w, "%d tests available\n\n", len(records))

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Test", "Path", "Optional", "Last result"})
	for _, rec := range records {
		t.AppendRow(table.Row{
			rec.Record.Name,
			rec.Record.PathTo(),
			yesNo(rec.Record.Optional),
			lastResult(rec.Record.Passed),
		})
	}
	t.Render()
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func lastResult(s course.ValidationState) string {
	switch s {
	case course.StatePass:
		return "pass"
	case course.StateFail:
		return "fail"
	default:
		return "not run"
	}
}
