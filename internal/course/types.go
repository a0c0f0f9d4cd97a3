package course

import (
	"fmt"
	"strings"
)

// Definition is a fully parsed course file. Stages, lessons, suites and
// tests keep their file order; that order defines test enumeration order
// everywhere downstream.
type Definition struct {
	Version string  `json:"version" yaml:"version"`
	Slug    string  `json:"slug" yaml:"slug"`
	Name    string  `json:"name" yaml:"name"`
	Author  Author  `json:"author" yaml:"author"`
	Repo    Repo    `json:"repo" yaml:"repo"`
	Stages  []Stage `json:"stages" yaml:"stages"`
}

// Author identifies the course author for display.
type Author struct {
	Name string `json:"name" yaml:"name"`
}

// Repo identifies the learner's working copy; it is what the backend keys
// metadata on.
type Repo struct {
	Name      string `json:"name" yaml:"name"`
	CommitSHA string `json:"commit_sha" yaml:"commit_sha"`
}

// Stage is the top grouping level below the course itself.
type Stage struct {
	Name        string   `json:"name" yaml:"name"`
	Slug        string   `json:"slug" yaml:"slug"`
	Description string   `json:"description" yaml:"description"`
	Lessons     []Lesson `json:"lessons" yaml:"lessons"`
}

// Lesson groups test suites. Lessons without suites are legal; they simply
// contribute no tests.
type Lesson struct {
	Name   string  `json:"name" yaml:"name"`
	Slug   string  `json:"slug" yaml:"slug"`
	Suites []Suite `json:"suites,omitempty" yaml:"suites,omitempty"`
}

// Suite is an ordered list of tests. An optional suite marks every test in
// it optional.
type Suite struct {
	Name     string `json:"name" yaml:"name"`
	Slug     string `json:"slug" yaml:"slug"`
	Optional bool   `json:"optional" yaml:"optional"`
	Tests    []Test `json:"tests" yaml:"tests"`
}

// Test is a single runnable check.
type Test struct {
	Name             string `json:"name" yaml:"name"`
	Slug             string `json:"slug" yaml:"slug"`
	Optional         bool   `json:"optional" yaml:"optional"`
	Cmd              string `json:"cmd" yaml:"cmd"`
	MessageOnSuccess string `json:"message_on_success" yaml:"message_on_success"`
	MessageOnFail    string `json:"message_on_fail" yaml:"message_on_fail"`
}

// Metadata is fetched from the backend once per course-definition change
// and cached verbatim in the store.
type Metadata struct {
	LogstreamURL string `json:"logstream_url"`
	LogstreamID  string `json:"logstream_id"`
	WSURL        string `json:"ws_url"`
	TesterURL    string `json:"tester_url"`
}

// ValidationState is the last recorded outcome of a test.
type ValidationState string

const (
	StateUnknown ValidationState = "unknown"
	StatePass    ValidationState = "pass"
	StateFail    ValidationState = "fail"
)

// PathLink is one segment of a test's path through the course tree. The
// Optional flag discriminates the two segment kinds.
type PathLink struct {
	Name     string `json:"name"`
	Optional bool   `json:"optional"`
}

// TestRecord is the durable per-test record. The registry owns these; the
// runner receives snapshots and reports outcomes back through the registry
// rather than mutating records directly.
type TestRecord struct {
	Name             string          `json:"name"`
	Slug             string          `json:"slug"`
	MessageOnSuccess string          `json:"message_on_success"`
	MessageOnFail    string          `json:"message_on_fail"`
	Cmd              []string        `json:"cmd"`
	Path             []PathLink      `json:"path"`
	Passed           ValidationState `json:"passed"`
	Optional         bool            `json:"optional"`
}

// PathTo returns the ancestor path (everything but the leaf segment) as a
// slash-joined string, for display and matching.
func (t TestRecord) PathTo() string {
	if len(t.Path) < 2 {
		return ""
	}
	names := make([]string, 0, len(t.Path)-1)
	for _, link := range t.Path[:len(t.Path)-1] {
		names = append(names, link.Name)
	}
	return strings.Join(names, "/")
}

// Header renders the test's position in the course tree, one ancestor per
// line, with optional segments marked. Path depth is schema-determined and
// is not assumed here beyond indentation.
func (t TestRecord) Header() string {
	var b strings.Builder
	for i, link := range t.Path[:max(len(t.Path)-1, 0)] {
		if i == 0 {
			b.WriteString("\n" + link.Name)
		} else {
			fmt.Fprintf(&b, "\n%s╰─%s", strings.Repeat("  ", i-1), link.Name)
		}
		if link.Optional {
			b.WriteString(" (optional)")
		}
	}
	fmt.Fprintf(&b, "\n\n   Running test %s", t.Name)
	if t.Optional {
		b.WriteString(" (optional)")
	}
	return b.String()
}
