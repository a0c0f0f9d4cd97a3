package course

import "strings"

// PlanEntry pairs a test's identity key with its fresh record. Order in a
// plan is file order, root to leaf.
type PlanEntry struct {
	Key    string
	Record TestRecord
}

// TestPlan flattens the course tree into the ordered test list the
// registry reconciles against. Records start in StateUnknown; a suite
// marked optional propagates to every test in it.
func (d *Definition) TestPlan() []PlanEntry {
	var plan []PlanEntry
	for _, stage := range d.Stages {
		for _, lesson := range stage.Lessons {
			for _, suite := range lesson.Suites {
				for _, test := range suite.Tests {
					optional := test.Optional || suite.Optional

					record := TestRecord{
						Name:             test.Name,
						Slug:             test.Slug,
						MessageOnSuccess: test.MessageOnSuccess,
						MessageOnFail:    test.MessageOnFail,
						Cmd:              strings.Fields(test.Cmd),
						Path: []PathLink{
							{Name: stage.Name},
							{Name: lesson.Name},
							{Name: suite.Name, Optional: suite.Optional},
							{Name: test.Name, Optional: test.Optional},
						},
						Passed:   StateUnknown,
						Optional: optional,
					}

					plan = append(plan, PlanEntry{
						Key:    IdentityKey(test.Name, suite.Name, lesson.Name, stage.Name, d.Name),
						Record: record,
					})
				}
			}
		}
	}
	return plan
}
