package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursekit/coursekit/internal/course"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(openTestStore(t).Tree("./course.json"))
}

func planEntry(key, name string, optional bool) course.PlanEntry {
	return course.PlanEntry{
		Key: key,
		Record: course.TestRecord{
			Name:     name,
			Slug:     course.SlugFor(name),
			Cmd:      []string{"true"},
			Passed:   course.StateUnknown,
			Optional: optional,
		},
	}
}

func testMetadata() course.Metadata {
	return course.Metadata{WSURL: "wss://stream.example", LogstreamID: "ls-1"}
}

func TestReconcile_Fresh(t *testing.T) {
	ctx := context.Background()
	reg := testRegistry(t)

	plan := []course.PlanEntry{
		planEntry("alphacourse", "alpha", false),
		planEntry("betacourse", "beta", true),
	}
	require.NoError(t, reg.Reconcile(ctx, plan, testMetadata()))

	records, err := reg.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "alphacourse", records[0].Key)
	assert.Equal(t, "alpha", records[0].Record.Name)
	assert.Equal(t, course.StateUnknown, records[0].Record.Passed)
	assert.True(t, records[1].Record.Optional)

	cursor, err := reg.ResumeCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cursor)

	md, err := reg.Metadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, "wss://stream.example", md.WSURL)
}

func TestReconcile_PreservesHistory(t *testing.T) {
	ctx := context.Background()
	reg := testRegistry(t)

	plan := []course.PlanEntry{planEntry("alphacourse", "alpha", false)}
	require.NoError(t, reg.Reconcile(ctx, plan, testMetadata()))
	require.NoError(t, reg.RecordOutcome(ctx, "alphacourse", true))

	// Same identity in the new plan: the stored record survives untouched.
	require.NoError(t, reg.Reconcile(ctx, plan, testMetadata()))

	records, err := reg.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, course.StatePass, records[0].Record.Passed)
}

func TestReconcile_AddAndRemove(t *testing.T) {
	ctx := context.Background()
	reg := testRegistry(t)

	require.NoError(t, reg.Reconcile(ctx, []course.PlanEntry{
		planEntry("alphacourse", "alpha", false),
		planEntry("betacourse", "beta", false),
	}, testMetadata()))
	require.NoError(t, reg.RecordOutcome(ctx, "alphacourse", true))

	// beta is renamed away, gamma arrives.
	require.NoError(t, reg.Reconcile(ctx, []course.PlanEntry{
		planEntry("alphacourse", "alpha", false),
		planEntry("gammacourse", "gamma", false),
	}, testMetadata()))

	records, err := reg.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "alphacourse", records[0].Key)
	assert.Equal(t, course.StatePass, records[0].Record.Passed)
	assert.Equal(t, "gammacourse", records[1].Key)
	assert.Equal(t, course.StateUnknown, records[1].Record.Passed)
}

func TestReconcile_RenamedAncestorResetsState(t *testing.T) {
	ctx := context.Background()
	reg := testRegistry(t)

	oldKey := course.IdentityKey("t", "suite", "lesson", "stage", "c")
	newKey := course.IdentityKey("t", "suite", "lesson", "stage two", "c")

	require.NoError(t, reg.Reconcile(ctx, []course.PlanEntry{planEntry(oldKey, "t", false)}, testMetadata()))
	require.NoError(t, reg.RecordOutcome(ctx, oldKey, true))

	require.NoError(t, reg.Reconcile(ctx, []course.PlanEntry{planEntry(newKey, "t", false)}, testMetadata()))

	records, err := reg.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, newKey, records[0].Key)
	assert.Equal(t, course.StateUnknown, records[0].Record.Passed)
}

func TestShouldReconcile(t *testing.T) {
	ctx := context.Background()
	reg := testRegistry(t)

	coursePath := filepath.Join(t.TempDir(), "course.json")
	require.NoError(t, os.WriteFile(coursePath, []byte("{}"), 0o644))

	// No watermark yet.
	should, err := reg.ShouldReconcile(ctx, coursePath)
	require.NoError(t, err)
	assert.True(t, should)

	// Watermark stored, file unchanged.
	should, err = reg.ShouldReconcile(ctx, coursePath)
	require.NoError(t, err)
	assert.False(t, should)

	// File touched after the watermark.
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(coursePath, later, later))
	should, err = reg.ShouldReconcile(ctx, coursePath)
	require.NoError(t, err)
	assert.True(t, should)

	// The watermark was rewritten by the previous call, so the same
	// modification does not trigger again.
	should, err = reg.ShouldReconcile(ctx, coursePath)
	require.NoError(t, err)
	assert.False(t, should)
}

func TestShouldReconcile_MissingFile(t *testing.T) {
	reg := testRegistry(t)
	_, err := reg.ShouldReconcile(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
	assert.True(t, HasCode(err, CodeIO))
}

func TestFetchWindow(t *testing.T) {
	ctx := context.Background()
	reg := testRegistry(t)

	require.NoError(t, reg.Reconcile(ctx, []course.PlanEntry{
		planEntry("alphacourse", "alpha", false),
		planEntry("betacourse", "beta", false),
		planEntry("gammacourse", "gamma", false),
	}, testMetadata()))

	records, err := reg.FetchWindow(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "alphacourse", records[0].Key)
	assert.Equal(t, "betacourse", records[1].Key)

	// A window past the end is just everything.
	records, err = reg.FetchWindow(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestFetchMatching_SkipsReservedKeys(t *testing.T) {
	ctx := context.Background()
	reg := testRegistry(t)

	// Identities chosen to share a prefix with the reserved "tests" key.
	require.NoError(t, reg.Reconcile(ctx, []course.PlanEntry{
		planEntry("testounosuitecourse", "test uno", false),
		planEntry("testdossuitecourse", "test dos", false),
		planEntry("othercourse", "other", false),
	}, testMetadata()))

	records, err := reg.FetchMatching(ctx, "test")
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.NotEqual(t, "tests", rec.Key)
	}
}

func TestFetchAll_CorruptRecordAborts(t *testing.T) {
	ctx := context.Background()
	tree := openTestStore(t).Tree("./course.json")
	reg := NewRegistry(tree)

	require.NoError(t, reg.Reconcile(ctx, []course.PlanEntry{
		planEntry("alphacourse", "alpha", false),
		planEntry("betacourse", "beta", false),
	}, testMetadata()))
	require.NoError(t, tree.Put(ctx, "betacourse", []byte("{corrupt")))

	_, err := reg.FetchAll(ctx)
	assert.True(t, IsDecodeError(err))
}

func TestRecordOutcome(t *testing.T) {
	ctx := context.Background()
	reg := testRegistry(t)

	require.NoError(t, reg.Reconcile(ctx, []course.PlanEntry{planEntry("alphacourse", "alpha", false)}, testMetadata()))

	require.NoError(t, reg.RecordOutcome(ctx, "alphacourse", false))
	records, err := reg.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, course.StateFail, records[0].Record.Passed)

	require.NoError(t, reg.RecordOutcome(ctx, "alphacourse", true))
	records, err = reg.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, course.StatePass, records[0].Record.Passed)
}

func TestRecordOutcome_MissingRecord(t *testing.T) {
	reg := testRegistry(t)
	err := reg.RecordOutcome(context.Background(), "vanished", true)
	assert.True(t, IsMissingRecord(err))
}

func TestResumeCursor_Default(t *testing.T) {
	ctx := context.Background()
	reg := testRegistry(t)

	cursor, err := reg.ResumeCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cursor)

	require.NoError(t, reg.SetResumeCursor(ctx, 4))
	cursor, err = reg.ResumeCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, cursor)
}
