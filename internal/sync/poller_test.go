package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bugboard/internal/model"
	"bugboard/internal/source"
	"bugboard/internal/store"
	"bugboard/tests/testutil"
)

// fakeSource returns a fixed set of tasks, or an error when set.
type fakeSource struct {
	tasks []model.Task
	err   error
}

func (f *fakeSource) Type() source.SourceType { return source.SourceTypeBugzilla }

func (f *fakeSource) ValidateConnection(context.Context) (string, error) {
	return "fake", nil
}

func (f *fakeSource) FetchItems(
	_ context.Context,
	_ source.FetchOptions,
) (*source.FetchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &source.FetchResult{
		Items: f.tasks,
		Total: len(f.tasks),
	}, nil
}

func (f *fakeSource) GetItemDetail(
	context.Context,
	string,
) (*source.ItemDetail, error) {
	return nil, nil
}

func (f *fakeSource) GetActions(context.Context, string) ([]source.Action, error) {
	return nil, nil
}

func (f *fakeSource) ExecuteAction(
	context.Context,
	string,
	source.Action,
	string,
) error {
	return nil
}

func (f *fakeSource) Search(
	context.Context,
	string,
	source.FetchOptions,
) (*source.FetchResult, error) {
	return &source.FetchResult{}, nil
}

func fakeTask(id string) model.Task {
	now := time.Now().UTC()
	return model.Task{
		ID:           id,
		SourceType:   model.SourceTypeBugzilla,
		SourceItemID: id,
		SourceID:     "src-1",
		Title:        "Bug " + id,
		Status:       model.StatusOpen,
		Priority:     model.PriorityMedium,
		CreatedAt:    now,
		UpdatedAt:    now,
		FetchedAt:    now,
	}
}

func fakeConfig() model.SourceConfig {
	return model.SourceConfig{
		ID:              "src-1",
		Type:            "bugzilla",
		Name:            "Main Bugzilla",
		Enabled:         true,
		PollIntervalSec: 3600,
	}
}

func TestPollerSyncsAndUpserts(t *testing.T) {
	s := testutil.NewTestStore(t)
	p := New(s)
	defer p.Stop()

	src := &fakeSource{tasks: []model.Task{fakeTask("bugzilla-1"), fakeTask("bugzilla-2")}}
	p.RegisterSource(src, fakeConfig())

	cmd := p.Start()
	require.NotNil(t, cmd)

	msg, ok := cmd().(SyncResultMsg)
	require.True(t, ok)
	require.NoError(t, msg.Error)
	assert.Equal(t, "src-1", msg.SourceID)
	assert.Len(t, msg.Tasks, 2)
	assert.Equal(t, 2, msg.NewTaskCount)

	tasks, err := s.GetTasks(context.Background(), store.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	// New tasks generate notifications.
	unread, err := s.GetUnreadNotifications(context.Background())
	require.NoError(t, err)
	assert.Len(t, unread, 2)
}

func TestPollerCountsOnlyNewTasks(t *testing.T) {
	s := testutil.NewTestStore(t)
	p := New(s)
	defer p.Stop()

	existing := fakeTask("bugzilla-1")
	require.NoError(t, s.UpsertTasks(context.Background(), []model.Task{existing}))

	src := &fakeSource{tasks: []model.Task{fakeTask("bugzilla-1"), fakeTask("bugzilla-2")}}
	p.RegisterSource(src, fakeConfig())

	cmd := p.Start()
	msg, ok := cmd().(SyncResultMsg)
	require.True(t, ok)
	require.NoError(t, msg.Error)
	assert.Equal(t, 1, msg.NewTaskCount)
}

func TestPollerAuthError(t *testing.T) {
	s := testutil.NewTestStore(t)
	p := New(s)
	defer p.Stop()

	src := &fakeSource{err: &source.AuthError{
		SourceType: source.SourceTypeBugzilla,
		Message:    "bad credentials",
	}}
	p.RegisterSource(src, fakeConfig())

	cmd := p.Start()
	msg, ok := cmd().(SyncResultMsg)
	require.True(t, ok)
	require.Error(t, msg.Error)
	require.NotNil(t, msg.AuthError)
	assert.Equal(t, "src-1", msg.AuthError.SourceID)
	assert.Contains(t, msg.AuthError.Message, "Main Bugzilla")

	statuses := p.GetStatuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, SyncError, statuses[0].State)
}

func TestPollerRegisterAfterStart(t *testing.T) {
	s := testutil.NewTestStore(t)
	p := New(s)
	defer p.Stop()

	p.RegisterSource(
		&fakeSource{tasks: []model.Task{fakeTask("bugzilla-1")}},
		fakeConfig(),
	)

	cmd := p.Start()
	first, ok := cmd().(SyncResultMsg)
	require.True(t, ok)
	require.NoError(t, first.Error)

	// A target added while the poller is running gets polled too.
	secondCfg := fakeConfig()
	secondCfg.ID = "src-2"
	secondCfg.Name = "Second Bugzilla"
	task := fakeTask("bugzilla-9")
	task.SourceID = "src-2"
	p.RegisterSource(&fakeSource{tasks: []model.Task{task}}, secondCfg)

	second, ok := p.WaitForNextResult()().(SyncResultMsg)
	require.True(t, ok)
	require.NoError(t, second.Error)
	assert.Equal(t, "src-2", second.SourceID)
}

func TestPollerReRegisterReplacesAdapter(t *testing.T) {
	s := testutil.NewTestStore(t)
	p := New(s)
	defer p.Stop()

	p.RegisterSource(
		&fakeSource{tasks: []model.Task{fakeTask("bugzilla-1")}},
		fakeConfig(),
	)
	p.RegisterSource(
		&fakeSource{tasks: []model.Task{fakeTask("bugzilla-1")}},
		fakeConfig(),
	)
	require.Len(t, p.GetStatuses(), 1)

	cmd := p.Start()
	first, ok := cmd().(SyncResultMsg)
	require.True(t, ok)
	require.NoError(t, first.Error)

	// Re-registering swaps in the new adapter for the same target.
	replacement := &fakeSource{tasks: []model.Task{
		fakeTask("bugzilla-1"),
		fakeTask("bugzilla-2"),
	}}
	p.RegisterSource(replacement, fakeConfig())
	require.Len(t, p.GetStatuses(), 1)

	p.RefreshSource("src-1")
	second, ok := p.WaitForNextResult()().(SyncResultMsg)
	require.True(t, ok)
	require.NoError(t, second.Error)
	assert.Len(t, second.Tasks, 2)
}

func TestPollerRefreshTargetsSingleSource(t *testing.T) {
	s := testutil.NewTestStore(t)
	p := New(s)
	defer p.Stop()

	p.RegisterSource(
		&fakeSource{tasks: []model.Task{fakeTask("bugzilla-1")}},
		fakeConfig(),
	)
	secondCfg := fakeConfig()
	secondCfg.ID = "src-2"
	secondCfg.Name = "Second Bugzilla"
	task := fakeTask("bugzilla-9")
	task.SourceID = "src-2"
	p.RegisterSource(&fakeSource{tasks: []model.Task{task}}, secondCfg)

	cmd := p.Start()
	first, ok := cmd().(SyncResultMsg)
	require.True(t, ok)
	require.NoError(t, first.Error)
	second, ok := p.WaitForNextResult()().(SyncResultMsg)
	require.True(t, ok)
	require.NoError(t, second.Error)

	// A refresh for src-2 must reach src-2, whichever goroutine is
	// listening.
	p.RefreshSource("src-2")
	third, ok := p.WaitForNextResult()().(SyncResultMsg)
	require.True(t, ok)
	require.NoError(t, third.Error)
	assert.Equal(t, "src-2", third.SourceID)
}

func TestPollerUnregisterSource(t *testing.T) {
	s := testutil.NewTestStore(t)
	p := New(s)
	defer p.Stop()

	p.RegisterSource(
		&fakeSource{tasks: []model.Task{fakeTask("bugzilla-1")}},
		fakeConfig(),
	)

	cmd := p.Start()
	first, ok := cmd().(SyncResultMsg)
	require.True(t, ok)
	require.NoError(t, first.Error)

	p.UnregisterSource("src-1")
	assert.Empty(t, p.GetStatuses())
}

func TestPollerRefreshSource(t *testing.T) {
	s := testutil.NewTestStore(t)
	p := New(s)
	defer p.Stop()

	src := &fakeSource{tasks: []model.Task{fakeTask("bugzilla-1")}}
	p.RegisterSource(src, fakeConfig())

	cmd := p.Start()
	first, ok := cmd().(SyncResultMsg)
	require.True(t, ok)
	require.NoError(t, first.Error)

	// Trigger an immediate re-fetch and wait for its result.
	p.RefreshSource("src-1")
	second, ok := p.WaitForNextResult()().(SyncResultMsg)
	require.True(t, ok)
	require.NoError(t, second.Error)
	assert.Zero(t, second.NewTaskCount)
}
