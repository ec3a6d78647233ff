package sync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/tasksync/internal/task"
)

// --- In-memory fakes for the two adapters ---

func cloneTask(t *task.Task) *task.Task {
	c := *t
	return &c
}

type fakeDevice struct {
	tasks  []*task.Task
	cats   []Category
	nextID int

	createdCategories []string
	renamedCategories []string
}

var _ DeviceAdapter = (*fakeDevice)(nil)

func (f *fakeDevice) newID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeDevice) ListTasks(_ context.Context, _ string, includeCompleted bool) ([]*task.Task, error) {
	var out []*task.Task
	for _, t := range f.tasks {
		if !includeCompleted && t.Completed {
			continue
		}

		out = append(out, cloneTask(t))
	}

	return out, nil
}

func (f *fakeDevice) GetTask(_ context.Context, id string) (*task.Task, error) {
	for _, t := range f.tasks {
		if t.DeviceID == id {
			return cloneTask(t), nil
		}
	}

	return nil, nil
}

func (f *fakeDevice) CreateTask(_ context.Context, t *task.Task) (string, error) {
	id := f.newID("dev")
	c := cloneTask(t)
	c.DeviceID = id
	f.tasks = append(f.tasks, c)

	return id, nil
}

func (f *fakeDevice) UpdateTask(_ context.Context, t *task.Task) error {
	for i, existing := range f.tasks {
		if existing.DeviceID == t.DeviceID {
			f.tasks[i] = cloneTask(t)
			return nil
		}
	}

	return fmt.Errorf("task %s not found", t.DeviceID)
}

func (f *fakeDevice) DeleteTask(_ context.Context, id string, _ bool) error {
	for i, t := range f.tasks {
		if t.DeviceID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("task %s not found", id)
}

func (f *fakeDevice) ListCategories(_ context.Context) ([]Category, error) {
	return append([]Category(nil), f.cats...), nil
}

func (f *fakeDevice) CreateCategory(_ context.Context, name string) (string, error) {
	id := f.newID("cat")
	f.cats = append(f.cats, Category{ID: id, Name: name})
	f.createdCategories = append(f.createdCategories, name)

	return id, nil
}

func (f *fakeDevice) RenameCategory(_ context.Context, id, newName string) error {
	for i, c := range f.cats {
		if c.ID == id {
			f.cats[i].Name = newName
			f.renamedCategories = append(f.renamedCategories, newName)

			return nil
		}
	}

	return fmt.Errorf("category %s not found", id)
}

func (f *fakeDevice) TestConnection(context.Context) bool { return true }

func (f *fakeDevice) find(title string) *task.Task {
	for _, t := range f.tasks {
		if t.Title == title {
			return t
		}
	}

	return nil
}

type fakeHost struct {
	lists     []Category
	reminders []*task.Task
	nextID    int

	failUpdates bool

	createdLists []string
	renamedLists [][2]string
}

var _ HostAdapter = (*fakeHost)(nil)

func (f *fakeHost) newID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeHost) ListLists(context.Context) ([]Category, error) {
	return append([]Category(nil), f.lists...), nil
}

func (f *fakeHost) CreateList(_ context.Context, name string) (string, error) {
	id := f.newID("list")
	f.lists = append(f.lists, Category{ID: id, Name: name})
	f.createdLists = append(f.createdLists, name)

	return id, nil
}

func (f *fakeHost) RenameList(_ context.Context, oldName, newName string) error {
	for i, l := range f.lists {
		if l.Name == oldName {
			f.lists[i].Name = newName
			f.renamedLists = append(f.renamedLists, [2]string{oldName, newName})

			return nil
		}
	}

	return fmt.Errorf("list %s not found", oldName)
}

func (f *fakeHost) ListReminders(_ context.Context, includeCompleted bool) ([]*task.Task, error) {
	var out []*task.Task
	for _, t := range f.reminders {
		if !includeCompleted && t.Completed {
			continue
		}

		out = append(out, cloneTask(t))
	}

	return out, nil
}

func (f *fakeHost) GetReminderByID(_ context.Context, id string) (*task.Task, error) {
	for _, t := range f.reminders {
		if t.HostID == id {
			return cloneTask(t), nil
		}
	}

	return nil, nil
}

func (f *fakeHost) CreateReminder(_ context.Context, t *task.Task) (string, error) {
	id := f.newID("rem")
	c := cloneTask(t)
	c.HostID = id
	f.reminders = append(f.reminders, c)

	return id, nil
}

func (f *fakeHost) UpdateReminder(_ context.Context, t *task.Task) error {
	if f.failUpdates {
		return fmt.Errorf("simulated helper failure")
	}

	for i, existing := range f.reminders {
		if existing.HostID == t.HostID {
			f.reminders[i] = cloneTask(t)
			return nil
		}
	}

	return fmt.Errorf("reminder %s not found", t.HostID)
}

func (f *fakeHost) DeleteReminder(_ context.Context, id string) error {
	for i, t := range f.reminders {
		if t.HostID == id {
			f.reminders = append(f.reminders[:i], f.reminders[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("reminder %s not found", id)
}

func (f *fakeHost) TestConnection(context.Context) bool { return true }

func (f *fakeHost) find(title string) *task.Task {
	for _, t := range f.reminders {
		if t.Title == title {
			return t
		}
	}

	return nil
}

// --- Engine test harness ---

type engineFixture struct {
	device *fakeDevice
	host   *fakeHost
	store  *SQLiteStore
	opts   Options
}

func newFixture(t *testing.T) *engineFixture {
	t.Helper()

	return &engineFixture{
		device: &fakeDevice{},
		host:   &fakeHost{},
		store:  newTestStore(t),
		opts: Options{
			Strategy:        PreferRecent,
			ConflictWindow:  60 * time.Second,
			SyncCompleted:   true,
			CompletedMaxAge: 180 * 24 * time.Hour,
			DedupeRepeating: true,
		},
	}
}

func (fx *engineFixture) run(t *testing.T) *Result {
	t.Helper()

	engine := NewEngine(fx.device, fx.host, fx.store, discardLogger(), fx.opts)

	res, err := engine.Run(context.Background())
	require.NoError(t, err)

	return res
}

func TestSyncCreatesMissingTasks(t *testing.T) {
	fx := newFixture(t)
	fx.host.lists = []Category{{ID: "list-r", Name: "Reminders"}}
	fx.host.reminders = []*task.Task{{HostID: "rem-a", Title: "Host only", Category: "Reminders"}}
	fx.device.tasks = []*task.Task{{DeviceID: "dev-a", Title: "Device only", Category: "Inbox"}}

	res := fx.run(t)

	assert.Equal(t, 1, res.HostToDeviceCreated)
	assert.Equal(t, 1, res.DeviceToHostCreated)
	assert.Empty(t, res.Errors)

	require.NotNil(t, fx.device.find("Host only"))
	require.NotNil(t, fx.host.find("Device only"))

	records, err := fx.store.AllRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	for _, r := range records {
		assert.NotEmpty(t, r.HostID)
		assert.NotEmpty(t, r.DeviceID)
		assert.NotEmpty(t, r.LastSyncedHash)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	fx.host.lists = []Category{{ID: "list-r", Name: "Reminders"}}
	fx.host.reminders = []*task.Task{{HostID: "rem-a", Title: "Shared", Category: "Reminders"}}

	first := fx.run(t)
	assert.Equal(t, 1, first.TotalActions())

	second := fx.run(t)
	assert.Zero(t, second.TotalActions())
	assert.Equal(t, 1, second.NoChange)
}

func TestTitleBootstrapLinksWithoutMutation(t *testing.T) {
	fx := newFixture(t)
	fx.host.lists = []Category{{ID: "list-w", Name: "Work"}}
	fx.device.cats = []Category{{ID: "cat-w", Name: "Work"}}
	fx.host.reminders = []*task.Task{{HostID: "rem-1", Title: "Quarterly report", Category: "Work"}}
	fx.device.tasks = []*task.Task{{DeviceID: "dev-1", Title: " quarterly REPORT ", Category: "Work"}}

	// Titles normalize identically but content differs (whitespace in title),
	// so use identical content to verify the pure-link path.
	fx.device.tasks[0].Title = "Quarterly report"

	res := fx.run(t)

	assert.Zero(t, res.TotalActions())
	assert.Equal(t, 1, res.NoChange)

	record, err := fx.store.GetByHostID(context.Background(), "rem-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "dev-1", record.DeviceID)
	assert.Equal(t, SourceBoth, record.SourceSystem)
}

func TestHostEditPropagatesToDevice(t *testing.T) {
	fx := newFixture(t)
	fx.host.lists = []Category{{ID: "list-p", Name: "Personal"}}
	fx.device.cats = []Category{{ID: "cat-p", Name: "Personal"}}

	deviceTask := &task.Task{DeviceID: "dev-1", Title: "Pay rent", Category: "Personal"}
	hostTask := &task.Task{HostID: "rem-1", Title: "Pay rent", Category: "Personal"}
	fx.device.tasks = []*task.Task{deviceTask}
	fx.host.reminders = []*task.Task{hostTask}

	baseline := deviceTask.ContentHash()
	require.NoError(t, fx.store.UpsertRecord(context.Background(), &SyncRecord{
		SyncID: "sync-1", HostID: "rem-1", DeviceID: "dev-1",
		LastSyncedHash: baseline, SourceSystem: SourceBoth,
	}))

	fx.host.reminders[0].Completed = true

	res := fx.run(t)

	assert.Equal(t, 1, res.HostToDeviceUpdated)
	assert.Zero(t, res.ConflictsResolved)

	updated := fx.device.find("Pay rent")
	require.NotNil(t, updated)
	assert.True(t, updated.Completed)

	record, err := fx.store.GetRecord(context.Background(), "sync-1")
	require.NoError(t, err)
	assert.NotEqual(t, baseline, record.LastSyncedHash)
	assert.Equal(t, SourceHost, record.SourceSystem)
}

func TestConflictBothChanged(t *testing.T) {
	fx := newFixture(t)
	fx.opts.Strategy = PreferDevice

	fx.host.lists = []Category{{ID: "list-p", Name: "Personal"}}
	fx.device.cats = []Category{{ID: "cat-p", Name: "Personal"}}

	deviceTask := &task.Task{DeviceID: "dev-1", Title: "Plan trip", Category: "Personal"}
	hostTask := &task.Task{HostID: "rem-1", Title: "Plan trip", Category: "Personal"}
	baseline := deviceTask.ContentHash()

	deviceTask.Notes = "device edit"
	hostTask.Notes = "host edit"
	fx.device.tasks = []*task.Task{deviceTask}
	fx.host.reminders = []*task.Task{hostTask}

	require.NoError(t, fx.store.UpsertRecord(context.Background(), &SyncRecord{
		SyncID: "sync-1", HostID: "rem-1", DeviceID: "dev-1",
		LastSyncedHash: baseline, SourceSystem: SourceBoth,
	}))

	res := fx.run(t)

	assert.Equal(t, 1, res.ConflictsResolved)
	assert.Equal(t, 1, res.DeviceToHostUpdated)

	winner := fx.host.find("Plan trip")
	require.NotNil(t, winner)
	assert.Equal(t, "device edit", winner.Notes)
}

func TestDeletePropagation(t *testing.T) {
	fx := newFixture(t)
	fx.host.lists = []Category{{ID: "list-p", Name: "Personal"}}
	fx.device.cats = []Category{{ID: "cat-p", Name: "Personal"}}

	deviceTask := &task.Task{DeviceID: "dev-1", Title: "Old chore", Category: "Personal"}
	fx.device.tasks = []*task.Task{deviceTask}

	// The record says the pair existed; the host side is gone.
	require.NoError(t, fx.store.UpsertRecord(context.Background(), &SyncRecord{
		SyncID: "sync-1", HostID: "rem-gone", DeviceID: "dev-1",
		LastSyncedHash: deviceTask.ContentHash(), SourceSystem: SourceBoth,
	}))

	res := fx.run(t)

	assert.Equal(t, 1, res.HostToDeviceDeleted)
	assert.Nil(t, fx.device.find("Old chore"))

	record, err := fx.store.GetRecord(context.Background(), "sync-1")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestOrphanedRecordPurged(t *testing.T) {
	fx := newFixture(t)

	require.NoError(t, fx.store.UpsertRecord(context.Background(), &SyncRecord{
		SyncID: "sync-stale", HostID: "rem-gone", DeviceID: "dev-gone",
		SourceSystem: SourceBoth,
	}))

	res := fx.run(t)

	assert.Zero(t, res.TotalActions())

	record, err := fx.store.GetRecord(context.Background(), "sync-stale")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestDryRunMutatesNothing(t *testing.T) {
	fx := newFixture(t)
	fx.opts.DryRun = true
	fx.host.lists = []Category{{ID: "list-r", Name: "Reminders"}}
	fx.host.reminders = []*task.Task{{HostID: "rem-a", Title: "Would sync", Category: "Reminders"}}

	res := fx.run(t)

	// Planned actions are counted but nothing is touched.
	assert.True(t, res.DryRun)
	assert.Equal(t, 1, res.HostToDeviceCreated)
	assert.Empty(t, fx.device.tasks)
	assert.Empty(t, fx.device.createdCategories)

	records, err := fx.store.AllRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSkipsOldCompletedTasks(t *testing.T) {
	fx := newFixture(t)
	fx.host.lists = []Category{{ID: "list-r", Name: "Reminders"}}

	old := task.TimePtr(time.Now().Add(-200 * 24 * time.Hour))
	recent := task.TimePtr(time.Now().Add(-5 * 24 * time.Hour))

	fx.host.reminders = []*task.Task{
		{HostID: "rem-old", Title: "Ancient chore", Category: "Reminders", Completed: true, CompletionDate: old},
		{HostID: "rem-new", Title: "Recent chore", Category: "Reminders", Completed: true, CompletionDate: recent},
	}

	res := fx.run(t)

	assert.Equal(t, 1, res.SkippedOldCompleted)
	assert.Equal(t, 1, res.HostToDeviceCreated)
	assert.Nil(t, fx.device.find("Ancient chore"))
	assert.NotNil(t, fx.device.find("Recent chore"))
}

func TestOldCompletedDeviceTaskStillSyncs(t *testing.T) {
	fx := newFixture(t)
	fx.host.lists = []Category{{ID: "list-r", Name: "Reminders"}}

	// The age filter only guards Host imports; a long-completed Device task
	// is still pushed to the Host.
	old := task.TimePtr(time.Now().Add(-200 * 24 * time.Hour))
	fx.device.tasks = []*task.Task{
		{DeviceID: "dev-old", Title: "Archive notebook", Category: "Inbox", Completed: true, CompletionDate: old, ModifiedAt: old},
	}

	res := fx.run(t)

	assert.Zero(t, res.SkippedOldCompleted)
	assert.Equal(t, 1, res.DeviceToHostCreated)
	assert.NotNil(t, fx.host.find("Archive notebook"))
}

func TestCompletedHostTaskWithoutDateIsKept(t *testing.T) {
	fx := newFixture(t)
	fx.host.lists = []Category{{ID: "list-r", Name: "Reminders"}}

	old := task.TimePtr(time.Now().Add(-400 * 24 * time.Hour))
	fx.host.reminders = []*task.Task{
		{HostID: "rem-undated", Title: "Undated chore", Category: "Reminders", Completed: true, ModifiedAt: old},
	}

	res := fx.run(t)

	assert.Zero(t, res.SkippedOldCompleted)
	assert.Equal(t, 1, res.HostToDeviceCreated)
	assert.NotNil(t, fx.device.find("Undated chore"))
}

func TestDedupeRepeatingHostTasks(t *testing.T) {
	fx := newFixture(t)
	fx.host.lists = []Category{{ID: "list-r", Name: "Reminders"}}

	fx.host.reminders = []*task.Task{
		{HostID: "rem-1", Title: "Water plants", Category: "Reminders", Completed: true, DueDate: task.TimePtr(time.Now().Add(-7 * 24 * time.Hour))},
		{HostID: "rem-2", Title: "Water plants", Category: "Reminders", DueDate: task.TimePtr(time.Now())},
	}

	res := fx.run(t)

	assert.Equal(t, 1, res.Deduped)
	assert.Equal(t, 1, res.HostToDeviceCreated)

	created := fx.device.find("Water plants")
	require.NotNil(t, created)
	assert.False(t, created.Completed)
}

func TestCategoryBootstrap(t *testing.T) {
	fx := newFixture(t)
	fx.device.cats = []Category{{ID: "cat-w", Name: "Work"}}
	fx.host.lists = []Category{{ID: "list-g", Name: "groceries"}}

	fx.run(t)

	// The Device category gets a matching Host list; the Host list gets a
	// matching Device category.
	assert.Equal(t, []string{"Work"}, fx.host.createdLists)
	assert.Equal(t, []string{"groceries"}, fx.device.createdCategories)

	mappings, err := fx.store.AllMappings(context.Background())
	require.NoError(t, err)
	assert.Len(t, mappings, 2)
}

func TestCategoryCaseInsensitiveLink(t *testing.T) {
	fx := newFixture(t)
	fx.device.cats = []Category{{ID: "cat-w", Name: "work"}}
	fx.host.lists = []Category{{ID: "list-w", Name: "Work"}}

	fx.run(t)

	// Linked by name: nothing created on either side.
	assert.Empty(t, fx.host.createdLists)
	assert.Empty(t, fx.device.createdCategories)

	mappings, err := fx.store.AllMappings(context.Background())
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, "work", mappings[0].Name)
}

func TestCategoryRenamePropagation(t *testing.T) {
	t.Run("device rename reaches host", func(t *testing.T) {
		fx := newFixture(t)
		fx.device.cats = []Category{{ID: "cat-1", Name: "Projects 2026"}}
		fx.host.lists = []Category{{ID: "list-1", Name: "Projects"}}
		require.NoError(t, fx.store.UpsertMapping(context.Background(),
			&CategoryMapping{DeviceID: "cat-1", HostID: "list-1", Name: "Projects"}))

		fx.run(t)

		require.Len(t, fx.host.renamedLists, 1)
		assert.Equal(t, [2]string{"Projects", "Projects 2026"}, fx.host.renamedLists[0])

		mapping, err := fx.store.GetMappingByDeviceID(context.Background(), "cat-1")
		require.NoError(t, err)
		assert.Equal(t, "Projects 2026", mapping.Name)
	})

	t.Run("host rename reaches device", func(t *testing.T) {
		fx := newFixture(t)
		fx.device.cats = []Category{{ID: "cat-1", Name: "Projects"}}
		fx.host.lists = []Category{{ID: "list-1", Name: "Archive"}}
		require.NoError(t, fx.store.UpsertMapping(context.Background(),
			&CategoryMapping{DeviceID: "cat-1", HostID: "list-1", Name: "Projects"}))

		fx.run(t)

		assert.Equal(t, []string{"Archive"}, fx.device.renamedCategories)
	})

	t.Run("double rename device wins", func(t *testing.T) {
		fx := newFixture(t)
		fx.device.cats = []Category{{ID: "cat-1", Name: "DeviceName"}}
		fx.host.lists = []Category{{ID: "list-1", Name: "HostName"}}
		require.NoError(t, fx.store.UpsertMapping(context.Background(),
			&CategoryMapping{DeviceID: "cat-1", HostID: "list-1", Name: "Original"}))

		fx.run(t)

		require.Len(t, fx.host.renamedLists, 1)
		assert.Equal(t, [2]string{"HostName", "DeviceName"}, fx.host.renamedLists[0])
		assert.Empty(t, fx.device.renamedCategories)

		mapping, err := fx.store.GetMappingByDeviceID(context.Background(), "cat-1")
		require.NoError(t, err)
		assert.Equal(t, "DeviceName", mapping.Name)
	})
}

func TestCategoryTranslationOnCreate(t *testing.T) {
	fx := newFixture(t)
	fx.device.cats = []Category{{ID: "cat-w", Name: "work"}}
	fx.host.lists = []Category{{ID: "list-w", Name: "Work"}}
	fx.host.reminders = []*task.Task{{HostID: "rem-1", Title: "New task", Category: "Work"}}

	fx.run(t)

	// The mapping canonicalizes on the Device-side name.
	created := fx.device.find("New task")
	require.NotNil(t, created)
	assert.Equal(t, "work", created.Category)
}

func TestActionErrorsAreCollected(t *testing.T) {
	fx := newFixture(t)
	fx.host.failUpdates = true
	fx.host.lists = []Category{{ID: "list-p", Name: "Personal"}}
	fx.device.cats = []Category{{ID: "cat-p", Name: "Personal"}}

	deviceTask := &task.Task{DeviceID: "dev-1", Title: "Flaky", Category: "Personal"}
	hostTask := &task.Task{HostID: "rem-1", Title: "Flaky", Category: "Personal"}
	baseline := hostTask.ContentHash()

	deviceTask.Notes = "device edit"
	fx.device.tasks = []*task.Task{deviceTask}
	fx.host.reminders = []*task.Task{hostTask}

	// A second, unrelated host task still syncs despite the earlier failure.
	fx.host.reminders = append(fx.host.reminders,
		&task.Task{HostID: "rem-2", Title: "Healthy", Category: "Personal"})

	require.NoError(t, fx.store.UpsertRecord(context.Background(), &SyncRecord{
		SyncID: "sync-1", HostID: "rem-1", DeviceID: "dev-1",
		LastSyncedHash: baseline, SourceSystem: SourceBoth,
	}))

	res := fx.run(t)

	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "simulated helper failure")

	// The failed update is not counted and its record keeps the old hash.
	assert.Zero(t, res.DeviceToHostUpdated)
	record, err := fx.store.GetRecord(context.Background(), "sync-1")
	require.NoError(t, err)
	assert.Equal(t, baseline, record.LastSyncedHash)

	// The healthy task was still created on the device.
	assert.Equal(t, 1, res.HostToDeviceCreated)
	assert.NotNil(t, fx.device.find("Healthy"))
}
