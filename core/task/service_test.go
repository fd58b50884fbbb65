package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/aula/core"
)

type fakeRepo struct {
	mu      sync.Mutex
	records map[Source][]Record
	fail    map[Source]error
	block   map[Source]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		records: make(map[Source][]Record),
		fail:    make(map[Source]error),
		block:   make(map[Source]bool),
	}
}

func (r *fakeRepo) QueryRecords(ctx context.Context, src Source, studentID string) ([]Record, error) {
	r.mu.Lock()
	err, block := r.fail[src], r.block[src]
	r.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var res []Record
	for _, rec := range r.records[src] {
		if studentID == "" || Normalize(rec).AssignedStudentID == studentID {
			res = append(res, rec)
		}
	}
	return res, nil
}

func (r *fakeRepo) GetRecord(_ context.Context, src Source, id string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records[src] {
		if rec.RecordID() == id {
			return rec, nil
		}
	}
	return nil, ErrNotFound
}

func (r *fakeRepo) CreateRecord(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.Source()] = append(r.records[rec.Source()], rec)
	return nil
}

func (r *fakeRepo) SetCompleted(_ context.Context, src Source, id string, completed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rec := range r.records[src] {
		if rec.RecordID() != id {
			continue
		}
		switch rec := rec.(type) {
		case GameRecord:
			rec.Completed = completed
			r.records[src][i] = rec
		case MenuRecord:
			rec.Done = completed
			r.records[src][i] = rec
		case MaterialRecord:
			rec.Collected = completed
			r.records[src][i] = rec
		case StepsRecord:
			rec.Finished = completed
			r.records[src][i] = rec
		}
		return nil
	}
	return ErrNotFound
}

func (r *fakeRepo) DeleteRecordsByID(_ context.Context, src Source, ids ...string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	kept := r.records[src][:0]
	for _, rec := range r.records[src] {
		if contains(ids, rec.RecordID()) {
			n++
			continue
		}
		kept = append(kept, rec)
	}
	r.records[src] = kept
	return n, nil
}

func contains(ids []string, id string) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}

type logEntry struct {
	msg  string
	args []interface{}
}

type testLogger struct {
	mu     sync.Mutex
	errors []logEntry
}

func (l *testLogger) Debug(string, ...interface{}) {}
func (l *testLogger) Info(string, ...interface{})  {}
func (l *testLogger) Warn(string, ...interface{})  {}
func (l *testLogger) Fatal(string, ...interface{}) {}
func (l *testLogger) Error(msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, logEntry{msg: msg, args: args})
}

type testMetrics struct {
	mu      sync.Mutex
	fetches map[Source]int
	failed  map[Source]int
}

func (m *testMetrics) ObserveFetch(src Source, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches[src]++
	if err != nil {
		m.failed[src]++
	}
}

const (
	alice = "0b5e7ad4-2a39-4bc7-9b8e-3c7d6f8a1e01"
	bob   = "6f1c2d3e-4b5a-4c6d-8e7f-9a0b1c2d3e4f"
)

func setup(t *testing.T) (*service, *fakeRepo, *testLogger, *testMetrics) {
	t.Helper()
	repo := newFakeRepo()
	logger := &testLogger{}
	metrics := &testMetrics{fetches: make(map[Source]int), failed: make(map[Source]int)}
	svc := NewService(repo, metrics, core.NewTestConfig(), logger).(*service)

	ctx := context.Background()
	for _, rec := range []Record{
		GameRecord{ID: "g1", Name: "Memory", StartDate: date(2024, 3, 1), EndDate: date(2024, 3, 1), StudentID: alice},
		MenuRecord{ID: "m1", Title: "Lunch", DateFrom: date(2024, 3, 1), DateTo: date(2024, 3, 3), AssignedTo: alice, Done: true},
		MaterialRecord{ID: "x1", Name: "Scissors", PickupFrom: date(2024, 3, 2), PickupTo: date(2024, 3, 2), StudentID: alice},
		StepsRecord{ID: "s1", Title: "Wash hands", StartsOn: date(2024, 3, 2), EndsOn: date(2024, 3, 2), StudentID: alice},
		GameRecord{ID: "g2", Name: "Puzzle", StartDate: date(2024, 3, 1), EndDate: date(2024, 3, 1), StudentID: bob},
	} {
		require.NoError(t, repo.CreateRecord(ctx, rec))
	}
	return svc, repo, logger, metrics
}

func keys(tasks []Task) []string {
	res := make([]string, 0, len(tasks))
	for _, t := range tasks {
		res = append(res, t.Key())
	}
	return res
}

func TestService_Tasks(t *testing.T) {
	svc, _, logger, metrics := setup(t)

	res, err := svc.Tasks(context.Background(), alice)
	require.NoError(t, err)

	assert.Equal(t, []string{"game:g1", "menu:m1", "material:x1", "steps:s1"}, keys(res.Tasks))
	assert.Empty(t, res.FailedSources)
	assert.Empty(t, logger.errors)
	for _, src := range Sources {
		assert.Equal(t, 1, metrics.fetches[src])
	}
}

func TestService_Tasks_NoTasks(t *testing.T) {
	svc, _, _, _ := setup(t)

	res, err := svc.Tasks(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, res.Tasks)
	assert.Empty(t, res.Tasks)
	assert.Empty(t, res.FailedSources)
}

func TestService_Tasks_FailingSourceDegrades(t *testing.T) {
	svc, repo, logger, metrics := setup(t)
	repo.fail[SourceMenu] = errors.New("connection reset")
	repo.fail[SourceSteps] = errors.New("relation does not exist")

	res, err := svc.Tasks(context.Background(), alice)
	require.NoError(t, err)

	assert.Equal(t, []string{"game:g1", "material:x1"}, keys(res.Tasks))
	assert.Equal(t, []Source{SourceMenu, SourceSteps}, res.FailedSources)
	assert.Len(t, logger.errors, 2)
	assert.Equal(t, 1, metrics.failed[SourceMenu])
	assert.Equal(t, 1, metrics.failed[SourceSteps])
	assert.Zero(t, metrics.failed[SourceGame])
}

func TestService_Tasks_FetchTimeout(t *testing.T) {
	svc, repo, _, _ := setup(t)
	svc.conf.Tasks.FetchTimeout = 10 * time.Millisecond
	repo.block[SourceMaterial] = true

	res, err := svc.Tasks(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, []Source{SourceMaterial}, res.FailedSources)
	assert.Len(t, res.Tasks, 3)
}

func TestService_Tasks_Canceled(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Tasks(ctx, alice)
	assert.Equal(t, context.Canceled, err)
}

func TestService_Tasks_CanceledWhileFetching(t *testing.T) {
	svc, repo, logger, metrics := setup(t)
	svc.conf.Tasks.FetchTimeout = time.Minute
	repo.block[SourceSteps] = true

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	res, err := svc.Tasks(ctx, alice)
	assert.Equal(t, context.Canceled, err)
	assert.Empty(t, res.Tasks)
	// a cancellation is not a source failure
	assert.Empty(t, logger.errors)
	assert.Zero(t, metrics.failed[SourceSteps])
}

func TestService_Calendar(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx := context.Background()

	res, err := svc.Calendar(ctx, alice, "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-01", "2024-03-02", "2024-03-03"}, res.Days.Days())
	assert.Equal(t, []string{"game:g1", "menu:m1"}, keys(res.Days["2024-03-01"]))
	assert.Equal(t, []string{"material:x1", "steps:s1", "menu:m1"}, keys(res.Days["2024-03-02"]))
	assert.Equal(t, []string{"menu:m1"}, keys(res.Days["2024-03-03"]))

	res, err = svc.Calendar(ctx, alice, "2024-03-02", "2024-03-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-02"}, res.Days.Days())
}

func TestService_Agenda(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx := context.Background()

	res, err := svc.Agenda(ctx, alice, "2024-03-02")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-02", res.Day)
	assert.Equal(t, []string{"material:x1", "steps:s1", "menu:m1"}, keys(res.Tasks))

	res, err = svc.Agenda(ctx, alice, "2024-04-01")
	require.NoError(t, err)
	assert.NotNil(t, res.Tasks)
	assert.Empty(t, res.Tasks)

	oldNow := nowFunc
	defer func() { nowFunc = oldNow }()
	nowFunc = func() time.Time { return time.Date(2024, 3, 3, 15, 0, 0, 0, time.UTC) }

	res, err = svc.Agenda(ctx, alice, "")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-03", res.Day)
	assert.Equal(t, []string{"menu:m1"}, keys(res.Tasks))
}

func TestService_Complete(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.Complete(ctx, SourceMaterial, "x1"))

	got, err := svc.Get(ctx, SourceMaterial, "x1")
	require.NoError(t, err)
	assert.True(t, got.Completed)

	// same id in another table is a different task
	assert.Equal(t, ErrNotFound, svc.Complete(ctx, SourceGame, "x1"))

	res, err := svc.Agenda(ctx, alice, "2024-03-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"steps:s1", "menu:m1", "material:x1"}, keys(res.Tasks))
}

func TestService_CreateQueryDelete(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, NewTask{
		Source:    SourceSteps,
		Name:      "Brush teeth",
		StartDate: date(2024, 3, 5),
		EndDate:   date(2024, 3, 6),
		StudentID: bob,
		Steps:     []Step{{Text: "toothpaste"}, {Text: "brush"}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, SourceSteps, created.Source)
	assert.Equal(t, SourceSteps.DefaultImage(), created.Image)
	assert.Len(t, created.Details.Steps, 2)

	tasks, err := svc.Query(ctx, SourceSteps, bob)
	require.NoError(t, err)
	assert.Equal(t, []string{created.Key()}, keys(tasks))

	tasks, err = svc.Query(ctx, SourceSteps, "")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	require.NoError(t, svc.Delete(ctx, SourceSteps, created.ID))
	_, err = svc.Get(ctx, SourceSteps, created.ID)
	assert.Equal(t, ErrNotFound, err)
}

func TestNewTask_Validate(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	valid := func(src Source) NewTask {
		return NewTask{
			Source:    src,
			Name:      " Task ",
			StartDate: date(2024, 3, 1),
			EndDate:   date(2024, 3, 2),
			StudentID: alice,
			Link:      "https://games.test/memory",
			ItemIDs:   []string{"item"},
			Steps:     []Step{{Text: "step"}},
		}
	}

	for _, src := range Sources {
		nt := valid(src)
		assert.NoError(t, nt.Validate(validate), src)
		assert.Equal(t, "Task", nt.Name)
	}

	tests := []struct {
		name   string
		modify func(nt *NewTask)
		field  string
	}{
		{name: "missing name", modify: func(nt *NewTask) { nt.Name = "  " }, field: "name"},
		{name: "end before start", modify: func(nt *NewTask) { nt.EndDate = date(2024, 2, 28) }, field: "end_date"},
		{name: "bad student id", modify: func(nt *NewTask) { nt.StudentID = "alice" }, field: "student_id"},
		{name: "game without link", modify: func(nt *NewTask) { nt.Link = "" }, field: "link"},
		{name: "menu without items", modify: func(nt *NewTask) { nt.Source = SourceMenu; nt.ItemIDs = nil }, field: "item_ids"},
		{name: "steps without steps", modify: func(nt *NewTask) { nt.Source = SourceSteps; nt.Steps = nil }, field: "steps"},
		{name: "empty step", modify: func(nt *NewTask) { nt.Source = SourceSteps; nt.Steps = []Step{{}} }, field: "text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nt := valid(SourceGame)
			tt.modify(&nt)
			err := nt.Validate(validate)
			require.Error(t, err)

			var verrs validator.ValidationErrors
			require.True(t, errors.As(err, &verrs))
			assert.Equal(t, tt.field, verrs[0].Field())
		})
	}
}
