package task

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/aula/core"
)

var (
	// errors
	ErrNotFound = errors.New("task not found")
)

type (
	Repository interface {
		// QueryRecords returns the rows of src assigned to studentID, or every row if studentID is empty.
		QueryRecords(ctx context.Context, src Source, studentID string) ([]Record, error)
		GetRecord(ctx context.Context, src Source, id string) (Record, error)
		CreateRecord(ctx context.Context, rec Record) error
		// SetCompleted returns ErrNotFound if no row of src has this id.
		SetCompleted(ctx context.Context, src Source, id string, completed bool) error
		DeleteRecordsByID(ctx context.Context, src Source, ids ...string) (int, error)
	}

	// Metrics observes every source fetch.
	Metrics interface {
		ObserveFetch(src Source, elapsed time.Duration, err error)
	}

	Service interface {
		// Tasks fetches the four sources concurrently and merges them in Sources order.
		// A failing source is logged and contributes no task; it is listed in Result.FailedSources.
		Tasks(ctx context.Context, studentID string) (Result, error)
		// Calendar buckets the student's tasks by day, keeping days between from and to (DayLayout, both optional).
		Calendar(ctx context.Context, studentID, from, to string) (CalendarResult, error)
		// Agenda returns the sorted tasks of a single day (DayLayout). Empty day means today.
		Agenda(ctx context.Context, studentID, day string) (AgendaResult, error)
		Complete(ctx context.Context, src Source, id string) error
		Create(ctx context.Context, nt NewTask) (Task, error)
		Query(ctx context.Context, src Source, studentID string) ([]Task, error)
		Get(ctx context.Context, src Source, id string) (Task, error)
		Delete(ctx context.Context, src Source, ids ...string) error
	}

	service struct {
		repo    Repository
		metrics Metrics
		conf    *core.Config
		logger  core.Logger
	}
)

type (
	Result struct {
		Tasks         []Task   `json:"tasks"`
		FailedSources []Source `json:"failed_sources,omitempty"`
	}

	CalendarResult struct {
		Days          DayBuckets `json:"days"`
		FailedSources []Source   `json:"failed_sources,omitempty"`
	}

	AgendaResult struct {
		Day           string   `json:"day"`
		Tasks         []Task   `json:"tasks"`
		FailedSources []Source `json:"failed_sources,omitempty"`
	}
)

var (
	_ Service = (*service)(nil)

	nowFunc = time.Now
)

func NewService(repo Repository, metrics Metrics, conf *core.Config, logger core.Logger) Service {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &service{repo: repo, metrics: metrics, conf: conf, logger: logger}
}

func (svc *service) location() *time.Location {
	if loc := svc.conf.Tasks.Location; loc != nil {
		return loc
	}
	return time.Local
}

func (svc *service) Tasks(ctx context.Context, studentID string) (Result, error) {
	if timeout := svc.conf.Tasks.FetchTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// one slot per source keeps the merge order independent of completion order
	fetched := make([][]Task, len(Sources))
	failed := make([]bool, len(Sources))

	var g errgroup.Group
	for i, src := range Sources {
		g.Go(func() error {
			tasks, err := svc.fetch(ctx, src, studentID)
			// the caller went away; whatever was fetched is meaningless
			if ctx.Err() == context.Canceled {
				return context.Canceled
			}
			if err != nil {
				svc.logger.Error("fetching "+string(src)+" tasks", err, map[string]interface{}{"student_id": studentID})
				failed[i] = true
				return nil // degrade to an empty source
			}
			fetched[i] = tasks
			return nil
		})
	}
	// source failures are absorbed above; only a cancellation gets here
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{Tasks: make([]Task, 0)}
	for i, src := range Sources {
		if failed[i] {
			res.FailedSources = append(res.FailedSources, src)
			continue
		}
		res.Tasks = append(res.Tasks, fetched[i]...)
	}
	return res, nil
}

func (svc *service) fetch(ctx context.Context, src Source, studentID string) ([]Task, error) {
	start := time.Now()
	recs, err := svc.repo.QueryRecords(ctx, src, studentID)
	if ctx.Err() == context.Canceled {
		// not the source's fault
		svc.metrics.ObserveFetch(src, time.Since(start), nil)
		return nil, ctx.Err()
	}
	svc.metrics.ObserveFetch(src, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	loc := svc.location()
	tasks := NormalizeAll(recs)
	for i := range tasks {
		tasks[i] = tasks[i].In(loc)
	}
	return tasks, nil
}

func (svc *service) Calendar(ctx context.Context, studentID, from, to string) (CalendarResult, error) {
	res, err := svc.Tasks(ctx, studentID)
	if err != nil {
		return CalendarResult{}, err
	}
	return CalendarResult{
		Days:          Bucket(res.Tasks).Window(from, to),
		FailedSources: res.FailedSources,
	}, nil
}

func (svc *service) Agenda(ctx context.Context, studentID, day string) (AgendaResult, error) {
	if day == "" {
		day = nowFunc().In(svc.location()).Format(DayLayout)
	}
	res, err := svc.Tasks(ctx, studentID)
	if err != nil {
		return AgendaResult{}, err
	}

	tasks := Bucket(res.Tasks)[day]
	if tasks == nil {
		tasks = make([]Task, 0)
	}
	return AgendaResult{Day: day, Tasks: tasks, FailedSources: res.FailedSources}, nil
}

func (svc *service) Complete(ctx context.Context, src Source, id string) error {
	return svc.repo.SetCompleted(ctx, src, id, true)
}

func (svc *service) Create(ctx context.Context, nt NewTask) (Task, error) {
	rec := nt.record(uuid.New().String())
	if rec == nil {
		return Task{}, ErrUnknownSource
	}
	if err := svc.repo.CreateRecord(ctx, rec); err != nil {
		return Task{}, errors.Wrapf(err, "creating %s task", nt.Source)
	}
	return Normalize(rec).In(svc.location()), nil
}

func (svc *service) Query(ctx context.Context, src Source, studentID string) ([]Task, error) {
	recs, err := svc.repo.QueryRecords(ctx, src, studentID)
	if err != nil {
		return nil, errors.Wrapf(err, "querying %s tasks", src)
	}
	loc := svc.location()
	tasks := NormalizeAll(recs)
	for i := range tasks {
		tasks[i] = tasks[i].In(loc)
	}
	return tasks, nil
}

func (svc *service) Get(ctx context.Context, src Source, id string) (Task, error) {
	rec, err := svc.repo.GetRecord(ctx, src, id)
	if err != nil {
		return Task{}, err
	}
	return Normalize(rec).In(svc.location()), nil
}

func (svc *service) Delete(ctx context.Context, src Source, ids ...string) error {
	_, err := svc.repo.DeleteRecordsByID(ctx, src, ids...)
	return err
}

type nopMetrics struct{}

func (nopMetrics) ObserveFetch(Source, time.Duration, error) {}
