package inmemdb

import (
	"context"

	"github.com/trezcool/aula/core/task"
)

type taskRepository struct {
	db *taskTable
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(db *DB) task.Repository {
	return &taskRepository{db: db.task}
}

func (repo *taskRepository) QueryRecords(ctx context.Context, src task.Source, studentID string) ([]task.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !src.IsValid() {
		return nil, task.ErrUnknownSource
	}

	repo.db.RLock()
	defer repo.db.RUnlock()

	if err := repo.db.fail[src]; err != nil {
		return nil, err
	}
	recs := make([]task.Record, 0)
	for _, rec := range repo.db.tables[src] {
		if studentID == "" || task.Normalize(rec).AssignedStudentID == studentID {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

func (repo *taskRepository) GetRecord(_ context.Context, src task.Source, id string) (task.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, rec := range repo.db.tables[src] {
		if rec.RecordID() == id {
			return rec, nil
		}
	}
	return nil, task.ErrNotFound
}

func (repo *taskRepository) CreateRecord(_ context.Context, rec task.Record) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	src := rec.Source()
	repo.db.tables[src] = append(repo.db.tables[src], rec)
	return nil
}

func (repo *taskRepository) SetCompleted(_ context.Context, src task.Source, id string, completed bool) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for i, rec := range repo.db.tables[src] {
		if rec.RecordID() != id {
			continue
		}
		switch r := rec.(type) {
		case task.GameRecord:
			r.Completed = completed
			repo.db.tables[src][i] = r
		case task.MenuRecord:
			r.Done = completed
			repo.db.tables[src][i] = r
		case task.MaterialRecord:
			r.Collected = completed
			repo.db.tables[src][i] = r
		case task.StepsRecord:
			r.Finished = completed
			repo.db.tables[src][i] = r
		}
		return nil
	}
	return task.ErrNotFound
}

func (repo *taskRepository) DeleteRecordsByID(_ context.Context, src task.Source, ids ...string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	var n int
	kept := make([]task.Record, 0, len(repo.db.tables[src]))
	for _, rec := range repo.db.tables[src] {
		if drop[rec.RecordID()] {
			n++
			continue
		}
		kept = append(kept, rec)
	}
	repo.db.tables[src] = kept
	return n, nil
}
