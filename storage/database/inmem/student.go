package inmemdb

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/aula/core"
	"github.com/trezcool/aula/core/student"
)

var studentFields = map[string]func(student.Student) string{
	"name":       func(s student.Student) string { return s.Name },
	"username":   func(s student.Student) string { return s.Username },
	"created_at": func(s student.Student) string { return s.CreatedAt.Format(time.RFC3339Nano) },
	"last_login": func(s student.Student) string { return s.LastLogin.Format(time.RFC3339Nano) },
}

type studentRepository struct {
	db *studentTable
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db.student}
}

func (repo *studentRepository) CheckUsernameUniqueness(_ context.Context, username string, excluded ...student.Student) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, s := range repo.db.table {
		if s.Username != username {
			continue
		}
		var isExcluded bool
		for _, ex := range excluded {
			if ex.ID == s.ID {
				isExcluded = true
				break
			}
		}
		if !isExcluded {
			return student.ErrUsernameExists
		}
	}
	return nil
}

func (repo *studentRepository) CreateStudent(_ context.Context, s student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	s.ID = uuid.New().String()
	repo.db.table[s.ID] = &s
	return s, nil
}

func (repo *studentRepository) QueryStudents(_ context.Context, filter *student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := make([]student.Student, 0, len(repo.db.table))
	for _, s := range repo.db.table {
		if filter != nil {
			if filter.Search != "" && !containsFold(s.Name, filter.Search) && !containsFold(s.Username, filter.Search) {
				continue
			}
			if filter.TeacherID != "" && s.TeacherID != filter.TeacherID {
				continue
			}
			if filter.IsActive != nil && s.IsActive != *filter.IsActive {
				continue
			}
		}
		students = append(students, *s)
	}
	sortBy(students, ordering, studentFields, func(s student.Student) time.Time { return s.CreatedAt })
	return students, nil
}

func (repo *studentRepository) GetStudent(_ context.Context, filter student.GetFilter) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if s, ok := repo.db.table[filter.ID]; ok {
			return *s, nil
		}
		return student.Student{}, student.ErrNotFound
	}
	if filter.Username != "" {
		for _, s := range repo.db.table {
			if s.Username == filter.Username {
				return *s, nil
			}
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) UpdateStudent(_ context.Context, s student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[s.ID]; !ok {
		return student.Student{}, student.ErrNotFound
	}
	repo.db.table[s.ID] = &s
	return s, nil
}

func (repo *studentRepository) DeleteStudentsByID(_ context.Context, ids ...string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			n++
		}
	}
	return n, nil
}
