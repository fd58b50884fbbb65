package inmemdb

import (
	"sync"

	"github.com/trezcool/aula/core/student"
	"github.com/trezcool/aula/core/task"
	"github.com/trezcool/aula/core/user"
)

type (
	// DB keeps every table in memory. It backs the tests and local runs without postgres.
	DB struct {
		user    *userTable
		student *studentTable
		task    *taskTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	studentTable struct {
		sync.RWMutex
		table map[string]*student.Student
	}

	taskTable struct {
		sync.RWMutex
		tables map[task.Source][]task.Record // insertion order
		fail   map[task.Source]error
	}
)

func Open() *DB {
	return &DB{
		user:    &userTable{table: make(map[string]*user.User)},
		student: &studentTable{table: make(map[string]*student.Student)},
		task: &taskTable{
			tables: make(map[task.Source][]task.Record),
			fail:   make(map[task.Source]error),
		},
	}
}

// FailSource makes every query of src return err until it is called again with a nil err.
func (db *DB) FailSource(src task.Source, err error) {
	db.task.Lock()
	defer db.task.Unlock()
	if err == nil {
		delete(db.task.fail, src)
		return
	}
	db.task.fail[src] = err
}
