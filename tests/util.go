package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/aula/core/student"
	"github.com/trezcool/aula/core/task"
	"github.com/trezcool/aula/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func CreateStudent(
	t *testing.T,
	repo student.Repository,
	name, uname string,
	lt student.LoginType,
	creds student.Credentials,
	teacherID string,
	isActive bool,
) student.Student {
	t.Helper()
	now := time.Now().UTC()
	s := student.Student{
		Name:      name,
		Username:  uname,
		TeacherID: teacherID,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.SetCredentials(lt, creds); err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	s, err := repo.CreateStudent(context.Background(), s)
	if err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	return s
}

func CreateTask(t *testing.T, repo task.Repository, rec task.Record) task.Task {
	t.Helper()
	if err := repo.CreateRecord(context.Background(), rec); err != nil {
		t.Fatalf("createTask() failed: %v", err)
	}
	return task.Normalize(rec)
}
