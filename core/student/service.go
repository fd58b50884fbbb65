package student

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/aula/core"
)

var (
	// errors
	ErrNotFound       = errors.New("student not found")
	ErrUsernameExists = errors.New("a student with this username already exists")
	ErrInactive       = errors.New("account deactivated")
	// ErrAuthenticationFailed hides whether the username or the secret was wrong.
	ErrAuthenticationFailed = errors.New("authentication failed")
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username string, excluded ...Student) error
		CreateStudent(ctx context.Context, s Student) (Student, error)
		QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		GetStudent(ctx context.Context, filter GetFilter) (Student, error)
		UpdateStudent(ctx context.Context, s Student) (Student, error)
		DeleteStudentsByID(ctx context.Context, ids ...string) (int, error)
	}

	Service interface {
		CheckUniqueness(username string, excluded ...Student) error
		Create(ctx context.Context, ns NewStudent) (Student, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		GetByID(ctx context.Context, id string) (Student, error)
		GetByUsername(ctx context.Context, username string) (Student, error)
		Update(ctx context.Context, id string, us UpdateStudent) (Student, error)
		Delete(ctx context.Context, ids ...string) error
		// Authenticate checks creds against the secret of the student's login type.
		Authenticate(ctx context.Context, username string, creds Credentials) (Student, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) CheckUniqueness(username string, excluded ...Student) error {
	if err := svc.repo.CheckUsernameUniqueness(context.Background(), username, excluded...); err != nil {
		if errors.Cause(err) == ErrUsernameExists {
			return core.NewValidationError(err, core.FieldError{Field: "username", Error: err.Error()})
		}
		return errors.Wrap(err, "checking uniqueness")
	}
	return nil
}

func (svc *service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	now := time.Now().UTC()
	s := Student{
		Name:      ns.Name,
		Username:  ns.Username,
		Avatar:    ns.Avatar,
		TeacherID: ns.TeacherID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	creds := Credentials{PIN: ns.PIN, Password: ns.Password, Images: ns.Images}
	if err := s.SetCredentials(ns.LoginType, creds); err != nil {
		return Student{}, errors.Wrap(err, "setting credentials")
	}
	return svc.repo.CreateStudent(ctx, s)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsername(ctx context.Context, username string) (Student, error) {
	return svc.repo.GetStudent(ctx, GetFilter{Username: core.CleanString(username, true /* lower */)})
}

func (svc *service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	s, err := svc.repo.GetStudent(ctx, GetFilter{ID: id})
	if err != nil {
		return Student{}, err
	}

	s.Name = us.Name
	s.Username = us.Username
	if us.Avatar != nil {
		s.Avatar = core.CleanString(*us.Avatar)
	}
	if us.TeacherID != nil {
		s.TeacherID = core.CleanString(*us.TeacherID)
	}
	if us.IsActive != nil {
		s.IsActive = *us.IsActive
	}
	if us.hasSecret() {
		creds := Credentials{PIN: us.PIN, Password: us.Password, Images: us.Images}
		if err = s.SetCredentials(us.LoginType, creds); err != nil {
			return Student{}, errors.Wrap(err, "setting credentials")
		}
	}
	s.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStudent(ctx, s)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteStudentsByID(ctx, ids...)
	return err
}

func (svc *service) Authenticate(ctx context.Context, username string, creds Credentials) (Student, error) {
	s, err := svc.GetByUsername(ctx, username)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Student{}, ErrAuthenticationFailed
		}
		return Student{}, errors.Wrap(err, "finding student by username")
	}
	if err = s.CheckCredentials(creds); err != nil {
		return Student{}, ErrAuthenticationFailed
	}
	if !s.IsActive {
		return Student{}, ErrInactive
	}

	s.LastLogin = time.Now().UTC()
	s, err = svc.repo.UpdateStudent(ctx, s)
	return s, errors.Wrap(err, "setting lastLogin")
}
