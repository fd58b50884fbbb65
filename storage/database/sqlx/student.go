package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/aula/core"
	"github.com/trezcool/aula/core/student"
)

const studentColumns = `id, name, username, login_type, pin_hash, password_hash, image_credential, avatar,
	teacher_id, is_active, created_at, updated_at, last_login`

var studentOrderColumns = map[string]string{
	"name":       "name",
	"username":   "username",
	"created_at": "created_at",
	"last_login": "last_login",
}

type studentRow struct {
	ID              string      `db:"id"`
	Name            string      `db:"name"`
	Username        string      `db:"username"`
	LoginType       string      `db:"login_type"`
	PINHash         []byte      `db:"pin_hash"`
	PasswordHash    []byte      `db:"password_hash"`
	ImageCredential null.String `db:"image_credential"`
	Avatar          null.String `db:"avatar"`
	TeacherID       null.String `db:"teacher_id"`
	IsActive        bool        `db:"is_active"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
	LastLogin       null.Time   `db:"last_login"`
}

func newStudentRow(s student.Student) studentRow {
	return studentRow{
		ID:              s.ID,
		Name:            s.Name,
		Username:        s.Username,
		LoginType:       string(s.LoginType),
		PINHash:         s.PINHash,
		PasswordHash:    s.PasswordHash,
		ImageCredential: null.NewString(s.ImageCredential, s.ImageCredential != ""),
		Avatar:          null.NewString(s.Avatar, s.Avatar != ""),
		TeacherID:       null.NewString(s.TeacherID, s.TeacherID != ""),
		IsActive:        s.IsActive,
		CreatedAt:       s.CreatedAt.UTC(),
		UpdatedAt:       s.UpdatedAt.UTC(),
		LastLogin:       null.NewTime(s.LastLogin.UTC(), !s.LastLogin.IsZero()),
	}
}

func (row studentRow) student() student.Student {
	return student.Student{
		ID:              row.ID,
		Name:            row.Name,
		Username:        row.Username,
		LoginType:       student.LoginType(row.LoginType),
		PINHash:         row.PINHash,
		PasswordHash:    row.PasswordHash,
		ImageCredential: row.ImageCredential.String,
		Avatar:          row.Avatar.String,
		TeacherID:       row.TeacherID.String,
		IsActive:        row.IsActive,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
		LastLogin:       row.LastLogin.Time.UTC(),
	}
}

type studentRepository struct {
	db core.DBExecutor
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db core.DBExecutor) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CheckUsernameUniqueness(ctx context.Context, username string, excluded ...student.Student) error {
	var w where
	w.add("username = ?", username)
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, s := range excluded {
			ids = append(ids, s.ID)
		}
		w.add("id <> ALL(?)", pq.Array(validUUIDs(ids)))
	}

	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM student` + w.String() + `)`
	if err := repo.db.GetContext(ctx, &exists, q, w.args...); err != nil {
		return errors.Wrap(err, "checking student uniqueness")
	}
	if exists {
		return student.ErrUsernameExists
	}
	return nil
}

func (repo *studentRepository) CreateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	s.ID = uuid.New().String()
	q := `INSERT INTO student (` + studentColumns + `)
		VALUES (:id, :name, :username, :login_type, :pin_hash, :password_hash, :image_credential, :avatar,
			:teacher_id, :is_active, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, q, newStudentRow(s)); err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return s, nil
}

func (repo *studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			w.add("name ILIKE ? OR username ILIKE ?", val, val)
		}
		if filter.TeacherID != "" {
			if _, err := uuid.Parse(filter.TeacherID); err != nil {
				return make([]student.Student, 0), nil
			}
			w.add("teacher_id = ?", filter.TeacherID)
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
	}

	q := `SELECT ` + studentColumns + ` FROM student` + w.String() + orderBy(ordering, studentOrderColumns)
	var rows []studentRow
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}

	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.student())
	}
	return students, nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, filter student.GetFilter) (student.Student, error) {
	var w where
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return student.Student{}, student.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.Username != "":
		w.add("username = ?", filter.Username)
	default:
		return student.Student{}, student.ErrNotFound
	}

	var row studentRow
	q := `SELECT ` + studentColumns + ` FROM student` + w.String()
	if err := repo.db.GetContext(ctx, &row, q, w.args...); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "finding student")
	}
	return row.student(), nil
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	q := `UPDATE student SET
		name = :name, username = :username, login_type = :login_type, pin_hash = :pin_hash,
		password_hash = :password_hash, image_credential = :image_credential, avatar = :avatar,
		teacher_id = :teacher_id, is_active = :is_active, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, newStudentRow(s))
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if err = checkAffected(res, student.ErrNotFound); err != nil {
		return student.Student{}, err
	}
	return s, nil
}

func (repo *studentRepository) DeleteStudentsByID(ctx context.Context, ids ...string) (int, error) {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM student WHERE id = ANY($1)`, pq.Array(validUUIDs(ids)))
	if err != nil {
		return 0, errors.Wrap(err, "deleting students")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "counting deleted students")
}
