package sqlxrepos

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/aula/core"
	"github.com/trezcool/aula/core/task"
)

// taskTable describes where and how a task source is stored.
type taskTable struct {
	name      string
	columns   string
	insert    string // named values matching columns
	student   string // assigned student column
	completed string // completion flag column
	start     string // start date column
}

var taskTables = map[task.Source]taskTable{
	task.SourceGame: {
		name:      "game_task",
		columns:   "id, name, description, start_date, end_date, student_id, completed, image, link",
		insert:    ":id, :name, :description, :start_date, :end_date, :student_id, :completed, :image, :link",
		student:   "student_id",
		completed: "completed",
		start:     "start_date",
	},
	task.SourceMenu: {
		name:      "menu_task",
		columns:   "id, title, notes, date_from, date_to, assigned_to, done, picture, classroom, menu_ids",
		insert:    ":id, :title, :notes, :date_from, :date_to, :assigned_to, :done, :picture, :classroom, :menu_ids",
		student:   "assigned_to",
		completed: "done",
		start:     "date_from",
	},
	task.SourceMaterial: {
		name:      "material_task",
		columns:   "id, name, description, pickup_from, pickup_to, student_id, collected, image, classroom, material_ids",
		insert:    ":id, :name, :description, :pickup_from, :pickup_to, :student_id, :collected, :image, :classroom, :material_ids",
		student:   "student_id",
		completed: "collected",
		start:     "pickup_from",
	},
	task.SourceSteps: {
		name:      "steps_task",
		columns:   "id, title, instructions, starts_on, ends_on, student_id, finished, cover, steps",
		insert:    ":id, :title, :instructions, :starts_on, :ends_on, :student_id, :finished, :cover, :steps",
		student:   "student_id",
		completed: "finished",
		start:     "starts_on",
	},
}

type recordRow interface {
	record() task.Record
}

type gameRow struct {
	ID          string      `db:"id"`
	Name        string      `db:"name"`
	Description null.String `db:"description"`
	StartDate   time.Time   `db:"start_date"`
	EndDate     time.Time   `db:"end_date"`
	StudentID   null.String `db:"student_id"`
	Completed   bool        `db:"completed"`
	Image       null.String `db:"image"`
	Link        string      `db:"link"`
}

func (row gameRow) record() task.Record {
	return task.GameRecord{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description.String,
		StartDate:   row.StartDate,
		EndDate:     row.EndDate,
		StudentID:   row.StudentID.String,
		Completed:   row.Completed,
		Image:       row.Image.String,
		Link:        row.Link,
	}
}

type menuRow struct {
	ID         string         `db:"id"`
	Title      string         `db:"title"`
	Notes      null.String    `db:"notes"`
	DateFrom   time.Time      `db:"date_from"`
	DateTo     time.Time      `db:"date_to"`
	AssignedTo null.String    `db:"assigned_to"`
	Done       bool           `db:"done"`
	Picture    null.String    `db:"picture"`
	Classroom  null.String    `db:"classroom"`
	MenuIDs    pq.StringArray `db:"menu_ids"`
}

func (row menuRow) record() task.Record {
	return task.MenuRecord{
		ID:         row.ID,
		Title:      row.Title,
		Notes:      row.Notes.String,
		DateFrom:   row.DateFrom,
		DateTo:     row.DateTo,
		AssignedTo: row.AssignedTo.String,
		Done:       row.Done,
		Picture:    row.Picture.String,
		Classroom:  row.Classroom.String,
		MenuIDs:    row.MenuIDs,
	}
}

type materialRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Description null.String    `db:"description"`
	PickupFrom  time.Time      `db:"pickup_from"`
	PickupTo    time.Time      `db:"pickup_to"`
	StudentID   null.String    `db:"student_id"`
	Collected   bool           `db:"collected"`
	Image       null.String    `db:"image"`
	Classroom   null.String    `db:"classroom"`
	MaterialIDs pq.StringArray `db:"material_ids"`
}

func (row materialRow) record() task.Record {
	return task.MaterialRecord{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description.String,
		PickupFrom:  row.PickupFrom,
		PickupTo:    row.PickupTo,
		StudentID:   row.StudentID.String,
		Collected:   row.Collected,
		Image:       row.Image.String,
		Classroom:   row.Classroom.String,
		MaterialIDs: row.MaterialIDs,
	}
}

// stepList is stored as a jsonb array.
type stepList []task.Step

func (sl stepList) Value() (driver.Value, error) {
	if sl == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(sl)
}

func (sl *stepList) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*sl = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("cannot scan %T into steps", src)
	}
	return json.Unmarshal(data, (*[]task.Step)(sl))
}

type stepsRow struct {
	ID           string      `db:"id"`
	Title        string      `db:"title"`
	Instructions null.String `db:"instructions"`
	StartsOn     time.Time   `db:"starts_on"`
	EndsOn       time.Time   `db:"ends_on"`
	StudentID    null.String `db:"student_id"`
	Finished     bool        `db:"finished"`
	Cover        null.String `db:"cover"`
	Steps        stepList    `db:"steps"`
}

func (row stepsRow) record() task.Record {
	return task.StepsRecord{
		ID:           row.ID,
		Title:        row.Title,
		Instructions: row.Instructions.String,
		StartsOn:     row.StartsOn,
		EndsOn:       row.EndsOn,
		StudentID:    row.StudentID.String,
		Finished:     row.Finished,
		Cover:        row.Cover.String,
		Steps:        row.Steps,
	}
}

func optString(s string) null.String {
	return null.NewString(s, s != "")
}

// newRecordRow maps a record to the row of its table.
func newRecordRow(rec task.Record) (interface{}, error) {
	switch r := rec.(type) {
	case task.GameRecord:
		return gameRow{
			ID: r.ID, Name: r.Name, Description: optString(r.Description),
			StartDate: r.StartDate.UTC(), EndDate: r.EndDate.UTC(), StudentID: optString(r.StudentID),
			Completed: r.Completed, Image: optString(r.Image), Link: r.Link,
		}, nil
	case task.MenuRecord:
		return menuRow{
			ID: r.ID, Title: r.Title, Notes: optString(r.Notes),
			DateFrom: r.DateFrom.UTC(), DateTo: r.DateTo.UTC(), AssignedTo: optString(r.AssignedTo),
			Done: r.Done, Picture: optString(r.Picture), Classroom: optString(r.Classroom),
			MenuIDs: pq.StringArray(nonNil(r.MenuIDs)),
		}, nil
	case task.MaterialRecord:
		return materialRow{
			ID: r.ID, Name: r.Name, Description: optString(r.Description),
			PickupFrom: r.PickupFrom.UTC(), PickupTo: r.PickupTo.UTC(), StudentID: optString(r.StudentID),
			Collected: r.Collected, Image: optString(r.Image), Classroom: optString(r.Classroom),
			MaterialIDs: pq.StringArray(nonNil(r.MaterialIDs)),
		}, nil
	case task.StepsRecord:
		return stepsRow{
			ID: r.ID, Title: r.Title, Instructions: optString(r.Instructions),
			StartsOn: r.StartsOn.UTC(), EndsOn: r.EndsOn.UTC(), StudentID: optString(r.StudentID),
			Finished: r.Finished, Cover: optString(r.Cover), Steps: r.Steps,
		}, nil
	}
	return nil, task.ErrUnknownSource
}

func nonNil(ids []string) []string {
	if ids == nil {
		return make([]string, 0)
	}
	return ids
}

func selectRecords[R recordRow](ctx context.Context, db core.DBExecutor, q string, args ...interface{}) ([]task.Record, error) {
	var rows []R
	if err := db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	recs := make([]task.Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, row.record())
	}
	return recs, nil
}

type taskRepository struct {
	db core.DBExecutor
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(db core.DBExecutor) task.Repository {
	return &taskRepository{db: db}
}

func (repo *taskRepository) query(ctx context.Context, src task.Source, w where, suffix string) ([]task.Record, error) {
	t, ok := taskTables[src]
	if !ok {
		return nil, task.ErrUnknownSource
	}

	q := "SELECT " + t.columns + " FROM " + t.name + w.String() + suffix
	switch src {
	case task.SourceGame:
		return selectRecords[gameRow](ctx, repo.db, q, w.args...)
	case task.SourceMenu:
		return selectRecords[menuRow](ctx, repo.db, q, w.args...)
	case task.SourceMaterial:
		return selectRecords[materialRow](ctx, repo.db, q, w.args...)
	default:
		return selectRecords[stepsRow](ctx, repo.db, q, w.args...)
	}
}

func (repo *taskRepository) QueryRecords(ctx context.Context, src task.Source, studentID string) ([]task.Record, error) {
	t, ok := taskTables[src]
	if !ok {
		return nil, task.ErrUnknownSource
	}

	var w where
	if studentID != "" {
		if _, err := uuid.Parse(studentID); err != nil {
			return make([]task.Record, 0), nil
		}
		w.add(t.student+" = ?", studentID)
	}

	recs, err := repo.query(ctx, src, w, " ORDER BY "+t.start+", id")
	if err != nil {
		return nil, errors.Wrapf(err, "querying %s", t.name)
	}
	return recs, nil
}

func (repo *taskRepository) GetRecord(ctx context.Context, src task.Source, id string) (task.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, task.ErrNotFound
	}

	var w where
	w.add("id = ?", id)
	recs, err := repo.query(ctx, src, w, "")
	if err != nil {
		return nil, errors.Wrapf(err, "finding %s task", src)
	}
	if len(recs) == 0 {
		return nil, task.ErrNotFound
	}
	return recs[0], nil
}

func (repo *taskRepository) CreateRecord(ctx context.Context, rec task.Record) error {
	t, ok := taskTables[rec.Source()]
	if !ok {
		return task.ErrUnknownSource
	}
	row, err := newRecordRow(rec)
	if err != nil {
		return err
	}

	q := "INSERT INTO " + t.name + " (" + t.columns + ") VALUES (" + t.insert + ")"
	if _, err = repo.db.NamedExecContext(ctx, q, row); err != nil {
		return errors.Wrapf(err, "inserting into %s", t.name)
	}
	return nil
}

func (repo *taskRepository) SetCompleted(ctx context.Context, src task.Source, id string, completed bool) error {
	t, ok := taskTables[src]
	if !ok {
		return task.ErrUnknownSource
	}
	if _, err := uuid.Parse(id); err != nil {
		return task.ErrNotFound
	}

	res, err := repo.db.ExecContext(ctx, "UPDATE "+t.name+" SET "+t.completed+" = $1 WHERE id = $2", completed, id)
	if err != nil {
		return errors.Wrapf(err, "updating %s", t.name)
	}
	return checkAffected(res, task.ErrNotFound)
}

func (repo *taskRepository) DeleteRecordsByID(ctx context.Context, src task.Source, ids ...string) (int, error) {
	t, ok := taskTables[src]
	if !ok {
		return 0, task.ErrUnknownSource
	}

	res, err := repo.db.ExecContext(ctx, "DELETE FROM "+t.name+" WHERE id = ANY($1)", pq.Array(validUUIDs(ids)))
	if err != nil {
		return 0, errors.Wrapf(err, "deleting from %s", t.name)
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "counting deleted tasks")
}
