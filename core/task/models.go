package task

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/aula/core"
)

// Task is the common shape of the four task sources. It is rebuilt on every fetch.
// ID is only unique within Source; use Key for a global identifier.
type Task struct {
	ID                string    `json:"id"`
	Source            Source    `json:"source"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	Completed         bool      `json:"completed"`
	AssignedStudentID string    `json:"assigned_student_id,omitempty"`
	Image             string    `json:"image"`
	Details           Details   `json:"details"`
}

// Details holds the source specific fields a view may want to render.
type Details struct {
	Link      string   `json:"link,omitempty"`      // game
	Classroom string   `json:"classroom,omitempty"` // menu, material
	ItemIDs   []string `json:"item_ids,omitempty"`  // menu, material
	Steps     []Step   `json:"steps,omitempty"`     // steps
}

type Step struct {
	Text  string `json:"text" validate:"required"`
	Image string `json:"image,omitempty"`
}

func (t Task) Key() string {
	return string(t.Source) + ":" + t.ID
}

// In returns t with its dates expressed in loc.
func (t Task) In(loc *time.Location) Task {
	t.StartDate = t.StartDate.In(loc)
	t.EndDate = t.EndDate.In(loc)
	return t
}

// Record is a raw row of one of the source tables.
type Record interface {
	Source() Source
	RecordID() string
}

type GameRecord struct {
	ID          string
	Name        string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	StudentID   string
	Completed   bool
	Image       string
	Link        string
}

type MenuRecord struct {
	ID         string
	Title      string
	Notes      string
	DateFrom   time.Time
	DateTo     time.Time
	AssignedTo string
	Done       bool
	Picture    string
	Classroom  string
	MenuIDs    []string
}

type MaterialRecord struct {
	ID          string
	Name        string
	Description string
	PickupFrom  time.Time
	PickupTo    time.Time
	StudentID   string
	Collected   bool
	Image       string
	Classroom   string
	MaterialIDs []string
}

type StepsRecord struct {
	ID           string
	Title        string
	Instructions string
	StartsOn     time.Time
	EndsOn       time.Time
	StudentID    string
	Finished     bool
	Cover        string
	Steps        []Step
}

func (GameRecord) Source() Source     { return SourceGame }
func (MenuRecord) Source() Source     { return SourceMenu }
func (MaterialRecord) Source() Source { return SourceMaterial }
func (StepsRecord) Source() Source    { return SourceSteps }

func (r GameRecord) RecordID() string     { return r.ID }
func (r MenuRecord) RecordID() string     { return r.ID }
func (r MaterialRecord) RecordID() string { return r.ID }
func (r StepsRecord) RecordID() string    { return r.ID }

// NewTask contains information needed to create a Task in the table of Source.
type NewTask struct {
	Source      Source    `json:"-"`
	Name        string    `json:"name" validate:"required,max=200"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required,gtefield=StartDate"`
	StudentID   string    `json:"student_id" validate:"omitempty,uuid"`
	Image       string    `json:"image" validate:"omitempty,max=255"`
	Link        string    `json:"link" validate:"omitempty,url"`
	Classroom   string    `json:"classroom" validate:"omitempty,max=100"`
	ItemIDs     []string  `json:"item_ids"`
	Steps       []Step    `json:"steps" validate:"dive"`
}

func (nt *NewTask) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Description = core.CleanString(nt.Description)
	nt.StudentID = core.CleanString(nt.StudentID)
	nt.Image = core.CleanString(nt.Image)
	nt.Link = core.CleanString(nt.Link)
	nt.Classroom = core.CleanString(nt.Classroom)
	return validate.Struct(nt)
}

// record builds the row of nt's Source table.
func (nt NewTask) record(id string) Record {
	switch nt.Source {
	case SourceGame:
		return GameRecord{
			ID: id, Name: nt.Name, Description: nt.Description,
			StartDate: nt.StartDate, EndDate: nt.EndDate, StudentID: nt.StudentID,
			Image: nt.Image, Link: nt.Link,
		}
	case SourceMenu:
		return MenuRecord{
			ID: id, Title: nt.Name, Notes: nt.Description,
			DateFrom: nt.StartDate, DateTo: nt.EndDate, AssignedTo: nt.StudentID,
			Picture: nt.Image, Classroom: nt.Classroom, MenuIDs: nt.ItemIDs,
		}
	case SourceMaterial:
		return MaterialRecord{
			ID: id, Name: nt.Name, Description: nt.Description,
			PickupFrom: nt.StartDate, PickupTo: nt.EndDate, StudentID: nt.StudentID,
			Image: nt.Image, Classroom: nt.Classroom, MaterialIDs: nt.ItemIDs,
		}
	case SourceSteps:
		return StepsRecord{
			ID: id, Title: nt.Name, Instructions: nt.Description,
			StartsOn: nt.StartDate, EndsOn: nt.EndDate, StudentID: nt.StudentID,
			Cover: nt.Image, Steps: nt.Steps,
		}
	}
	return nil
}
