package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/aula/core"
)

// LoginType is the way a Student authenticates.
type LoginType string

const (
	LoginPIN      LoginType = "pin"
	LoginPassword LoginType = "password"
	LoginImages   LoginType = "images"
)

var LoginTypes = []LoginType{LoginPIN, LoginPassword, LoginImages}

func (lt LoginType) IsValid() bool {
	switch lt {
	case LoginPIN, LoginPassword, LoginImages:
		return true
	}
	return false
}

// Student is a pupil. Students only ever see their own tasks.
type Student struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Username        string    `json:"username"`
	LoginType       LoginType `json:"login_type"`
	PINHash         []byte    `json:"-"`
	PasswordHash    []byte    `json:"-"`
	ImageCredential string    `json:"-"` // comma-separated image names, order matters
	Avatar          string    `json:"avatar"`
	TeacherID       string    `json:"teacher_id,omitempty"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"` // UTC
	UpdatedAt       time.Time `json:"updated_at"` // UTC
	LastLogin       time.Time `json:"last_login"` // UTC
}

func (s Student) Person() core.Person {
	return core.Person{ID: s.ID, Username: s.Username}
}

// LoginInfo is what the login screen needs to know before the student enters a secret.
type LoginInfo struct {
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	LoginType LoginType `json:"login_type"`
	Images    []string  `json:"images,omitempty"`
}

func (s Student) LoginInfo() LoginInfo {
	info := LoginInfo{
		Username:  s.Username,
		Name:      s.Name,
		Avatar:    s.Avatar,
		LoginType: s.LoginType,
	}
	if s.LoginType == LoginImages {
		info.Images = LoginImageCatalogue
	}
	return info
}

// Credentials holds the secret matching a Student's LoginType; other fields are ignored.
type Credentials struct {
	PIN      string   `json:"pin"`
	Password string   `json:"password"`
	Images   []string `json:"images"`
}

// NewStudent contains information needed to create a new Student.
type NewStudent struct {
	Name      string    `json:"name" validate:"required"`
	Username  string    `json:"username" validate:"required,min=3,alphanum_"`
	LoginType LoginType `json:"login_type" validate:"required,logintype"`
	PIN       string    `json:"pin"`
	Password  string    `json:"password"`
	Images    []string  `json:"images"`
	Avatar    string    `json:"avatar" validate:"omitempty,max=255"`
	TeacherID string    `json:"teacher_id" validate:"omitempty,uuid"`
}

func (ns *NewStudent) Validate(validate *validator.Validate, svc Service) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Username = core.CleanString(ns.Username, true /* lower */)
	ns.Avatar = core.CleanString(ns.Avatar)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckUniqueness(ns.Username)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Credentials are only replaced when the secret for the (new) LoginType is provided.
type UpdateStudent struct {
	Name      string    `json:"name"`
	Username  string    `json:"username" validate:"omitempty,min=3,alphanum_"`
	LoginType LoginType `json:"login_type" validate:"omitempty,logintype"`
	PIN       string    `json:"pin"`
	Password  string    `json:"password"`
	Images    []string  `json:"images"`
	Avatar    *string   `json:"avatar" validate:"omitempty,max=255"`
	TeacherID *string   `json:"teacher_id" validate:"omitempty,uuid|len=0"`
	IsActive  *bool     `json:"is_active"`
}

func (us *UpdateStudent) Validate(orig Student, validate *validator.Validate, svc Service) error {
	if name := core.CleanString(us.Name); name != "" {
		us.Name = name
	} else {
		us.Name = orig.Name
	}
	if uname := core.CleanString(us.Username, true /* lower */); uname != "" {
		us.Username = uname
	} else {
		us.Username = orig.Username
	}
	if us.LoginType == "" {
		us.LoginType = orig.LoginType
	}

	if err := validate.Struct(us); err != nil {
		return err
	}
	// switching to another login type requires its secret
	if us.LoginType != orig.LoginType && !us.hasSecret() {
		return core.NewValidationError(nil, core.FieldError{Field: string(us.LoginType), Error: "this field is required"})
	}
	return svc.CheckUniqueness(us.Username, orig)
}

func (us *UpdateStudent) hasSecret() bool {
	switch us.LoginType {
	case LoginPIN:
		return us.PIN != ""
	case LoginPassword:
		return us.Password != ""
	case LoginImages:
		return len(us.Images) > 0
	}
	return false
}

type QueryFilter struct {
	Search    string `query:"search"`
	TeacherID string `query:"teacher"`
	IsActive  *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.TeacherID = core.CleanString(qf.TeacherID)
}

// GetFilter selects a single Student; the first non-empty field wins.
type GetFilter struct {
	ID       string
	Username string
}
