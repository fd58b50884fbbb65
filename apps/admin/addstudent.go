package main

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/aula/core"
	"github.com/trezcool/aula/core/student"
)

func (cli *commandLine) addStudent(name, uname string, lt student.LoginType, secret, teacherID string) error {
	if name == "" {
		name = uname
	}
	ns := student.NewStudent{Name: name, Username: uname, LoginType: lt, TeacherID: teacherID}
	switch lt {
	case student.LoginPIN:
		ns.PIN = secret
	case student.LoginPassword:
		ns.Password = secret
	case student.LoginImages:
		for _, img := range strings.Split(secret, ",") {
			ns.Images = append(ns.Images, strings.TrimSpace(img))
		}
	}

	if err := ns.Validate(cli.validate, cli.stSvc); err != nil {
		return cli.describe(err)
	}
	s, err := cli.stSvc.Create(context.Background(), ns)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	cli.logger.Info("student created", map[string]interface{}{"id": s.ID, "username": s.Username})
	return nil
}

// describe turns validation errors into a readable message.
func (cli *commandLine) describe(err error) error {
	var msgs []string
	switch vErr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		for _, fErr := range vErr {
			msgs = append(msgs, fErr.Field()+": "+fErr.Translate(cli.translator))
		}
	case *core.ValidationError:
		for _, fErr := range vErr.Fields {
			msgs = append(msgs, fErr.Field+": "+fErr.Error)
		}
	}
	if msgs == nil {
		return err
	}
	return errors.New(strings.Join(msgs, "; "))
}
