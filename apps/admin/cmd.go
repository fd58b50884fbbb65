package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/aula/core"
	"github.com/trezcool/aula/core/student"
	"github.com/trezcool/aula/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sql.DB
	usrRepo    user.Repository
	stSvc      student.Service
	logger     core.Logger
	validate   *validator.Validate
	translator ut.Translator
}

func newCommandLine(db *sql.DB, usrRepo user.Repository, stRepo student.Repository, logger core.Logger) *commandLine {
	cli := &commandLine{
		db:         db,
		usrRepo:    usrRepo,
		stSvc:      student.NewService(stRepo),
		logger:     logger,
		validate:   validator.New(),
		translator: core.NewTranslator(),
	}
	core.InitValidators(cli.validate, cli.translator)
	student.InitValidators(cli.validate, cli.translator)
	return cli
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS...] - run a goose migration command (up, up-to, down, down-to, redo, reset, status, version, create, fix)")
	fmt.Println("  adduser -username USERNAME -email EMAIL [-name NAME] [-admin|-teacher] - create or update a staff member")
	fmt.Println("  addstudent -username USERNAME -type pin|password|images [-name NAME] [-teacher ID] - create a student")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
}

// prompt reads a secret without echoing it.
func (cli *commandLine) prompt(label string) (string, error) {
	fmt.Print(label + ":")
	secret, err := readPasswordFunc(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(secret)), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserUname := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant every admin role.")
	addUserTeacher := addUserCmd.Bool("teacher", false, "Grant the teacher role.")

	addStudentCmd := flag.NewFlagSet("addstudent", flag.ContinueOnError)
	addStudentName := addStudentCmd.String("name", "", "The student's full name.")
	addStudentUname := addStudentCmd.String("username", "", "The student's username. The secret will be prompted next.")
	addStudentType := addStudentCmd.String("type", string(student.LoginPIN), "The login type: pin, password or images.")
	addStudentTeacher := addStudentCmd.String("teacher", "", "The ID of the student's teacher.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" && *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.prompt("Enter password")
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		var roles []string
		switch {
		case *addUserAdmin:
			roles = user.AllRoles
		case *addUserTeacher:
			roles = user.TeacherRoles
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, pwd, roles)

	case "addstudent":
		if err := addStudentCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addStudentUname == "" {
			addStudentCmd.Usage()
			return errHelp
		}
		lt := student.LoginType(strings.ToLower(*addStudentType))
		label := "Enter " + string(lt)
		if lt == student.LoginImages {
			label = "Enter images (comma-separated, in order)"
		}
		secret, err := cli.prompt(label)
		if err != nil {
			return err
		}
		if secret == "" {
			addStudentCmd.Usage()
			return errHelp
		}
		return cli.addStudent(*addStudentName, *addStudentUname, lt, secret, *addStudentTeacher)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.prompt("Enter password")
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	default:
		cli.printUsage()
		return errHelp
	}
}
