package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/aula/core"
	logsvc "github.com/trezcool/aula/services/logger"
	"github.com/trezcool/aula/storage/database"
	sqlxrepos "github.com/trezcool/aula/storage/database/sqlx"
)

func main() {
	if err := run(os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %+v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	conf, err := core.NewConfig()
	if err != nil {
		return errors.Wrap(err, "loading config")
	}

	zl, err := logsvc.NewZap(conf)
	if err != nil {
		return errors.Wrap(err, "setting up zap")
	}
	defer func() { _ = zl.Sync() }()
	logger := logsvc.NewZapLogger(zl.Named("admin"))

	// set up DB
	if err = database.CreateIfNotExist(conf); err != nil {
		return errors.Wrap(err, "creating database")
	}
	db, err := database.Open(conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	// start CLI
	cli := newCommandLine(db.DB, sqlxrepos.NewUserRepository(db), sqlxrepos.NewStudentRepository(db), logger)
	return cli.run(args)
}
