package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	echoapi "github.com/trezcool/aula/apps/api/echo"
	"github.com/trezcool/aula/core"
	"github.com/trezcool/aula/core/student"
	"github.com/trezcool/aula/core/task"
	"github.com/trezcool/aula/core/user"
	emailsvc "github.com/trezcool/aula/services/email"
	logsvc "github.com/trezcool/aula/services/logger"
	metricsvc "github.com/trezcool/aula/services/metrics"
	"github.com/trezcool/aula/storage/database"
	inmemdb "github.com/trezcool/aula/storage/database/inmem"
	sqlxrepos "github.com/trezcool/aula/storage/database/sqlx"
)

type repositories struct {
	user    user.Repository
	student student.Repository
	task    task.Repository
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig()
	if err != nil {
		return errors.Wrap(err, "loading config")
	}

	// set up loggers
	zl, err := logsvc.NewZap(conf)
	if err != nil {
		return errors.Wrap(err, "setting up zap")
	}
	defer func() { _ = zl.Sync() }()

	logger := logsvc.NewRollbarLogger(zl.Named("api"), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	defer logger.Close()

	dbLogger := logsvc.NewRollbarLogger(zl.Named("db"), conf)
	dbLogger.Enable(!conf.Debug && conf.RollbarToken != "")

	// set up DB
	repos, closeDB, err := setUpRepositories(conf, dbLogger)
	if err != nil {
		logger.Error("setting up database", err)
		return errors.Wrap(err, "setting up database")
	}
	defer closeDB()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	metrics := metricsvc.New("aula")

	usrSvc := user.NewService(repos.user, mailSvc, conf, logger)
	stSvc := student.NewService(repos.student)
	taskSvc := task.NewService(repos.task, metrics, conf, logger)

	// =========================================================================
	// Initialize App

	logger.Info("application initializing", map[string]interface{}{"version": conf.Build, "env": conf.Env})
	defer logger.Info("application stopped")

	user.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error("debug server closed", err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		UserSvc:    usrSvc,
		StudentSvc: stSvc,
		TaskSvc:    taskSvc,
		Metrics:    metrics,
	})

	go server.Start()
	logger.Info("api listening", map[string]interface{}{"address": conf.Server.Address})

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		return errors.Wrap(err, "server error")

	case sig := <-server.ShutdownSignal():
		logger.Info("start shutdown", map[string]interface{}{"signal": sig.String()})

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error("could not stop server gracefully", err)
			if err = server.Close(); err != nil {
				return errors.Wrap(err, "could not force stop server")
			}
		}
	}
	return nil
}

// setUpRepositories picks the storage named by database.engine: "postgres" or "memory".
func setUpRepositories(conf *core.Config, logger core.Logger) (repositories, func(), error) {
	if conf.Database.Engine == "memory" {
		logger.Warn("using the in-memory database; nothing will be persisted")
		db := inmemdb.Open()
		return repositories{
			user:    inmemdb.NewUserRepository(db),
			student: inmemdb.NewStudentRepository(db),
			task:    inmemdb.NewTaskRepository(db),
		}, func() {}, nil
	}

	db, err := setUpDB(conf)
	if err != nil {
		return repositories{}, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", err, map[string]interface{}{"host": conf.Database.Address()})
		}
	}
	return repositories{
		user:    sqlxrepos.NewUserRepository(db),
		student: sqlxrepos.NewStudentRepository(db),
		task:    sqlxrepos.NewTaskRepository(db),
	}, closeDB, nil
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, errors.Wrap(err, "creating database")
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "migrating database")
	}
	return db, nil
}
