package main

import (
	"context"

	"github.com/trezcool/aula/storage/database"
)

var gooseRunFunc = database.RunMigration // mockable

func (cli *commandLine) migrate(args []string) error {
	err := gooseRunFunc(context.Background(), args[0], cli.db, args[1:]...)
	if err == nil {
		cli.logger.Info("migration done", map[string]interface{}{"command": args[0], "args": args[1:]})
	}
	return err
}
