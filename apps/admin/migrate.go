package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	appfs "github.com/trezcool/alama/fs"
)

const migrationsDir = "migrations"

var gooseRunFunc = goose.RunFS // mockable

// migrate runs a goose command against the embedded migrations.
// e.g: migrate up-to 3
func (cli *commandLine) migrate(args []string) error {
	command, arguments := args[0], args[1:]
	if err := gooseRunFunc(command, cli.db, appfs.FS, migrationsDir, arguments...); err != nil {
		return errors.Wrapf(err, "migrate %s", strings.Join(args, " "))
	}
	fmt.Fprintf(cli.out, "migrate %s: done\n", command)
	return nil
}
