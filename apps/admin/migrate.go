package main

import "context"

// migrate runs a goose command against the embedded migrations of the configured engine.
func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	return gooseRunFunc(ctx, cli.conf.Database.Engine, args[0], cli.db.DB, args[1:]...)
}
