package main

import (
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/intigym/backoffice/apps/api/di"
	"github.com/intigym/backoffice/core"
	"github.com/intigym/backoffice/core/member"
	"github.com/intigym/backoffice/core/user"
	logsvc "github.com/intigym/backoffice/services/logger"
)

func main() {
	err := di.New().Invoke(func(conf *core.Config, logger *logsvc.Logger, db *sqlx.DB, usrRepo user.Repository, members member.Service) error {
		defer logger.Sync()
		defer func() { _ = db.Close() }()

		if err := core.ParseEmailTemplates(); err != nil {
			return err
		}

		cli := commandLine{
			conf:    conf,
			db:      db,
			usrRepo: usrRepo,
			members: members,
			out:     os.Stdout,
		}
		return cli.run(os.Args)
	})
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
