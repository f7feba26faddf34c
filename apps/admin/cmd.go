package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/intigym/backoffice/core"
	"github.com/intigym/backoffice/core/member"
	"github.com/intigym/backoffice/core/user"
	"github.com/intigym/backoffice/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	gooseRunFunc     = database.RunGoose // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf    *core.Config
	db      *sqlx.DB
	usrRepo user.Repository
	members member.Service
	out     io.Writer
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	out := cli.out
	if out == nil {
		out = os.Stdout
	}
	_, _ = fmt.Fprintf(out, format, args...)
}

// helpOn prints the usage of cmd and returns errHelp.
func helpOn(cmd *cobra.Command) error {
	_ = cmd.Usage()
	return errHelp
}

// promptPassword reads a password from the terminal without echoing it.
func (cli *commandLine) promptPassword(cmd *cobra.Command) (string, error) {
	cli.printf("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	cli.printf("\n")
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", helpOn(cmd)
	}
	return string(pwd), nil
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Back-office administration tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return helpOn(cmd)
		},
	}
	if cli.out != nil {
		root.SetOut(cli.out)
		root.SetErr(cli.out)
	}

	var (
		addName, addEmail, addRole string
		resetEmail                 string
		remindDays                 int
	)

	addUser := &cobra.Command{
		Use:   "adduser",
		Short: "Create a back-office user or update its password and role. The password is prompted next.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addEmail == "" {
				return helpOn(cmd)
			}
			roles, ok := roleFlags[addRole]
			if !ok {
				return errors.Errorf("unknown role %q (admin, owner or staff)", addRole)
			}
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			usr, err := cli.addUser(cmd.Context(), addName, addEmail, pwd, roles)
			if err != nil {
				return err
			}
			cli.printf("user %s saved\n", usr.Email)
			return nil
		},
	}
	addUser.Flags().StringVar(&addEmail, "email", "", "The user's email")
	addUser.Flags().StringVar(&addName, "name", "", "The user's name, defaults to the email")
	addUser.Flags().StringVar(&addRole, "role", "staff", "One of admin, owner or staff")

	resetPassword := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password. The password is prompted next.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if resetEmail == "" {
				return helpOn(cmd)
			}
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			return cli.resetPassword(cmd.Context(), resetEmail, pwd)
		},
	}
	resetPassword.Flags().StringVar(&resetEmail, "email", "", "The user's email")

	migrate := &cobra.Command{
		Use:   "migrate COMMAND [ARGS]",
		Short: "Run a goose migration command (up, up-to, down, down-to, redo, reset, status, version, ...)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return helpOn(cmd)
			}
			return cli.migrate(cmd.Context(), args)
		},
	}

	refreshStatus := &cobra.Command{
		Use:   "refresh-status",
		Short: "Recompute the payment status of every member from their expiration date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := cli.members.RefreshStatuses(cmd.Context(), cli.conf.Today())
			if err != nil {
				return errors.Wrap(err, "refreshing statuses")
			}
			cli.printf("%d member(s) expired, %d member(s) current\n", res.Expired, res.Current)
			return nil
		},
	}

	remind := &cobra.Command{
		Use:   "remind",
		Short: "Email the members whose membership expires soon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := cli.members.SendReminders(cmd.Context(), cli.conf.Today(), remindDays)
			if err != nil {
				return errors.Wrap(err, "sending reminders")
			}
			cli.printf("%d reminder(s) sent\n", n)
			return nil
		},
	}
	remind.Flags().IntVar(&remindDays, "days", 0, "Look-ahead window in days, defaults to the configured one")

	root.AddCommand(addUser, resetPassword, migrate, refreshStatus, remind)
	return root
}

func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	if len(args) > 0 {
		args = args[1:] // program name
	}
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

var roleFlags = map[string][]string{
	"admin": {user.RoleAdmin},
	"owner": {user.RoleAdminOwner},
	"staff": {user.RoleStaff},
}
