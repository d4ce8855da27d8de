package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/ademscil/Event-Management-BE-sub001/core/sapsync"
	"github.com/ademscil/Event-Management-BE-sub001/core/schedule"
	"github.com/ademscil/Event-Management-BE-sub001/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp             = errors.New("help provided")
	errPasswordMismatch = errors.New("passwords do not match")
)

type (
	userService interface {
		Create(ctx context.Context, nu user.NewUser) (user.User, error)
		GetByUsername(ctx context.Context, uname string) (user.User, error)
		SetPassword(ctx context.Context, id, pwd, pwdConfirm string) error
	}

	sapSyncer interface {
		Sync(ctx context.Context, triggeredBy string) (sapsync.Result, error)
	}

	opsRunner interface {
		Tick(ctx context.Context) (schedule.TickResult, error)
	}

	commandLine struct {
		migrate func(ctx context.Context, command string, args ...string) error
		users   userService
		sap     sapSyncer
		ops     opsRunner
		out     io.Writer
	}
)

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                                 - run a goose command (up, down, status...)")
	fmt.Fprintln(cli.out, "  adduser -username U -name N [-email E] [-role R] [-ldap] - create a user")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME                       - reset a local user's password")
	fmt.Fprintln(cli.out, "  sapsync                                                - synchronise the organisation with SAP")
	fmt.Fprintln(cli.out, "  runops                                                 - run the due blasts and reminders once")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserCmd.SetOutput(cli.out)
	addUserUname := addUserCmd.String("username", "", "The user's login.")
	addUserName := addUserCmd.String("name", "", "The user's display name; defaults to the username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email address.")
	addUserRole := addUserCmd.String("role", user.RoleSuperAdmin, "One of SuperAdmin, AdminEvent, ITLead, DepartmentHead.")
	addUserLDAP := addUserCmd.Bool("ldap", false, "Authenticate the user against LDAP; no password is prompted.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordCmd.SetOutput(cli.out)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2], args[3:]...)

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" {
			addUserCmd.Usage()
			return errHelp
		}
		nu := user.NewUser{
			Username:    *addUserUname,
			DisplayName: *addUserName,
			Email:       *addUserEmail,
			Role:        *addUserRole,
			UseLDAP:     *addUserLDAP,
		}
		if nu.DisplayName == "" {
			nu.DisplayName = nu.Username
		}
		if !nu.UseLDAP {
			pwd, err := promptPassword(cli.out, true)
			if err != nil {
				return err
			}
			if pwd == "" {
				addUserCmd.Usage()
				return errHelp
			}
			nu.Password, nu.PasswordConfirm = pwd, pwd
		}
		return cli.addUser(ctx, nu)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(cli.out, true)
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(ctx, *resetPasswordUname, pwd)

	case "sapsync":
		return cli.sapSync(ctx)

	case "runops":
		return cli.runOps(ctx)

	default:
		cli.printUsage()
		return errHelp
	}
}

// promptPassword reads a password without echo, twice when confirm is set.
func promptPassword(out io.Writer, confirm bool) (string, error) {
	fmt.Fprint(out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(out)
	if err != nil || len(pwd) == 0 || !confirm {
		return string(pwd), err
	}

	fmt.Fprint(out, "Confirm password:")
	again, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	if string(again) != string(pwd) {
		return "", errPasswordMismatch
	}
	return string(pwd), nil
}
