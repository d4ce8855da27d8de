package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) resetPassword(ctx context.Context, uname, pwd string) error {
	usr, err := cli.users.GetByUsername(ctx, uname)
	if err != nil {
		return err
	}
	if err = cli.users.SetPassword(ctx, usr.ID, pwd, pwd); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "password of %q updated\n", usr.Username)
	return nil
}
