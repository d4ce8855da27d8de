package main

import (
	"context"
	"fmt"

	"github.com/ademscil/Event-Management-BE-sub001/core/user"
)

// addUser creates a user; the username must not be taken yet.
func (cli *commandLine) addUser(ctx context.Context, nu user.NewUser) error {
	usr, err := cli.users.Create(ctx, nu)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created %s user %q (%s)\n", usr.Role, usr.Username, usr.ID)
	return nil
}
