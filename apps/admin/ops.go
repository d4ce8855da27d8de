package main

import (
	"context"
	"fmt"
)

const cliActor = "admin-cli"

func (cli *commandLine) sapSync(ctx context.Context) error {
	res, err := cli.sap.Sync(ctx, cliActor)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "SAP sync %s\n", res.Status)
	for _, lvl := range []struct {
		name string
		n    [3]int
		errs []string
	}{
		{"business units", [3]int{res.BusinessUnits.Added, res.BusinessUnits.Updated, res.BusinessUnits.Deactivated}, res.BusinessUnits.Errors},
		{"divisions", [3]int{res.Divisions.Added, res.Divisions.Updated, res.Divisions.Deactivated}, res.Divisions.Errors},
		{"departments", [3]int{res.Departments.Added, res.Departments.Updated, res.Departments.Deactivated}, res.Departments.Errors},
	} {
		fmt.Fprintf(cli.out, "  %-15s added %d, updated %d, deactivated %d\n", lvl.name, lvl.n[0], lvl.n[1], lvl.n[2])
		for _, e := range lvl.errs {
			fmt.Fprintf(cli.out, "    error: %s\n", e)
		}
	}
	return nil
}

// runOps runs one scheduler tick: due blasts and reminders, then the session cleanup.
func (cli *commandLine) runOps(ctx context.Context) error {
	res, err := cli.ops.Tick(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "operations processed %d, failed %d; sessions expired %d\n", res.Processed, res.Failed, res.SessionsExpired)
	return nil
}
