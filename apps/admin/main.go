package main

import (
	"context"
	"os"

	"github.com/ademscil/Event-Management-BE-sub001/apps/container"
	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/storage/database"
)

func main() {
	conf := core.NewConfig()
	logger := container.NewLogger(conf, "ADMIN : ")

	// set up DB
	pool := database.NewPool(conf)
	db, err := pool.Get(context.Background())
	if err != nil {
		logger.Fatal("opening database", err)
	}

	app := container.New(container.Deps{Conf: conf, DB: db, Logger: logger})

	// start CLI
	cli := commandLine{
		migrate: migrator(db),
		users:   app.Users,
		sap:     app.SAP,
		ops:     app.Processor,
		out:     os.Stdout,
	}
	err = cli.run(os.Args)
	if cErr := pool.Close(); cErr != nil {
		logger.Error("closing database", cErr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		os.Exit(1)
	}
}
