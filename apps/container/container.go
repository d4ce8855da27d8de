// Package container wires the repositories and services shared by the API and the admin CLI.
package container

import (
	"io"
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/application"
	"github.com/ademscil/Event-Management-BE-sub001/core/auth"
	"github.com/ademscil/Event-Management-BE-sub001/core/bulkimport"
	"github.com/ademscil/Event-Management-BE-sub001/core/function"
	"github.com/ademscil/Event-Management-BE-sub001/core/mapping"
	"github.com/ademscil/Event-Management-BE-sub001/core/orgunit"
	"github.com/ademscil/Event-Management-BE-sub001/core/sapsync"
	"github.com/ademscil/Event-Management-BE-sub001/core/schedule"
	"github.com/ademscil/Event-Management-BE-sub001/core/survey"
	"github.com/ademscil/Event-Management-BE-sub001/core/user"
	emailsvc "github.com/ademscil/Event-Management-BE-sub001/services/email"
	ldapsvc "github.com/ademscil/Event-Management-BE-sub001/services/ldap"
	logsvc "github.com/ademscil/Event-Management-BE-sub001/services/logger"
	sapsvc "github.com/ademscil/Event-Management-BE-sub001/services/sap"
	"github.com/ademscil/Event-Management-BE-sub001/storage/database"
	sqlxrepos "github.com/ademscil/Event-Management-BE-sub001/storage/database/sqlx"
)

// NewLogger returns a rollbar logger writing to stdout with prefix, eg. "API : ".
func NewLogger(conf *core.Config, prefix string) *logsvc.RollbarLogger {
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, prefix, log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)
	return logger
}

// NewMailer sends through SendGrid when an API key is configured; emails are printed to out otherwise.
func NewMailer(conf *core.Config, out io.Writer) core.EmailService {
	if conf.Debug || conf.Email.SendgridAPIKey == "" {
		return emailsvc.NewConsoleService(conf, out)
	}
	return emailsvc.NewSendgridService(conf)
}

type Deps struct {
	Conf    *core.Config
	DB      *sqlx.DB
	Logger  core.Logger
	Mailer  core.EmailService // defaults to NewMailer(conf, os.Stdout)
	Metrics core.Metrics
}

// Container holds the services of the application, all backed by the same connection pool.
type Container struct {
	Conf   *core.Config
	Logger core.Logger

	Users        *user.Service
	Auth         *auth.Service
	OrgUnits     *orgunit.Service
	Functions    *function.Service
	Applications *application.Service
	Mappings     *mapping.Service
	Surveys      *survey.Service
	SAP          *sapsync.Service
	Imports      *bulkimport.Service
	Processor    *schedule.Processor
}

func New(deps Deps) *Container {
	conf, db, logger := deps.Conf, deps.DB, deps.Logger
	metrics := deps.Metrics
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	mailer := deps.Mailer
	if mailer == nil {
		mailer = NewMailer(conf, os.Stdout)
	}
	core.ConfigureEmailTemplates(conf, logger)

	// repositories
	tx := database.NewTransactor(db)
	org := sqlxrepos.NewOrgUnitStores(db)
	functions := sqlxrepos.NewFunctionRepository(db)
	applications := sqlxrepos.NewApplicationRepository(db)
	mappings := sqlxrepos.NewMappingRepository(db)
	users := sqlxrepos.NewUserRepository(db)
	sessions := sqlxrepos.NewSessionRepository(db)
	surveys := sqlxrepos.NewSurveyRepository(db)
	operations := sqlxrepos.NewOperationRepository(db)
	emailLogs := sqlxrepos.NewEmailLogRepository(db)
	sapLogs := sqlxrepos.NewSAPSyncLogRepository(db)

	// external systems
	var directory auth.DirectoryAuthenticator
	if conf.LDAP.Enabled {
		directory = ldapsvc.NewDirectory(conf.LDAP, logger)
	}
	var sapSource sapsync.Source
	if conf.SAP.Enabled {
		sapSource = sapsvc.NewClient(conf.SAP)
	}

	c := &Container{Conf: conf, Logger: logger}
	c.Users = user.NewService(users)
	c.Auth = auth.NewService(auth.Deps{
		Conf:      conf,
		Users:     users,
		Sessions:  sessions,
		Directory: directory,
		Tx:        tx,
		Logger:    logger,
		Metrics:   metrics,
	})
	c.OrgUnits = orgunit.NewService(org, mappings)
	c.Functions = function.NewService(functions, mappings)
	c.Applications = application.NewService(applications, mappings, surveys)
	c.Mappings = mapping.NewService(mapping.Deps{
		Repo:         mappings,
		Tx:           tx,
		Functions:    functions,
		Applications: applications,
		Departments:  org.Departments,
	})
	c.Surveys = survey.NewService(survey.Deps{
		Conf:       conf,
		Repo:       surveys,
		Operations: operations,
		Users:      c.Users,
		Mailer: emailsvc.NewBatchSender(emailsvc.BatchDeps{
			Conf:    conf,
			Mailer:  mailer,
			Logs:    emailLogs,
			Logger:  logger,
			Metrics: metrics,
		}),
		EmailLogs: emailLogs,
		Tx:        tx,
		Logger:    logger,
	})
	c.SAP = sapsync.NewService(sapsync.Deps{
		Source:  sapSource,
		Stores:  org,
		Logs:    sapLogs,
		Tx:      tx,
		Logger:  logger,
		Metrics: metrics,
	})
	c.Imports = bulkimport.NewService(bulkimport.Deps{
		Org:          org,
		Functions:    functions,
		Applications: applications,
		Mappings:     mappings,
		Tx:           tx,
		Logger:       logger,
		Metrics:      metrics,
	})
	c.Processor = schedule.NewProcessor(schedule.ProcessorDeps{
		Conf:     conf,
		Repo:     operations,
		Executor: c.Surveys,
		Sessions: c.Auth,
		Logger:   logger,
		Metrics:  metrics,
	})
	return c
}
