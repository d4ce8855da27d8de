package sapsync

import (
	"context"
	"time"
)

// Sync statuses
const (
	StatusRunning             = "Running"
	StatusCompleted           = "Completed"
	StatusCompletedWithErrors = "CompletedWithErrors"
	StatusFailed              = "Failed"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	maxErrorDetails     = 4000
)

// Record is an organisational unit as exposed by SAP.
// ParentCode is the business unit code of a division, or the division code of a department.
type Record struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	ParentCode string `json:"parent_code"`
}

// Source fetches the organisation from SAP.
type Source interface {
	FetchBusinessUnits(ctx context.Context) ([]Record, error)
	FetchDivisions(ctx context.Context) ([]Record, error)
	FetchDepartments(ctx context.Context) ([]Record, error)
}

type Log struct {
	ID           string     `db:"SyncLogId" json:"id"`
	TriggeredBy  string     `db:"TriggeredBy" json:"triggered_by"`
	Status       string     `db:"Status" json:"status"`
	Added        int        `db:"Added" json:"added"`
	Updated      int        `db:"Updated" json:"updated"`
	Deactivated  int        `db:"Deactivated" json:"deactivated"`
	Errors       int        `db:"Errors" json:"errors"`
	ErrorDetails string     `db:"ErrorDetails" json:"error_details"`
	StartedAt    time.Time  `db:"StartedAt" json:"started_at"`
	FinishedAt   *time.Time `db:"FinishedAt" json:"finished_at"`
}

type LogRepository interface {
	Create(ctx context.Context, log Log) (Log, error)
	// Finish stores the counters, status and finish time of a run.
	Finish(ctx context.Context, log Log) error
	// List returns the latest runs first.
	List(ctx context.Context, limit int) ([]Log, error)
}

// LevelResult counts the changes made to one level of the hierarchy.
type LevelResult struct {
	Added       int      `json:"added"`
	Updated     int      `json:"updated"`
	Deactivated int      `json:"deactivated"`
	Errors      []string `json:"errors"`
}

type Result struct {
	LogID         string      `json:"log_id"`
	Status        string      `json:"status"`
	BusinessUnits LevelResult `json:"business_units"`
	Divisions     LevelResult `json:"divisions"`
	Departments   LevelResult `json:"departments"`
}

func (r Result) totals() (added, updated, deactivated int, errs []string) {
	for _, lvl := range []LevelResult{r.BusinessUnits, r.Divisions, r.Departments} {
		added += lvl.Added
		updated += lvl.Updated
		deactivated += lvl.Deactivated
		errs = append(errs, lvl.Errors...)
	}
	return added, updated, deactivated, errs
}
