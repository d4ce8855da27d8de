package sqlxrepos

import (
	"context"

	"github.com/google/uuid"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/sapsync"
	"github.com/ademscil/Event-Management-BE-sub001/storage/database"
)

type emailLogRepository struct {
	base *database.BaseRepository[core.EmailLog]
}

var _ core.EmailLogRepository = (*emailLogRepository)(nil)

func NewEmailLogRepository(exec core.DBExecutor) *emailLogRepository {
	return &emailLogRepository{
		base: database.NewBaseRepository[core.EmailLog](exec, database.Table{
			Name: "EmailLogs",
			PK:   "EmailLogId",
			Columns: []string{
				"EmailLogId", "SurveyId", "OperationId", "RecipientEmail", "RecipientName",
				"Subject", "EmailType", "Status", "ErrorMessage", "SentAt",
			},
		}),
	}
}

func (repo *emailLogRepository) Create(ctx context.Context, log core.EmailLog) error {
	return mapDBError(repo.base.Create(ctx, map[string]interface{}{
		"EmailLogId":     uuid.NewString(),
		"SurveyId":       log.SurveyID,
		"OperationId":    log.OperationID,
		"RecipientEmail": log.RecipientEmail,
		"RecipientName":  log.RecipientName,
		"Subject":        log.Subject,
		"EmailType":      log.EmailType,
		"Status":         log.Status,
		"ErrorMessage":   log.ErrorMessage,
		"SentAt":         log.SentAt,
	}), "saving email log")
}

func (repo *emailLogRepository) ListBySurvey(ctx context.Context, surveyID string) ([]core.EmailLog, error) {
	return repo.base.FindAll(ctx, database.Query{
		Where:   "SurveyId = ?",
		Args:    []interface{}{surveyID},
		OrderBy: []core.DBOrdering{{Field: "SentAt"}},
	})
}

type sapSyncLogRepository struct {
	base *database.BaseRepository[sapsync.Log]
}

var _ sapsync.LogRepository = (*sapSyncLogRepository)(nil)

func NewSAPSyncLogRepository(exec core.DBExecutor) *sapSyncLogRepository {
	return &sapSyncLogRepository{
		base: database.NewBaseRepository[sapsync.Log](exec, database.Table{
			Name: "SAPSyncLogs",
			PK:   "SyncLogId",
			Columns: []string{
				"SyncLogId", "TriggeredBy", "Status", "Added", "Updated", "Deactivated",
				"Errors", "ErrorDetails", "StartedAt", "FinishedAt",
			},
		}),
	}
}

func (repo *sapSyncLogRepository) Create(ctx context.Context, log sapsync.Log) (sapsync.Log, error) {
	log.ID = uuid.NewString()
	err := repo.base.Create(ctx, map[string]interface{}{
		"SyncLogId":   log.ID,
		"TriggeredBy": log.TriggeredBy,
		"Status":      log.Status,
		"StartedAt":   log.StartedAt,
	})
	if err != nil {
		return sapsync.Log{}, mapDBError(err, "creating SAP sync log")
	}
	return log, nil
}

func (repo *sapSyncLogRepository) Finish(ctx context.Context, log sapsync.Log) error {
	return repo.base.Update(ctx, log.ID, map[string]interface{}{
		"Status":       log.Status,
		"Added":        log.Added,
		"Updated":      log.Updated,
		"Deactivated":  log.Deactivated,
		"Errors":       log.Errors,
		"ErrorDetails": log.ErrorDetails,
		"FinishedAt":   log.FinishedAt,
	})
}

func (repo *sapSyncLogRepository) List(ctx context.Context, limit int) ([]sapsync.Log, error) {
	return repo.base.FindAll(ctx, database.Query{
		OrderBy: []core.DBOrdering{{Field: "StartedAt"}},
		Limit:   limit,
	})
}
