package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/schedule"
	"github.com/ademscil/Event-Management-BE-sub001/storage/database"
)

type operationRepository struct {
	base *database.BaseRepository[schedule.Operation]
}

var _ schedule.Repository = (*operationRepository)(nil)

func NewOperationRepository(exec core.DBExecutor) *operationRepository {
	return &operationRepository{
		base: database.NewBaseRepository[schedule.Operation](exec, database.Table{
			Name: "ScheduledOperations",
			PK:   "OperationId",
			Columns: []string{
				"OperationId", "SurveyId", "OperationType", "Frequency", "ScheduledDate", "ScheduledTime",
				"DayOfWeek", "TargetCriteria", "EmailTemplate", "EmbedCover", "Status", "NextExecutionAt",
				"LastExecutedAt", "ExecutionCount", "ErrorMessage", "CreatedBy", "CreatedAt", "UpdatedAt",
			},
		}),
	}
}

func (repo *operationRepository) Create(ctx context.Context, op schedule.Operation) (schedule.Operation, error) {
	op.ID = uuid.NewString()
	err := repo.base.Create(ctx, map[string]interface{}{
		"OperationId":     op.ID,
		"SurveyId":        op.SurveyID,
		"OperationType":   op.Type,
		"Frequency":       op.Frequency,
		"ScheduledDate":   op.ScheduledDate,
		"ScheduledTime":   op.ScheduledTime,
		"DayOfWeek":       op.DayOfWeek,
		"TargetCriteria":  op.TargetCriteria,
		"EmailTemplate":   op.EmailTemplate,
		"EmbedCover":      op.EmbedCover,
		"Status":          op.Status,
		"NextExecutionAt": op.NextExecutionAt,
		"ExecutionCount":  op.ExecutionCount,
		"CreatedBy":       op.CreatedBy,
		"CreatedAt":       op.CreatedAt,
		"UpdatedAt":       op.UpdatedAt,
	})
	if err != nil {
		return schedule.Operation{}, mapDBError(err, "creating scheduled operation")
	}
	return op, nil
}

func (repo *operationRepository) Get(ctx context.Context, id string) (schedule.Operation, error) {
	return repo.base.FindByID(ctx, id)
}

func (repo *operationRepository) ListBySurvey(ctx context.Context, surveyID, opType string) ([]schedule.Operation, error) {
	var w where
	w.add("SurveyId = ?", surveyID)
	if opType != "" {
		w.add("OperationType = ?", opType)
	}
	return repo.base.FindAll(ctx, database.Query{
		Where:   w.String(),
		Args:    w.args,
		OrderBy: []core.DBOrdering{{Field: "CreatedAt"}},
	})
}

func (repo *operationRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]schedule.Operation, error) {
	return repo.base.FindAll(ctx, database.Query{
		Where:   "Status = ? AND NextExecutionAt IS NOT NULL AND NextExecutionAt <= ?",
		Args:    []interface{}{schedule.StatusScheduled, now},
		OrderBy: []core.DBOrdering{{Field: "NextExecutionAt", Ascending: true}},
		Limit:   limit,
	})
}

// Claim is a conditional update: only one worker can move the operation out of Scheduled.
func (repo *operationRepository) Claim(ctx context.Context, id string, now time.Time) (bool, error) {
	exe := repo.base.Exec(nil)
	q := exe.Rebind("UPDATE ScheduledOperations SET Status = ?, UpdatedAt = ? WHERE OperationId = ? AND Status = ?")
	res, err := exe.ExecContext(ctx, q, schedule.StatusRunning, now, id, schedule.StatusScheduled)
	if err != nil {
		return false, errors.Wrap(err, "claiming scheduled operation")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "reading rows affected")
	}
	return n == 1, nil
}

// RequeueStale keeps NextExecutionAt, so a requeued operation is due again on the same tick.
func (repo *operationRepository) RequeueStale(ctx context.Context, cutoff, now time.Time) (int, error) {
	exe := repo.base.Exec(nil)
	q := exe.Rebind("UPDATE ScheduledOperations SET Status = ?, ErrorMessage = ?, UpdatedAt = ? WHERE Status = ? AND UpdatedAt < ?")
	res, err := exe.ExecContext(ctx, q, schedule.StatusScheduled, schedule.MsgRunInterrupted, now, schedule.StatusRunning, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "requeueing stale scheduled operations")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "reading rows affected")
	}
	return int(n), nil
}

func (repo *operationRepository) Finish(ctx context.Context, op schedule.Operation) error {
	updatedAt := op.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	return repo.base.Update(ctx, op.ID, map[string]interface{}{
		"Status":          op.Status,
		"NextExecutionAt": op.NextExecutionAt,
		"LastExecutedAt":  op.LastExecutedAt,
		"ExecutionCount":  op.ExecutionCount,
		"ErrorMessage":    op.ErrorMessage,
		"UpdatedAt":       updatedAt,
	})
}

func (repo *operationRepository) Cancel(ctx context.Context, id string, now time.Time) error {
	exe := repo.base.Exec(nil)
	q := exe.Rebind("UPDATE ScheduledOperations SET Status = ?, NextExecutionAt = NULL, UpdatedAt = ? WHERE OperationId = ? AND Status = ?")
	res, err := exe.ExecContext(ctx, q, schedule.StatusCancelled, now, id, schedule.StatusScheduled)
	if err != nil {
		return errors.Wrap(err, "cancelling scheduled operation")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading rows affected")
	}
	if n > 0 {
		return nil
	}

	exists, err := repo.base.Exists(ctx, "OperationId = ?", []interface{}{id})
	if err != nil {
		return err
	}
	if !exists {
		return core.ErrNotFound
	}
	return core.NewConflictError("only scheduled operations can be cancelled")
}
