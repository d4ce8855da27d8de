package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/ademscil/Event-Management-BE-sub001/core"
)

var nowFunc = time.Now // mockable

const (
	dueBatchSize = 50
	// staleRunAfter is how long an operation may stay Running before it is handed back to the scheduler.
	// It is longer than the timeout of a tick.
	staleRunAfter = 30 * time.Minute
)

type (
	Repository interface {
		Create(ctx context.Context, op Operation) (Operation, error)
		Get(ctx context.Context, id string) (Operation, error)
		// ListBySurvey lists the operations of a survey; opType may be empty.
		ListBySurvey(ctx context.Context, surveyID, opType string) ([]Operation, error)
		// ListDue lists Scheduled operations with NextExecutionAt <= now, oldest first.
		ListDue(ctx context.Context, now time.Time, limit int) ([]Operation, error)
		// Claim moves a due operation to Running. It returns false when another worker claimed it first.
		Claim(ctx context.Context, id string, now time.Time) (bool, error)
		// RequeueStale moves Running operations last updated before cutoff back to Scheduled.
		RequeueStale(ctx context.Context, cutoff, now time.Time) (int, error)
		// Finish stores the outcome of a run (status, next/last execution, count, error message).
		Finish(ctx context.Context, op Operation) error
		// Cancel cancels a Scheduled operation.
		Cancel(ctx context.Context, id string, now time.Time) error
	}

	// Executor carries out operations.
	Executor interface {
		Execute(ctx context.Context, op Operation) (Result, error)
		// SurveyEndDate returns the end date of a survey; recurring operations stop past it.
		SurveyEndDate(ctx context.Context, surveyID string) (time.Time, error)
	}

	// SessionCleaner is run on every tick.
	SessionCleaner interface {
		CleanupExpiredSessions(ctx context.Context) (int, error)
	}

	ProcessorDeps struct {
		Conf     *core.Config
		Repo     Repository
		Executor Executor
		Sessions SessionCleaner
		Logger   core.Logger
		Metrics  core.Metrics
	}

	// Processor polls due operations and runs them, driven by a cron schedule.
	Processor struct {
		spec     string
		loc      *time.Location
		repo     Repository
		exec     Executor
		sessions SessionCleaner
		logger   core.Logger
		metrics  core.Metrics

		mu   sync.Mutex // guards cron
		cron *cron.Cron
	}

	TickResult struct {
		Requeued        int
		Processed       int
		Failed          int
		SessionsExpired int
	}
)

func NewProcessor(deps ProcessorDeps) *Processor {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	return &Processor{
		spec:     deps.Conf.Scheduler.Spec,
		loc:      deps.Conf.Scheduler.Location(),
		repo:     deps.Repo,
		exec:     deps.Executor,
		sessions: deps.Sessions,
		logger:   deps.Logger,
		metrics:  metrics,
	}
}

// Tick hands stalled runs back to the scheduler, runs every operation due now, then cleans up expired sessions.
// Errors of single operations are recorded on the operation and do not stop the tick.
func (p *Processor) Tick(ctx context.Context) (TickResult, error) {
	var res TickResult
	now := nowFunc().UTC()

	n, err := p.repo.RequeueStale(ctx, now.Add(-staleRunAfter), now)
	if err != nil {
		p.logger.Error("requeueing stalled scheduled operations", err)
	} else if n > 0 {
		p.logger.Warn(fmt.Sprintf("requeued %d stalled scheduled operation(s)", n))
	}
	res.Requeued = n

	due, err := p.repo.ListDue(ctx, now, dueBatchSize)
	if err != nil {
		return res, errors.Wrap(err, "listing due operations")
	}
	for _, op := range due {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		claimed, err := p.repo.Claim(ctx, op.ID, now)
		if err != nil {
			p.logger.Error("claiming scheduled operation", err, map[string]interface{}{"operation": op.ID})
			continue
		}
		if !claimed {
			continue
		}
		if ok := p.run(ctx, op); !ok {
			res.Failed++
		}
		res.Processed++
	}

	if p.sessions != nil {
		n, err := p.sessions.CleanupExpiredSessions(ctx)
		if err != nil {
			p.logger.Error("cleaning up expired sessions", err)
		}
		res.SessionsExpired = n
	}
	return res, nil
}

// run executes a claimed operation and stores its outcome. It returns false when the run failed.
func (p *Processor) run(ctx context.Context, op Operation) bool {
	extras := map[string]interface{}{"operation": op.ID, "survey": op.SurveyID, "type": op.Type}

	result, execErr := p.exec.Execute(ctx, op)
	now := nowFunc().UTC()
	op.LastExecutedAt = &now
	op.ExecutionCount++
	op.UpdatedAt = now

	if execErr != nil {
		op.Status = StatusFailed
		op.ErrorMessage = execErr.Error()
		op.NextExecutionAt = nil
		p.logger.Error("scheduled operation failed", execErr, extras)
	} else {
		op.ErrorMessage = ""
		if result.Failed > 0 {
			op.ErrorMessage = fmt.Sprintf("%d of %d email(s) failed", result.Failed, result.Recipients)
		}
		p.reschedule(ctx, &op, now)
		extras["sent"] = result.Sent
		extras["failed"] = result.Failed
		p.logger.Info("scheduled operation executed", extras)
	}
	p.metrics.ScheduledOperation(op.Type, op.Status)

	if err := p.repo.Finish(ctx, op); err != nil {
		p.logger.Error("saving scheduled operation outcome", err, extras)
		return false
	}
	return execErr == nil
}

// reschedule sets the next run of op, or completes it when there is none before the survey ends.
func (p *Processor) reschedule(ctx context.Context, op *Operation, now time.Time) {
	next, ok, err := NextExecution(*op, now, p.loc)
	if err != nil {
		op.Status = StatusFailed
		op.ErrorMessage = err.Error()
		op.NextExecutionAt = nil
		return
	}
	if ok {
		end, err := p.exec.SurveyEndDate(ctx, op.SurveyID)
		if err != nil {
			p.logger.Warn("reading survey end date", err, map[string]interface{}{"survey": op.SurveyID})
		} else if next.After(end) {
			ok = false
		}
	}
	if !ok {
		op.Status = StatusCompleted
		op.NextExecutionAt = nil
		return
	}
	op.Status = StatusScheduled
	op.NextExecutionAt = &next
}

// Start schedules Tick on the configured cron spec. A tick still running when the next one is due is skipped.
func (p *Processor) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cron != nil {
		return errors.New("processor already started")
	}
	logger := cronLogger{p.logger}
	c := cron.New(
		cron.WithLocation(p.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	_, err := c.AddFunc(p.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		res, err := p.Tick(ctx)
		if err != nil {
			p.logger.Error("scheduler tick", err)
			return
		}
		if res.Processed > 0 || res.SessionsExpired > 0 || res.Requeued > 0 {
			p.logger.Info("scheduler tick", map[string]interface{}{
				"requeued": res.Requeued, "processed": res.Processed, "failed": res.Failed, "sessions_expired": res.SessionsExpired,
			})
		}
	})
	if err != nil {
		return errors.Wrapf(err, "parsing scheduler spec %q", p.spec)
	}
	c.Start()
	p.cron = c
	return nil
}

// Stop stops the cron and waits for a running tick to return, or for ctx to be done.
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()

	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, kvMap(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, err, kvMap(keysAndValues))
}

func kvMap(kv []interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return m
}
