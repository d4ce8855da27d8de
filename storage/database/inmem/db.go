package inmemdb

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/sapsync"
)

// Tx runs fn without a transaction; in-memory stores ignore executors.
type Tx struct{}

var _ core.Transactor = Tx{}

func (Tx) WithinTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	return fn(nil)
}

// EmailLogs keeps email logs in memory.
type EmailLogs struct {
	mutex sync.RWMutex
	logs  []core.EmailLog
}

var _ core.EmailLogRepository = (*EmailLogs)(nil)

func NewEmailLogs() *EmailLogs { return &EmailLogs{} }

func (db *EmailLogs) Create(_ context.Context, log core.EmailLog) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	log.ID = uuid.NewString()
	db.logs = append(db.logs, log)
	return nil
}

func (db *EmailLogs) ListBySurvey(_ context.Context, surveyID string) ([]core.EmailLog, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	logs := make([]core.EmailLog, 0)
	for _, l := range db.logs {
		if l.SurveyID != nil && *l.SurveyID == surveyID {
			logs = append(logs, l)
		}
	}
	return logs, nil
}

// All returns every log in insertion order.
func (db *EmailLogs) All() []core.EmailLog {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return append([]core.EmailLog(nil), db.logs...)
}

// SAPSyncLogs keeps SAP synchronisation runs in memory.
type SAPSyncLogs struct {
	mutex sync.RWMutex
	logs  map[string]sapsync.Log
}

var _ sapsync.LogRepository = (*SAPSyncLogs)(nil)

func NewSAPSyncLogs() *SAPSyncLogs { return &SAPSyncLogs{logs: make(map[string]sapsync.Log)} }

func (db *SAPSyncLogs) Create(_ context.Context, log sapsync.Log) (sapsync.Log, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	log.ID = uuid.NewString()
	db.logs[log.ID] = log
	return log, nil
}

func (db *SAPSyncLogs) Finish(_ context.Context, log sapsync.Log) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	if _, ok := db.logs[log.ID]; !ok {
		return core.ErrNotFound
	}
	db.logs[log.ID] = log
	return nil
}

func (db *SAPSyncLogs) List(_ context.Context, limit int) ([]sapsync.Log, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	logs := make([]sapsync.Log, 0, len(db.logs))
	for _, l := range db.logs {
		logs = append(logs, l)
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].StartedAt.After(logs[j].StartedAt) })
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}
