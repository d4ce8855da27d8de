package survey

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/schedule"
	"github.com/ademscil/Event-Management-BE-sub001/core/user"
	logsvc "github.com/ademscil/Event-Management-BE-sub001/services/logger"
	inmemdb "github.com/ademscil/Event-Management-BE-sub001/storage/database/inmem"
)

type memRepo struct {
	mu        sync.Mutex
	surveys   map[string]Survey
	configs   map[string]Configuration
	questions map[string]Question
	responses map[string]Response
	answers   []Answer
}

var _ Repository = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{
		surveys:   make(map[string]Survey),
		configs:   make(map[string]Configuration),
		questions: make(map[string]Question),
		responses: make(map[string]Response),
	}
}

func (r *memRepo) Create(_ context.Context, s Survey, _ ...core.DBExecutor) (Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = uuid.NewString()
	r.surveys[s.ID] = s
	return s, nil
}

func (r *memRepo) Get(_ context.Context, id string, _ ...core.DBExecutor) (Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.surveys[id]
	if !ok {
		return Survey{}, core.ErrNotFound
	}
	return s, nil
}

func (r *memRepo) GetByShortCode(_ context.Context, code string) (Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.surveys {
		if s.ShortCode == code {
			return s, nil
		}
	}
	return Survey{}, core.ErrNotFound
}

func (r *memRepo) ShortCodeExists(ctx context.Context, code string) (bool, error) {
	_, err := r.GetByShortCode(ctx, code)
	return err == nil, nil
}

func (r *memRepo) List(_ context.Context, filter Filter) ([]Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Survey, 0)
	for _, s := range r.surveys {
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(s.Title), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (r *memRepo) Update(_ context.Context, s Survey, _ ...core.DBExecutor) (Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.surveys[s.ID]; !ok {
		return Survey{}, core.ErrNotFound
	}
	r.surveys[s.ID] = s
	return s, nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.surveys[id]; !ok {
		return core.ErrNotFound
	}
	delete(r.surveys, id)
	delete(r.configs, id)
	return nil
}

func (r *memRepo) GetConfiguration(_ context.Context, surveyID string) (Configuration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[surveyID]
	if !ok {
		return Configuration{}, core.ErrNotFound
	}
	return cfg, nil
}

func (r *memRepo) SaveConfiguration(_ context.Context, cfg Configuration, _ ...core.DBExecutor) (Configuration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.configs[cfg.SurveyID]; ok {
		cfg.ID = prev.ID
	} else {
		cfg.ID = uuid.NewString()
	}
	r.configs[cfg.SurveyID] = cfg
	return cfg, nil
}

func (r *memRepo) CreateQuestion(_ context.Context, q Question, _ ...core.DBExecutor) (Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q.ID = uuid.NewString()
	r.questions[q.ID] = q
	return q, nil
}

func (r *memRepo) GetQuestion(_ context.Context, id string) (Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[id]
	if !ok {
		return Question{}, core.ErrNotFound
	}
	return q, nil
}

func (r *memRepo) ListQuestions(_ context.Context, surveyID string, _ ...core.DBExecutor) ([]Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Question, 0)
	for _, q := range r.questions {
		if q.SurveyID == surveyID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PageNumber != out[j].PageNumber {
			return out[i].PageNumber < out[j].PageNumber
		}
		return out[i].DisplayOrder < out[j].DisplayOrder
	})
	return out, nil
}

func (r *memRepo) UpdateQuestion(_ context.Context, q Question, _ ...core.DBExecutor) (Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.questions[q.ID] = q
	return q, nil
}

func (r *memRepo) DeleteQuestion(_ context.Context, id string, _ ...core.DBExecutor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.questions, id)
	return nil
}

func (r *memRepo) SetDisplayOrder(_ context.Context, id string, order int, _ ...core.DBExecutor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := r.questions[id]
	q.DisplayOrder = order
	r.questions[id] = q
	return nil
}

func (r *memRepo) CreateResponse(_ context.Context, resp Response, _ ...core.DBExecutor) (Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resp.ID = uuid.NewString()
	r.responses[resp.ID] = resp
	return resp, nil
}

func (r *memRepo) CreateAnswer(_ context.Context, a Answer, _ ...core.DBExecutor) (Answer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = uuid.NewString()
	r.answers = append(r.answers, a)
	return a, nil
}

func (r *memRepo) GetResponse(_ context.Context, id string) (Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resp, ok := r.responses[id]
	if !ok {
		return Response{}, core.ErrNotFound
	}
	return resp, nil
}

func (r *memRepo) ListResponses(_ context.Context, filter ResponseFilter) ([]Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Response, 0)
	for _, resp := range r.responses {
		if resp.SurveyID != filter.SurveyID {
			continue
		}
		if filter.Email != "" && resp.RespondentEmail != filter.Email {
			continue
		}
		out = append(out, resp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RespondentEmail < out[j].RespondentEmail })
	return out, nil
}

func (r *memRepo) ListAnswers(_ context.Context, responseID string) ([]Answer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Answer, 0)
	for _, a := range r.answers {
		if a.ResponseID == responseID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memRepo) SurveyAnswers(_ context.Context, surveyID string) ([]Answer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Answer, 0)
	for _, a := range r.answers {
		if r.responses[a.ResponseID].SurveyID == surveyID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memRepo) ResponseExists(_ context.Context, surveyID, email string, applicationID *string, _ ...core.DBExecutor) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, resp := range r.responses {
		if resp.SurveyID != surveyID || resp.RespondentEmail != email {
			continue
		}
		if applicationID == nil {
			return true, nil
		}
		if resp.ApplicationID != nil && *resp.ApplicationID == *applicationID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) CountResponses(_ context.Context, surveyID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for _, resp := range r.responses {
		if resp.SurveyID == surveyID {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) CountResponsesByApplication(_ context.Context, applicationID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for _, resp := range r.responses {
		if resp.ApplicationID != nil && *resp.ApplicationID == applicationID {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) Respondents(_ context.Context, surveyID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0)
	for _, resp := range r.responses {
		if resp.SurveyID == surveyID {
			out = append(out, strings.ToLower(resp.RespondentEmail))
		}
	}
	return out, nil
}

type memOps struct {
	ops map[string]schedule.Operation
}

func (m *memOps) Create(_ context.Context, op schedule.Operation) (schedule.Operation, error) {
	op.ID = uuid.NewString()
	m.ops[op.ID] = op
	return op, nil
}

func (m *memOps) Get(_ context.Context, id string) (schedule.Operation, error) {
	op, ok := m.ops[id]
	if !ok {
		return schedule.Operation{}, core.ErrNotFound
	}
	return op, nil
}

func (m *memOps) ListBySurvey(_ context.Context, surveyID, opType string) ([]schedule.Operation, error) {
	out := make([]schedule.Operation, 0)
	for _, op := range m.ops {
		if op.SurveyID == surveyID && (opType == "" || op.Type == opType) {
			out = append(out, op)
		}
	}
	return out, nil
}

func (m *memOps) ListDue(context.Context, time.Time, int) ([]schedule.Operation, error) {
	return nil, nil
}

func (m *memOps) Claim(context.Context, string, time.Time) (bool, error) {
	return true, nil
}

func (m *memOps) RequeueStale(context.Context, time.Time, time.Time) (int, error) {
	return 0, nil
}

func (m *memOps) Finish(_ context.Context, op schedule.Operation) error {
	m.ops[op.ID] = op
	return nil
}

func (m *memOps) Cancel(_ context.Context, id string, _ time.Time) error {
	op := m.ops[id]
	op.Status = schedule.StatusCancelled
	m.ops[id] = op
	return nil
}

type fakeUsers struct {
	users    []user.User
	audience user.Audience
	calls    int
}

func (f *fakeUsers) Recipients(_ context.Context, audience user.Audience) ([]user.User, error) {
	f.audience = audience
	f.calls++
	return f.users, nil
}

type fakeMailer struct {
	batches []core.EmailBatch
	fail    map[string]bool // by recipient address
}

func (m *fakeMailer) SendBatch(_ context.Context, batch core.EmailBatch) (core.EmailBatchResult, error) {
	m.batches = append(m.batches, batch)
	var res core.EmailBatchResult
	for _, msg := range batch.Messages {
		if m.fail[msg.To[0].Address] {
			res.Failed++
		} else {
			res.Sent++
		}
	}
	return res, nil
}

type fixture struct {
	svc    *Service
	repo   *memRepo
	ops    *memOps
	users  *fakeUsers
	mailer *fakeMailer
	logs   *inmemdb.EmailLogs
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:   newMemRepo(),
		ops:    &memOps{ops: make(map[string]schedule.Operation)},
		users:  &fakeUsers{},
		mailer: &fakeMailer{fail: make(map[string]bool)},
		logs:   inmemdb.NewEmailLogs(),
	}
	f.svc = NewService(Deps{
		Conf:       core.NewTestConfig(),
		Repo:       f.repo,
		Operations: f.ops,
		Users:      f.users,
		Mailer:     f.mailer,
		EmailLogs:  f.logs,
		Tx:         inmemdb.Tx{},
		Logger:     logsvc.NewDiscardLogger(),
	})
	return f
}

var testNow = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func mockNow(t *testing.T, now time.Time) {
	t.Helper()
	orig := nowFunc
	nowFunc = func() time.Time { return now }
	t.Cleanup(func() { nowFunc = orig })
}

// newSurvey creates a survey running for the whole of March 2024.
func (f *fixture) newSurvey(t *testing.T, title string) Survey {
	t.Helper()
	s, err := f.svc.Create(context.Background(), NewSurvey{
		Title:             title,
		StartDate:         time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:           time.Date(2024, 3, 31, 23, 59, 0, 0, time.UTC),
		TargetRespondents: 4,
		TargetScore:       8,
	}, "admin")
	require.NoError(t, err)
	return s
}

func (f *fixture) addQuestion(t *testing.T, surveyID string, in QuestionInput) Question {
	t.Helper()
	q, err := f.svc.AddQuestion(context.Background(), surveyID, in)
	require.NoError(t, err)
	return q
}

func (f *fixture) activate(t *testing.T, surveyID string) Survey {
	t.Helper()
	s, err := f.svc.UpdateStatus(context.Background(), surveyID, StatusUpdate{Status: StatusActive}, "admin")
	require.NoError(t, err)
	return s
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }
