package survey

import (
	"context"
	"sort"
	"time"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/schedule"
	"github.com/ademscil/Event-Management-BE-sub001/core/user"
)

var nowFunc = time.Now // mockable

type (
	SurveyRepository interface {
		Create(ctx context.Context, s Survey, exec ...core.DBExecutor) (Survey, error)
		Get(ctx context.Context, id string, exec ...core.DBExecutor) (Survey, error)
		GetByShortCode(ctx context.Context, code string) (Survey, error)
		ShortCodeExists(ctx context.Context, code string) (bool, error)
		List(ctx context.Context, filter Filter) ([]Survey, error)
		Update(ctx context.Context, s Survey, exec ...core.DBExecutor) (Survey, error)
		Delete(ctx context.Context, id string) error

		// GetConfiguration returns ErrNotFound when the survey was never configured.
		GetConfiguration(ctx context.Context, surveyID string) (Configuration, error)
		// SaveConfiguration inserts or updates the configuration of cfg.SurveyID.
		SaveConfiguration(ctx context.Context, cfg Configuration, exec ...core.DBExecutor) (Configuration, error)
	}

	QuestionRepository interface {
		CreateQuestion(ctx context.Context, q Question, exec ...core.DBExecutor) (Question, error)
		GetQuestion(ctx context.Context, id string) (Question, error)
		// ListQuestions returns the questions of a survey by page then display order.
		ListQuestions(ctx context.Context, surveyID string, exec ...core.DBExecutor) ([]Question, error)
		UpdateQuestion(ctx context.Context, q Question, exec ...core.DBExecutor) (Question, error)
		DeleteQuestion(ctx context.Context, id string, exec ...core.DBExecutor) error
		SetDisplayOrder(ctx context.Context, id string, order int, exec ...core.DBExecutor) error
	}

	ResponseRepository interface {
		CreateResponse(ctx context.Context, r Response, exec ...core.DBExecutor) (Response, error)
		CreateAnswer(ctx context.Context, a Answer, exec ...core.DBExecutor) (Answer, error)
		GetResponse(ctx context.Context, id string) (Response, error)
		ListResponses(ctx context.Context, filter ResponseFilter) ([]Response, error)
		ListAnswers(ctx context.Context, responseID string) ([]Answer, error)
		// SurveyAnswers returns every answer given to the questions of a survey.
		SurveyAnswers(ctx context.Context, surveyID string) ([]Answer, error)
		// ResponseExists matches on email and, when applicationID is set, on the application too.
		ResponseExists(ctx context.Context, surveyID, email string, applicationID *string, exec ...core.DBExecutor) (bool, error)
		CountResponses(ctx context.Context, surveyID string) (int, error)
		CountResponsesByApplication(ctx context.Context, applicationID string) (int, error)
		// Respondents returns the lower-cased emails that answered a survey.
		Respondents(ctx context.Context, surveyID string) ([]string, error)
	}

	Repository interface {
		SurveyRepository
		QuestionRepository
		ResponseRepository
	}

	// RecipientFinder lists the users targeted by an operation.
	RecipientFinder interface {
		Recipients(ctx context.Context, audience user.Audience) ([]user.User, error)
	}

	Deps struct {
		Conf       *core.Config
		Repo       Repository
		Operations schedule.Repository
		Users      RecipientFinder
		Mailer     core.BatchEmailSender
		EmailLogs  core.EmailLogRepository
		Tx         core.Transactor
		Logger     core.Logger
	}

	Service struct {
		conf      *core.Config
		repo      Repository
		ops       schedule.Repository
		users     RecipientFinder
		mailer    core.BatchEmailSender
		emailLogs core.EmailLogRepository
		tx        core.Transactor
		logger    core.Logger
	}
)

var _ schedule.Executor = (*Service)(nil)

func NewService(deps Deps) *Service {
	return &Service{
		conf:      deps.Conf,
		repo:      deps.Repo,
		ops:       deps.Operations,
		users:     deps.Users,
		mailer:    deps.Mailer,
		emailLogs: deps.EmailLogs,
		tx:        deps.Tx,
		logger:    deps.Logger,
	}
}

func (svc *Service) Create(ctx context.Context, in NewSurvey, actor string) (Survey, error) {
	if err := in.Validate(); err != nil {
		return Survey{}, err
	}
	dupPrevention := true
	if in.DuplicatePreventionEnabled != nil {
		dupPrevention = *in.DuplicatePreventionEnabled
	}
	now := nowFunc().UTC()
	s := Survey{
		Title:                      in.Title,
		Description:                in.Description,
		StartDate:                  in.StartDate.UTC(),
		EndDate:                    in.EndDate.UTC(),
		Status:                     StatusDraft,
		AssignedAdminID:            in.AssignedAdminID,
		TargetRespondents:          in.TargetRespondents,
		TargetScore:                in.TargetScore,
		DuplicatePreventionEnabled: dupPrevention,
		CreatedAt:                  now,
		CreatedBy:                  actor,
		UpdatedAt:                  now,
		UpdatedBy:                  actor,
	}

	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if s, err = svc.repo.Create(ctx, s, exec); err != nil {
			return err
		}
		cfg := DefaultConfiguration(s.ID)
		cfg.HeroTitle = s.Title
		cfg.UpdatedAt = now
		_, err = svc.repo.SaveConfiguration(ctx, cfg, exec)
		return err
	})
	return s, err
}

func (svc *Service) Get(ctx context.Context, id string) (Survey, error) {
	s, err := svc.repo.Get(ctx, id)
	if core.IsNotFound(err) {
		return s, ErrNotFound
	}
	return s, err
}

func (svc *Service) List(ctx context.Context, filter Filter) ([]Survey, error) {
	filter.Clean()
	return svc.repo.List(ctx, filter)
}

// editable loads a survey that may still be modified.
func (svc *Service) editable(ctx context.Context, id string) (Survey, error) {
	s, err := svc.Get(ctx, id)
	if err != nil {
		return Survey{}, err
	}
	if s.Status == StatusClosed || s.Status == StatusArchived {
		return Survey{}, core.NewConflictError("%s surveys cannot be modified", s.Status)
	}
	return s, nil
}

func (svc *Service) Update(ctx context.Context, id string, in UpdateSurvey, actor string) (Survey, error) {
	if err := in.Validate(); err != nil {
		return Survey{}, err
	}
	s, err := svc.editable(ctx, id)
	if err != nil {
		return Survey{}, err
	}

	if in.Title != "" {
		s.Title = in.Title
	}
	if in.Description != nil {
		s.Description = *in.Description
	}
	if in.StartDate != nil {
		s.StartDate = in.StartDate.UTC()
	}
	if in.EndDate != nil {
		s.EndDate = in.EndDate.UTC()
	}
	if !s.EndDate.After(s.StartDate) {
		return Survey{}, core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: "end_date must be after start_date"})
	}
	if in.AssignedAdminID != nil {
		s.AssignedAdminID = in.AssignedAdminID
		if *in.AssignedAdminID == "" {
			s.AssignedAdminID = nil
		}
	}
	if in.TargetRespondents != nil {
		s.TargetRespondents = *in.TargetRespondents
	}
	if in.TargetScore != nil {
		s.TargetScore = *in.TargetScore
	}
	if in.DuplicatePreventionEnabled != nil {
		s.DuplicatePreventionEnabled = *in.DuplicatePreventionEnabled
	}
	s.UpdatedAt = nowFunc().UTC()
	s.UpdatedBy = actor
	return svc.repo.Update(ctx, s)
}

// Delete removes a survey that has not collected any response.
func (svc *Service) Delete(ctx context.Context, id string) error {
	if _, err := svc.Get(ctx, id); err != nil {
		return err
	}
	n, err := svc.repo.CountResponses(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return core.NewConflictError("survey has %d response(s); archive it instead", n)
	}
	err = svc.repo.Delete(ctx, id)
	if core.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}

// UpdateStatus moves a survey through Draft -> Active -> Closed -> Archived.
// Activation requires at least one answerable question and an end date in the future.
func (svc *Service) UpdateStatus(ctx context.Context, id string, in StatusUpdate, actor string) (Survey, error) {
	if err := core.Validate.Struct(in); err != nil {
		return Survey{}, err
	}
	s, err := svc.Get(ctx, id)
	if err != nil {
		return Survey{}, err
	}
	if s.Status == in.Status {
		return s, nil
	}
	if !s.CanTransitionTo(in.Status) {
		return Survey{}, core.NewConflictError("cannot change survey status from %s to %s", s.Status, in.Status)
	}

	now := nowFunc().UTC()
	if in.Status == StatusActive {
		if !s.EndDate.After(now) {
			return Survey{}, core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: "the survey has already ended"})
		}
		questions, err := svc.repo.ListQuestions(ctx, id)
		if err != nil {
			return Survey{}, err
		}
		var answerable int
		for _, q := range questions {
			if q.Answerable() {
				answerable++
			}
		}
		if answerable == 0 {
			return Survey{}, core.NewValidationError(nil, core.FieldError{Field: "status", Error: "the survey has no question"})
		}
	}

	s.Status = in.Status
	s.UpdatedAt = now
	s.UpdatedBy = actor
	return svc.repo.Update(ctx, s)
}

// Configuration

func (svc *Service) GetConfiguration(ctx context.Context, surveyID string) (Configuration, error) {
	if _, err := svc.Get(ctx, surveyID); err != nil {
		return Configuration{}, err
	}
	cfg, err := svc.repo.GetConfiguration(ctx, surveyID)
	if core.IsNotFound(err) {
		return DefaultConfiguration(surveyID), nil
	}
	return cfg, err
}

func (svc *Service) UpdateConfiguration(ctx context.Context, surveyID string, cfg Configuration) (Configuration, error) {
	if _, err := svc.editable(ctx, surveyID); err != nil {
		return Configuration{}, err
	}
	defaults := DefaultConfiguration(surveyID)
	cfg.SurveyID = surveyID
	cfg.HeroTitle = core.CleanString(cfg.HeroTitle)
	cfg.HeroSubtitle = core.CleanString(cfg.HeroSubtitle)
	cfg.FontFamily = core.CleanString(cfg.FontFamily)
	if cfg.FontFamily == "" {
		cfg.FontFamily = defaults.FontFamily
	}
	if cfg.ButtonStyle == "" {
		cfg.ButtonStyle = defaults.ButtonStyle
	}
	if cfg.BackgroundColor == "" {
		cfg.BackgroundColor = defaults.BackgroundColor
	}
	if cfg.PrimaryColor == "" {
		cfg.PrimaryColor = defaults.PrimaryColor
	}
	if cfg.SecondaryColor == "" {
		cfg.SecondaryColor = defaults.SecondaryColor
	}
	if err := core.Validate.Struct(cfg); err != nil {
		return Configuration{}, err
	}
	cfg.UpdatedAt = nowFunc().UTC()
	return svc.repo.SaveConfiguration(ctx, cfg)
}

// Preview returns a survey with its configuration and its questions grouped by page.
func (svc *Service) Preview(ctx context.Context, surveyID string) (Preview, error) {
	s, err := svc.Get(ctx, surveyID)
	if err != nil {
		return Preview{}, err
	}
	cfg, err := svc.GetConfiguration(ctx, surveyID)
	if err != nil {
		return Preview{}, err
	}
	questions, err := svc.repo.ListQuestions(ctx, surveyID)
	if err != nil {
		return Preview{}, err
	}
	return Preview{Survey: s, Configuration: cfg, Pages: paginate(questions, cfg.MultiPage)}, nil
}

// PublicPreview is the preview served to respondents; only open surveys are visible.
func (svc *Service) PublicPreview(ctx context.Context, surveyID string) (Preview, error) {
	p, err := svc.Preview(ctx, surveyID)
	if err != nil {
		return Preview{}, err
	}
	if !p.Survey.IsOpen(nowFunc().UTC()) {
		return Preview{}, ErrNotFound
	}
	p.Survey.CreatedBy, p.Survey.UpdatedBy, p.Survey.AssignedAdminID = "", "", nil
	return p, nil
}

// paginate groups questions by page number; single-page surveys get everything on page 1.
func paginate(questions []Question, multiPage bool) []Page {
	sorted := make([]Question, len(questions))
	copy(sorted, questions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if multiPage && sorted[i].PageNumber != sorted[j].PageNumber {
			return sorted[i].PageNumber < sorted[j].PageNumber
		}
		return sorted[i].DisplayOrder < sorted[j].DisplayOrder
	})

	pages := make([]Page, 0)
	for _, q := range sorted {
		number := 1
		if multiPage && q.PageNumber > 0 {
			number = q.PageNumber
		}
		if len(pages) == 0 || pages[len(pages)-1].Number != number {
			pages = append(pages, Page{Number: number, Questions: make([]Question, 0)})
		}
		pages[len(pages)-1].Questions = append(pages[len(pages)-1].Questions, q)
	}
	return pages
}
