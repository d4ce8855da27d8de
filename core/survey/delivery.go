package survey

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/schedule"
	"github.com/ademscil/Event-Management-BE-sub001/core/user"
)

const emailDateLayout = "02 Jan 2006 15:04 MST"

// SendNow is an immediate blast or reminder.
type SendNow struct {
	TargetCriteria schedule.TargetCriteria `json:"target_criteria"`
	EmailTemplate  string                  `json:"email_template" validate:"max=100"`
	EmbedCover     bool                    `json:"embed_cover"`
}

type invitationData struct {
	RecipientName string
	SurveyTitle   string
	Description   string
	EndDate       string
	SurveyLink    string
	CoverImageURL string
}

func defaultTemplate(opType string) string {
	if opType == schedule.TypeReminder {
		return core.TemplateSurveyReminder
	}
	return core.TemplateSurveyInvitation
}

func checkTemplate(name string) error {
	switch name {
	case "", core.TemplateSurveyInvitation, core.TemplateSurveyReminder:
		return nil
	}
	return core.NewValidationError(nil, core.FieldError{Field: "email_template", Error: fmt.Sprintf("unknown email template %q", name)})
}

// ScheduleBlast registers an invitation send; its first run is computed right away.
func (svc *Service) ScheduleBlast(ctx context.Context, surveyID string, in schedule.NewOperation, actor string) (schedule.Operation, error) {
	return svc.scheduleOperation(ctx, surveyID, schedule.TypeBlast, in, actor)
}

// ScheduleReminder registers a reminder to the targeted users who have not responded yet.
func (svc *Service) ScheduleReminder(ctx context.Context, surveyID string, in schedule.NewOperation, actor string) (schedule.Operation, error) {
	return svc.scheduleOperation(ctx, surveyID, schedule.TypeReminder, in, actor)
}

func (svc *Service) scheduleOperation(ctx context.Context, surveyID, opType string, in schedule.NewOperation, actor string) (schedule.Operation, error) {
	if err := in.Validate(); err != nil {
		return schedule.Operation{}, err
	}
	if err := checkTemplate(in.EmailTemplate); err != nil {
		return schedule.Operation{}, err
	}
	s, err := svc.Get(ctx, surveyID)
	if err != nil {
		return schedule.Operation{}, err
	}
	if s.Status != StatusDraft && s.Status != StatusActive {
		return schedule.Operation{}, core.NewConflictError("cannot schedule emails for a %s survey", s.Status)
	}

	op, err := schedule.Plan(in, surveyID, opType, actor, nowFunc(), svc.conf.Scheduler.Location())
	if err != nil {
		return schedule.Operation{}, err
	}
	if op.NextExecutionAt.After(s.EndDate) {
		return schedule.Operation{}, core.NewValidationError(nil, core.FieldError{
			Field: "scheduled_date", Error: "the first run is after the end of the survey",
		})
	}
	return svc.ops.Create(ctx, op)
}

// ListScheduled lists the operations of a survey; opType may be empty to list both kinds.
func (svc *Service) ListScheduled(ctx context.Context, surveyID, opType string) ([]schedule.Operation, error) {
	if _, err := svc.Get(ctx, surveyID); err != nil {
		return nil, err
	}
	return svc.ops.ListBySurvey(ctx, surveyID, opType)
}

func (svc *Service) CancelScheduled(ctx context.Context, surveyID, operationID string) error {
	op, err := svc.ops.Get(ctx, operationID)
	if core.IsNotFound(err) || (err == nil && op.SurveyID != surveyID) {
		return schedule.ErrNotFound
	}
	if err != nil {
		return err
	}
	if op.Status != schedule.StatusScheduled {
		return core.NewConflictError("only scheduled operations can be cancelled (status is %s)", op.Status)
	}
	return svc.ops.Cancel(ctx, op.ID, nowFunc().UTC())
}

func (svc *Service) SendBlastNow(ctx context.Context, surveyID string, in SendNow) (schedule.Result, error) {
	return svc.sendNow(ctx, surveyID, schedule.TypeBlast, in)
}

func (svc *Service) SendReminderNow(ctx context.Context, surveyID string, in SendNow) (schedule.Result, error) {
	return svc.sendNow(ctx, surveyID, schedule.TypeReminder, in)
}

func (svc *Service) sendNow(ctx context.Context, surveyID, opType string, in SendNow) (schedule.Result, error) {
	in.EmailTemplate = core.CleanString(in.EmailTemplate)
	if err := core.Validate.Struct(in); err != nil {
		return schedule.Result{}, err
	}
	if err := checkTemplate(in.EmailTemplate); err != nil {
		return schedule.Result{}, err
	}
	return svc.Execute(ctx, schedule.Operation{
		SurveyID:       surveyID,
		Type:           opType,
		TargetCriteria: in.TargetCriteria,
		EmailTemplate:  in.EmailTemplate,
		EmbedCover:     in.EmbedCover,
	})
}

// Execute sends the emails of a blast or a reminder. The survey must be active.
func (svc *Service) Execute(ctx context.Context, op schedule.Operation) (schedule.Result, error) {
	s, err := svc.Get(ctx, op.SurveyID)
	if err != nil {
		return schedule.Result{}, err
	}
	if s.Status != StatusActive {
		return schedule.Result{}, core.NewConflictError("survey %q is not active", s.Title)
	}

	recipients, err := svc.recipients(ctx, op)
	if err != nil {
		return schedule.Result{}, err
	}
	result := schedule.Result{Recipients: len(recipients)}
	if len(recipients) == 0 {
		return result, nil
	}

	var coverURL string
	if op.EmbedCover {
		cfg, err := svc.GetConfiguration(ctx, s.ID)
		if err != nil {
			return result, err
		}
		coverURL = cfg.HeroImageURL
	}

	link := s.ShortenedLink
	if link == "" {
		link = surveyLink(svc.conf.FrontendBaseURL, s.ID)
	}
	tmpl := op.EmailTemplate
	if tmpl == "" {
		tmpl = defaultTemplate(op.Type)
	}
	subject := "You are invited: " + s.Title
	if op.Type == schedule.TypeReminder {
		subject = "Reminder: " + s.Title
	}
	endDate := s.EndDate.In(svc.conf.Scheduler.Location()).Format(emailDateLayout)

	batch := core.EmailBatch{
		Kind:        op.Type,
		SurveyID:    s.ID,
		OperationID: op.ID,
		Messages:    make([]*core.EmailMessage, 0, len(recipients)),
	}
	for _, rcpt := range recipients {
		name := rcpt.Name
		if name == "" {
			name = rcpt.Address
		}
		batch.Messages = append(batch.Messages, &core.EmailMessage{
			To:           []mail.Address{rcpt},
			Subject:      subject,
			TemplateName: tmpl,
			TemplateData: invitationData{
				RecipientName: name,
				SurveyTitle:   s.Title,
				Description:   s.Description,
				EndDate:       endDate,
				SurveyLink:    link,
				CoverImageURL: coverURL,
			},
		})
	}

	sent, err := svc.mailer.SendBatch(ctx, batch)
	result.Sent, result.Failed = sent.Sent, sent.Failed
	svc.logger.Info(fmt.Sprintf("survey %s %s: %d sent, %d failed", s.ID, strings.ToLower(op.Type), result.Sent, result.Failed))
	if err != nil {
		return result, errors.Wrap(err, "mailer.SendBatch")
	}
	if result.Sent == 0 && result.Failed > 0 {
		return result, errors.Errorf("all %d emails failed", result.Failed)
	}
	return result, nil
}

// recipients resolves the target criteria of op.
// Reminders skip everyone who already responded.
func (svc *Service) recipients(ctx context.Context, op schedule.Operation) ([]mail.Address, error) {
	tc := op.TargetCriteria
	var users []user.User
	// explicit emails alone do not pull in the whole user base
	if len(tc.Emails) == 0 || len(tc.BusinessUnitIDs)+len(tc.DivisionIDs)+len(tc.DepartmentIDs)+len(tc.Roles) > 0 {
		var err error
		users, err = svc.users.Recipients(ctx, user.Audience{
			BusinessUnitIDs: tc.BusinessUnitIDs,
			DivisionIDs:     tc.DivisionIDs,
			DepartmentIDs:   tc.DepartmentIDs,
			Roles:           tc.Roles,
		})
		if err != nil {
			return nil, err
		}
	}

	skip := make(map[string]bool)
	if op.Type == schedule.TypeReminder {
		respondents, err := svc.repo.Respondents(ctx, op.SurveyID)
		if err != nil {
			return nil, err
		}
		for _, email := range respondents {
			skip[strings.ToLower(email)] = true
		}
	}

	addrs := make([]mail.Address, 0, len(users)+len(tc.Emails))
	add := func(name, email string) {
		key := strings.ToLower(strings.TrimSpace(email))
		if key == "" || skip[key] {
			return
		}
		skip[key] = true
		addrs = append(addrs, mail.Address{Name: name, Address: key})
	}
	for _, u := range users {
		add(u.DisplayName, u.Email)
	}
	for _, email := range tc.Emails {
		add("", email)
	}
	return addrs, nil
}

// SurveyEndDate is used by the scheduler to stop recurring operations.
func (svc *Service) SurveyEndDate(ctx context.Context, surveyID string) (time.Time, error) {
	s, err := svc.Get(ctx, surveyID)
	if err != nil {
		return time.Time{}, err
	}
	return s.EndDate, nil
}

// EmailLogs lists the emails sent for a survey.
func (svc *Service) EmailLogs(ctx context.Context, surveyID string) ([]core.EmailLog, error) {
	if _, err := svc.Get(ctx, surveyID); err != nil {
		return nil, err
	}
	return svc.emailLogs.ListBySurvey(ctx, surveyID)
}
