package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/survey"
	"github.com/ademscil/Event-Management-BE-sub001/storage/database"
)

var surveyOrdering = map[string]string{
	"title":      "Title",
	"status":     "Status",
	"start_date": "StartDate",
	"end_date":   "EndDate",
	"created_at": "CreatedAt",
	"updated_at": "UpdatedAt",
}

type surveyRepository struct {
	surveys   *database.BaseRepository[survey.Survey]
	configs   *database.BaseRepository[survey.Configuration]
	questions *database.BaseRepository[survey.Question]
	responses *database.BaseRepository[survey.Response]
	answers   *database.BaseRepository[survey.Answer]
}

var _ survey.Repository = (*surveyRepository)(nil)

func NewSurveyRepository(exec core.DBExecutor) *surveyRepository {
	return &surveyRepository{
		surveys: database.NewBaseRepository[survey.Survey](exec, database.Table{
			Name: "Surveys",
			PK:   "SurveyId",
			Columns: []string{
				"SurveyId", "Title", "Description", "StartDate", "EndDate", "Status", "AssignedAdminId",
				"TargetRespondents", "TargetScore", "DuplicatePreventionEnabled",
				"SurveyLink", "ShortCode", "ShortenedLink", "QRCodeDataUrl", "EmbedCode",
				"CreatedAt", "CreatedBy", "UpdatedAt", "UpdatedBy",
			},
		}),
		configs: database.NewBaseRepository[survey.Configuration](exec, database.Table{
			Name: "SurveyConfigurations",
			PK:   "ConfigId",
			Columns: []string{
				"ConfigId", "SurveyId", "HeroTitle", "HeroSubtitle", "HeroImageUrl", "LogoUrl",
				"BackgroundColor", "BackgroundImageUrl", "PrimaryColor", "SecondaryColor", "FontFamily",
				"ButtonStyle", "ShowProgressBar", "ShowPageNumbers", "MultiPage", "UpdatedAt",
			},
		}),
		questions: database.NewBaseRepository[survey.Question](exec, database.Table{
			Name: "Questions",
			PK:   "QuestionId",
			Columns: []string{
				"QuestionId", "SurveyId", "Type", "PromptText", "Subtitle", "ImageUrl", "IsMandatory",
				"DisplayOrder", "PageNumber", "LayoutOrientation", "Options", "RatingScale", "CommentRequired",
				"CreatedAt", "UpdatedAt",
			},
		}),
		responses: database.NewBaseRepository[survey.Response](exec, database.Table{
			Name: "Responses",
			PK:   "ResponseId",
			Columns: []string{
				"ResponseId", "SurveyId", "RespondentEmail", "RespondentName", "BusinessUnitId",
				"DivisionId", "DepartmentId", "ApplicationId", "IPAddress", "SubmittedAt",
			},
		}),
		answers: database.NewBaseRepository[survey.Answer](exec, database.Table{
			Name:    "QuestionResponses",
			PK:      "QuestionResponseId",
			Columns: []string{"QuestionResponseId", "ResponseId", "QuestionId", "TextValue", "NumericValue", "CommentValue"},
		}),
	}
}

// Surveys

func surveyValues(s survey.Survey) map[string]interface{} {
	return map[string]interface{}{
		"Title":                      s.Title,
		"Description":                s.Description,
		"StartDate":                  s.StartDate,
		"EndDate":                    s.EndDate,
		"Status":                     s.Status,
		"AssignedAdminId":            nullable(s.AssignedAdminID),
		"TargetRespondents":          s.TargetRespondents,
		"TargetScore":                s.TargetScore,
		"DuplicatePreventionEnabled": s.DuplicatePreventionEnabled,
		"SurveyLink":                 s.SurveyLink,
		"ShortCode":                  s.ShortCode,
		"ShortenedLink":              s.ShortenedLink,
		"QRCodeDataUrl":              s.QRCodeDataURL,
		"EmbedCode":                  s.EmbedCode,
		"UpdatedAt":                  s.UpdatedAt,
		"UpdatedBy":                  s.UpdatedBy,
	}
}

func (repo *surveyRepository) Create(ctx context.Context, s survey.Survey, exec ...core.DBExecutor) (survey.Survey, error) {
	s.ID = uuid.NewString()
	vals := surveyValues(s)
	vals["SurveyId"] = s.ID
	vals["CreatedAt"] = s.CreatedAt
	vals["CreatedBy"] = s.CreatedBy
	if err := repo.surveys.Create(ctx, vals, exec...); err != nil {
		return survey.Survey{}, mapDBError(err, "creating survey")
	}
	return s, nil
}

func (repo *surveyRepository) Get(ctx context.Context, id string, exec ...core.DBExecutor) (survey.Survey, error) {
	return repo.surveys.FindByID(ctx, id, exec...)
}

func (repo *surveyRepository) GetByShortCode(ctx context.Context, code string) (survey.Survey, error) {
	return repo.surveys.FindOne(ctx, "ShortCode = ?", []interface{}{code})
}

func (repo *surveyRepository) ShortCodeExists(ctx context.Context, code string) (bool, error) {
	return repo.surveys.Exists(ctx, "ShortCode = ?", []interface{}{code})
}

func (repo *surveyRepository) List(ctx context.Context, filter survey.Filter) ([]survey.Survey, error) {
	var w where
	w.search(filter.Search, "Title", "Description")
	if filter.Status != "" {
		w.add("Status = ?", filter.Status)
	}
	if filter.AssignedAdminID != "" {
		w.add("AssignedAdminId = ?", filter.AssignedAdminID)
	}
	return repo.surveys.FindAll(ctx, database.Query{
		Where:   w.String(),
		Args:    w.args,
		OrderBy: ordering(filter.Ordering, surveyOrdering, core.DBOrdering{Field: "CreatedAt"}),
	})
}

func (repo *surveyRepository) Update(ctx context.Context, s survey.Survey, exec ...core.DBExecutor) (survey.Survey, error) {
	if err := repo.surveys.Update(ctx, s.ID, surveyValues(s), exec...); err != nil {
		return survey.Survey{}, mapDBError(err, "updating survey")
	}
	return s, nil
}

func (repo *surveyRepository) Delete(ctx context.Context, id string) error {
	return mapDBError(repo.surveys.Delete(ctx, id), "deleting survey")
}

// Configuration

func (repo *surveyRepository) GetConfiguration(ctx context.Context, surveyID string) (survey.Configuration, error) {
	return repo.configs.FindOne(ctx, "SurveyId = ?", []interface{}{surveyID})
}

func (repo *surveyRepository) SaveConfiguration(ctx context.Context, cfg survey.Configuration, exec ...core.DBExecutor) (survey.Configuration, error) {
	vals := map[string]interface{}{
		"HeroTitle":          cfg.HeroTitle,
		"HeroSubtitle":       cfg.HeroSubtitle,
		"HeroImageUrl":       cfg.HeroImageURL,
		"LogoUrl":            cfg.LogoURL,
		"BackgroundColor":    cfg.BackgroundColor,
		"BackgroundImageUrl": cfg.BackgroundImageURL,
		"PrimaryColor":       cfg.PrimaryColor,
		"SecondaryColor":     cfg.SecondaryColor,
		"FontFamily":         cfg.FontFamily,
		"ButtonStyle":        cfg.ButtonStyle,
		"ShowProgressBar":    cfg.ShowProgressBar,
		"ShowPageNumbers":    cfg.ShowPageNumbers,
		"MultiPage":          cfg.MultiPage,
		"UpdatedAt":          cfg.UpdatedAt,
	}

	current, err := repo.configs.FindOne(ctx, "SurveyId = ?", []interface{}{cfg.SurveyID}, exec...)
	switch {
	case err == nil:
		cfg.ID = current.ID
		if err = repo.configs.Update(ctx, cfg.ID, vals, exec...); err != nil {
			return survey.Configuration{}, mapDBError(err, "updating survey configuration")
		}
	case err == core.ErrNotFound:
		cfg.ID = uuid.NewString()
		vals["ConfigId"] = cfg.ID
		vals["SurveyId"] = cfg.SurveyID
		if err = repo.configs.Create(ctx, vals, exec...); err != nil {
			return survey.Configuration{}, mapDBError(err, "creating survey configuration")
		}
	default:
		return survey.Configuration{}, err
	}
	return cfg, nil
}

// Questions

func questionValues(q survey.Question) map[string]interface{} {
	return map[string]interface{}{
		"Type":              q.Type,
		"PromptText":        q.PromptText,
		"Subtitle":          q.Subtitle,
		"ImageUrl":          q.ImageURL,
		"IsMandatory":       q.IsMandatory,
		"DisplayOrder":      q.DisplayOrder,
		"PageNumber":        q.PageNumber,
		"LayoutOrientation": q.LayoutOrientation,
		"Options":           q.Options,
		"RatingScale":       q.RatingScale,
		"CommentRequired":   q.CommentRequired,
		"UpdatedAt":         q.UpdatedAt,
	}
}

func (repo *surveyRepository) CreateQuestion(ctx context.Context, q survey.Question, exec ...core.DBExecutor) (survey.Question, error) {
	q.ID = uuid.NewString()
	vals := questionValues(q)
	vals["QuestionId"] = q.ID
	vals["SurveyId"] = q.SurveyID
	vals["CreatedAt"] = q.CreatedAt
	if err := repo.questions.Create(ctx, vals, exec...); err != nil {
		return survey.Question{}, mapDBError(err, "creating question")
	}
	return q, nil
}

func (repo *surveyRepository) GetQuestion(ctx context.Context, id string) (survey.Question, error) {
	return repo.questions.FindByID(ctx, id)
}

func (repo *surveyRepository) ListQuestions(ctx context.Context, surveyID string, exec ...core.DBExecutor) ([]survey.Question, error) {
	return repo.questions.FindAll(ctx, database.Query{
		Where: "SurveyId = ?",
		Args:  []interface{}{surveyID},
		OrderBy: []core.DBOrdering{
			{Field: "PageNumber", Ascending: true},
			{Field: "DisplayOrder", Ascending: true},
		},
	}, exec...)
}

func (repo *surveyRepository) UpdateQuestion(ctx context.Context, q survey.Question, exec ...core.DBExecutor) (survey.Question, error) {
	if err := repo.questions.Update(ctx, q.ID, questionValues(q), exec...); err != nil {
		return survey.Question{}, mapDBError(err, "updating question")
	}
	return q, nil
}

func (repo *surveyRepository) DeleteQuestion(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return mapDBError(repo.questions.Delete(ctx, id, exec...), "deleting question")
}

func (repo *surveyRepository) SetDisplayOrder(ctx context.Context, id string, order int, exec ...core.DBExecutor) error {
	return repo.questions.Update(ctx, id, map[string]interface{}{"DisplayOrder": order}, exec...)
}

// Responses

func (repo *surveyRepository) CreateResponse(ctx context.Context, r survey.Response, exec ...core.DBExecutor) (survey.Response, error) {
	r.ID = uuid.NewString()
	err := repo.responses.Create(ctx, map[string]interface{}{
		"ResponseId":      r.ID,
		"SurveyId":        r.SurveyID,
		"RespondentEmail": r.RespondentEmail,
		"RespondentName":  r.RespondentName,
		"BusinessUnitId":  nullable(r.BusinessUnitID),
		"DivisionId":      nullable(r.DivisionID),
		"DepartmentId":    nullable(r.DepartmentID),
		"ApplicationId":   nullable(r.ApplicationID),
		"IPAddress":       r.IPAddress,
		"SubmittedAt":     r.SubmittedAt,
	}, exec...)
	if err != nil {
		return survey.Response{}, mapDBError(err, "creating response")
	}
	return r, nil
}

func (repo *surveyRepository) CreateAnswer(ctx context.Context, a survey.Answer, exec ...core.DBExecutor) (survey.Answer, error) {
	a.ID = uuid.NewString()
	err := repo.answers.Create(ctx, map[string]interface{}{
		"QuestionResponseId": a.ID,
		"ResponseId":         a.ResponseID,
		"QuestionId":         a.QuestionID,
		"TextValue":          a.TextValue,
		"NumericValue":       a.NumericValue,
		"CommentValue":       a.CommentValue,
	}, exec...)
	if err != nil {
		return survey.Answer{}, mapDBError(err, "creating answer")
	}
	return a, nil
}

func (repo *surveyRepository) GetResponse(ctx context.Context, id string) (survey.Response, error) {
	return repo.responses.FindByID(ctx, id)
}

func (repo *surveyRepository) ListResponses(ctx context.Context, filter survey.ResponseFilter) ([]survey.Response, error) {
	var w where
	w.add("SurveyId = ?", filter.SurveyID)
	if filter.Email != "" {
		w.add("LOWER(RespondentEmail) = LOWER(?)", filter.Email)
	}
	if filter.ApplicationID != "" {
		w.add("ApplicationId = ?", filter.ApplicationID)
	}
	if filter.DepartmentID != "" {
		w.add("DepartmentId = ?", filter.DepartmentID)
	}
	if !filter.From.IsZero() {
		w.add("SubmittedAt >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		w.add("SubmittedAt <= ?", filter.To)
	}
	return repo.responses.FindAll(ctx, database.Query{
		Where:   w.String(),
		Args:    w.args,
		OrderBy: []core.DBOrdering{{Field: "SubmittedAt"}},
	})
}

func (repo *surveyRepository) ListAnswers(ctx context.Context, responseID string) ([]survey.Answer, error) {
	return repo.answers.FindAll(ctx, database.Query{Where: "ResponseId = ?", Args: []interface{}{responseID}})
}

func (repo *surveyRepository) SurveyAnswers(ctx context.Context, surveyID string) ([]survey.Answer, error) {
	return repo.answers.FindAll(ctx, database.Query{
		Where: "ResponseId IN (SELECT ResponseId FROM Responses WHERE SurveyId = ?)",
		Args:  []interface{}{surveyID},
	})
}

func (repo *surveyRepository) ResponseExists(ctx context.Context, surveyID, email string, applicationID *string, exec ...core.DBExecutor) (bool, error) {
	var w where
	w.add("SurveyId = ?", surveyID)
	w.add("LOWER(RespondentEmail) = LOWER(?)", email)
	if applicationID != nil && *applicationID != "" {
		w.add("ApplicationId = ?", *applicationID)
	}
	// UPDLOCK+HOLDLOCK holds the checked key range until the transaction ends.
	exe := repo.responses.Exec(exec)
	var n int
	q := exe.Rebind("SELECT COUNT(*) FROM Responses WITH (UPDLOCK, HOLDLOCK) WHERE " + w.String())
	if err := exe.GetContext(ctx, &n, q, w.args...); err != nil {
		return false, errors.Wrap(err, "checking for a previous response")
	}
	return n > 0, nil
}

func (repo *surveyRepository) CountResponses(ctx context.Context, surveyID string) (int, error) {
	return repo.responses.Count(ctx, "SurveyId = ?", []interface{}{surveyID})
}

func (repo *surveyRepository) CountResponsesByApplication(ctx context.Context, applicationID string) (int, error) {
	return repo.responses.Count(ctx, "ApplicationId = ?", []interface{}{applicationID})
}

func (repo *surveyRepository) Respondents(ctx context.Context, surveyID string) ([]string, error) {
	exe := repo.responses.Exec(nil)
	emails := make([]string, 0)
	q := exe.Rebind("SELECT DISTINCT LOWER(RespondentEmail) FROM Responses WHERE SurveyId = ?")
	if err := exe.SelectContext(ctx, &emails, q, surveyID); err != nil {
		return nil, errors.Wrap(err, "listing respondents")
	}
	return emails, nil
}
