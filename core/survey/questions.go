package survey

import (
	"context"

	"github.com/ademscil/Event-Management-BE-sub001/core"
)

func (svc *Service) ListQuestions(ctx context.Context, surveyID string) ([]Question, error) {
	if _, err := svc.Get(ctx, surveyID); err != nil {
		return nil, err
	}
	return svc.repo.ListQuestions(ctx, surveyID)
}

func (svc *Service) GetQuestion(ctx context.Context, surveyID, questionID string) (Question, error) {
	q, err := svc.repo.GetQuestion(ctx, questionID)
	if core.IsNotFound(err) || (err == nil && q.SurveyID != surveyID) {
		return Question{}, ErrQuestionNotFound
	}
	return q, err
}

// AddQuestion appends a question at the end of the survey.
func (svc *Service) AddQuestion(ctx context.Context, surveyID string, in QuestionInput) (Question, error) {
	if err := in.Validate(); err != nil {
		return Question{}, err
	}
	if _, err := svc.editable(ctx, surveyID); err != nil {
		return Question{}, err
	}

	var q Question
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		existing, err := svc.repo.ListQuestions(ctx, surveyID, exec)
		if err != nil {
			return err
		}
		order := 1
		for _, e := range existing {
			if e.DisplayOrder >= order {
				order = e.DisplayOrder + 1
			}
		}
		now := nowFunc().UTC()
		q = questionFromInput(in)
		q.SurveyID = surveyID
		q.DisplayOrder = order
		q.CreatedAt = now
		q.UpdatedAt = now
		q, err = svc.repo.CreateQuestion(ctx, q, exec)
		return err
	})
	return q, err
}

func (svc *Service) UpdateQuestion(ctx context.Context, surveyID, questionID string, in QuestionInput) (Question, error) {
	if err := in.Validate(); err != nil {
		return Question{}, err
	}
	if _, err := svc.editable(ctx, surveyID); err != nil {
		return Question{}, err
	}
	orig, err := svc.GetQuestion(ctx, surveyID, questionID)
	if err != nil {
		return Question{}, err
	}
	q := questionFromInput(in)
	q.ID = orig.ID
	q.SurveyID = orig.SurveyID
	q.DisplayOrder = orig.DisplayOrder
	q.CreatedAt = orig.CreatedAt
	q.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateQuestion(ctx, q)
}

// DeleteQuestion removes a question and closes the gap in the display order.
func (svc *Service) DeleteQuestion(ctx context.Context, surveyID, questionID string) error {
	if _, err := svc.editable(ctx, surveyID); err != nil {
		return err
	}
	if _, err := svc.GetQuestion(ctx, surveyID, questionID); err != nil {
		return err
	}
	return svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.repo.DeleteQuestion(ctx, questionID, exec); err != nil {
			return err
		}
		remaining, err := svc.repo.ListQuestions(ctx, surveyID, exec)
		if err != nil {
			return err
		}
		for i, q := range remaining {
			if q.DisplayOrder == i+1 {
				continue
			}
			if err = svc.repo.SetDisplayOrder(ctx, q.ID, i+1, exec); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReorderQuestions sets the display order to the order of in.QuestionIDs.
// The list must hold every question of the survey exactly once.
func (svc *Service) ReorderQuestions(ctx context.Context, surveyID string, in Reorder) ([]Question, error) {
	if err := core.Validate.Struct(in); err != nil {
		return nil, err
	}
	if _, err := svc.editable(ctx, surveyID); err != nil {
		return nil, err
	}

	var questions []Question
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		existing, err := svc.repo.ListQuestions(ctx, surveyID, exec)
		if err != nil {
			return err
		}
		known := make(map[string]bool, len(existing))
		for _, q := range existing {
			known[q.ID] = true
		}
		seen := make(map[string]bool, len(in.QuestionIDs))
		for _, id := range in.QuestionIDs {
			if !known[id] || seen[id] {
				return core.NewValidationError(nil, core.FieldError{Field: "question_ids", Error: "unknown or duplicate question " + id})
			}
			seen[id] = true
		}
		if len(seen) != len(known) {
			return core.NewValidationError(nil, core.FieldError{Field: "question_ids", Error: "every question of the survey must be listed"})
		}

		for i, id := range in.QuestionIDs {
			if err = svc.repo.SetDisplayOrder(ctx, id, i+1, exec); err != nil {
				return err
			}
		}
		questions, err = svc.repo.ListQuestions(ctx, surveyID, exec)
		return err
	})
	return questions, err
}

func questionFromInput(in QuestionInput) Question {
	q := Question{
		Type:              in.Type,
		PromptText:        in.PromptText,
		Subtitle:          in.Subtitle,
		ImageURL:          in.ImageURL,
		IsMandatory:       in.IsMandatory,
		PageNumber:        in.PageNumber,
		LayoutOrientation: in.LayoutOrientation,
		Options:           Options{},
		CommentRequired:   in.CommentRequired,
	}
	if hasOptions(in.Type) {
		q.Options = Options(in.Options)
	}
	if in.Type == TypeRating {
		q.RatingScale = in.RatingScale
	}
	if in.Type == TypeHeroCover {
		q.IsMandatory = false
	}
	return q
}
