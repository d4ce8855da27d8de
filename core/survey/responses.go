package survey

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ademscil/Event-Management-BE-sub001/core"
)

const (
	dateLayout      = "2006-01-02"
	maxTextAnswer   = 4000
	likertMin       = 1
	likertMax       = 5
	defaultScale    = 10
	signaturePrefix = "data:image/"
)

var ErrAlreadyResponded = core.NewConflictError("a response was already submitted for this survey")

// SubmitResponse stores the answers of a respondent in one transaction.
// The survey must be open, and every mandatory question answered.
func (svc *Service) SubmitResponse(ctx context.Context, surveyID string, in NewResponse, ipAddress string) (Response, error) {
	if err := in.Validate(); err != nil {
		return Response{}, err
	}
	s, err := svc.Get(ctx, surveyID)
	if err != nil {
		return Response{}, err
	}
	now := nowFunc().UTC()
	if !s.IsOpen(now) {
		return Response{}, core.NewConflictError("the survey is not accepting responses")
	}

	questions, err := svc.repo.ListQuestions(ctx, surveyID)
	if err != nil {
		return Response{}, err
	}
	answers, err := buildAnswers(questions, in.Answers)
	if err != nil {
		return Response{}, err
	}

	r := Response{
		SurveyID:        surveyID,
		RespondentEmail: in.RespondentEmail,
		RespondentName:  in.RespondentName,
		BusinessUnitID:  cleanRef(in.BusinessUnitID),
		DivisionID:      cleanRef(in.DivisionID),
		DepartmentID:    cleanRef(in.DepartmentID),
		ApplicationID:   cleanRef(in.ApplicationID),
		IPAddress:       ipAddress,
		SubmittedAt:     now,
	}

	err = svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if s.DuplicatePreventionEnabled {
			exists, err := svc.repo.ResponseExists(ctx, surveyID, r.RespondentEmail, r.ApplicationID, exec)
			if err != nil {
				return err
			}
			if exists {
				return ErrAlreadyResponded
			}
		}
		if r, err = svc.repo.CreateResponse(ctx, r, exec); err != nil {
			return err
		}
		r.Answers = make([]Answer, 0, len(answers))
		for _, a := range answers {
			a.ResponseID = r.ID
			if a, err = svc.repo.CreateAnswer(ctx, a, exec); err != nil {
				return err
			}
			r.Answers = append(r.Answers, a)
		}
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	return r, nil
}

func cleanRef(id *string) *string {
	if id == nil {
		return nil
	}
	v := core.CleanString(*id)
	if v == "" {
		return nil
	}
	return &v
}

// buildAnswers checks the answers against the questions and converts them for storage.
func buildAnswers(questions []Question, inputs []AnswerInput) ([]Answer, error) {
	byID := make(map[string]Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	var fieldErrs []core.FieldError
	answered := make(map[string]bool, len(inputs))
	answers := make([]Answer, 0, len(inputs))
	for _, in := range inputs {
		field := "answers." + in.QuestionID
		q, ok := byID[in.QuestionID]
		if !ok {
			fieldErrs = append(fieldErrs, core.FieldError{Field: field, Error: "unknown question"})
			continue
		}
		if answered[q.ID] {
			fieldErrs = append(fieldErrs, core.FieldError{Field: field, Error: "question answered twice"})
			continue
		}
		if !q.Answerable() {
			continue
		}
		a, empty, err := convertAnswer(q, in)
		if err != nil {
			fieldErrs = append(fieldErrs, core.FieldError{Field: field, Error: err.Error()})
			continue
		}
		if empty {
			continue
		}
		if q.CommentRequired && core.CleanString(in.Comment) == "" {
			fieldErrs = append(fieldErrs, core.FieldError{Field: field, Error: "a comment is required"})
			continue
		}
		answered[q.ID] = true
		answers = append(answers, a)
	}

	for _, q := range questions {
		if q.Answerable() && q.IsMandatory && !answered[q.ID] {
			if _, reported := findField(fieldErrs, "answers."+q.ID); !reported {
				fieldErrs = append(fieldErrs, core.FieldError{Field: "answers." + q.ID, Error: "this question is mandatory"})
			}
		}
	}
	if len(fieldErrs) > 0 {
		return nil, core.NewValidationError(nil, fieldErrs...)
	}
	return answers, nil
}

func findField(errs []core.FieldError, field string) (int, bool) {
	for i, fe := range errs {
		if fe.Field == field {
			return i, true
		}
	}
	return -1, false
}

// convertAnswer validates one answer; empty is true when nothing was given.
func convertAnswer(q Question, in AnswerInput) (a Answer, empty bool, err error) {
	a = Answer{QuestionID: q.ID, CommentValue: core.CleanString(in.Comment)}
	value := strings.TrimSpace(in.Value)

	switch q.Type {
	case TypeText:
		if value == "" {
			return a, true, nil
		}
		if len(value) > maxTextAnswer {
			return a, false, fmt.Errorf("answer must be at most %d characters", maxTextAnswer)
		}
		a.TextValue = value

	case TypeMultipleChoice, TypeDropdown:
		if value == "" {
			return a, true, nil
		}
		if !q.Options.Contains(value) {
			return a, false, fmt.Errorf("%q is not a valid option", value)
		}
		a.TextValue = value

	case TypeCheckbox:
		values := make([]string, 0, len(in.Values))
		seen := make(map[string]bool, len(in.Values))
		for _, v := range in.Values {
			v = strings.TrimSpace(v)
			if v == "" || seen[v] {
				continue
			}
			if !q.Options.Contains(v) {
				return a, false, fmt.Errorf("%q is not a valid option", v)
			}
			seen[v] = true
			values = append(values, v)
		}
		if len(values) == 0 {
			return a, true, nil
		}
		data, _ := json.Marshal(values)
		a.TextValue = string(data)

	case TypeMatrixLikert:
		if len(in.Matrix) == 0 {
			return a, true, nil
		}
		var sum int
		for row, rating := range in.Matrix {
			if !q.Options.Contains(row) {
				return a, false, fmt.Errorf("%q is not a row of this matrix", row)
			}
			if rating < likertMin || rating > likertMax {
				return a, false, fmt.Errorf("ratings must be between %d and %d", likertMin, likertMax)
			}
			sum += rating
		}
		if q.IsMandatory && len(in.Matrix) != len(q.Options) {
			return a, false, fmt.Errorf("every row must be rated")
		}
		data, _ := json.Marshal(in.Matrix)
		a.TextValue = string(data)
		mean := float64(sum) / float64(len(in.Matrix))
		a.NumericValue = &mean

	case TypeRating:
		if in.Rating == nil {
			return a, true, nil
		}
		scale := q.RatingScale
		if scale <= 0 {
			scale = defaultScale
		}
		r := *in.Rating
		if math.IsNaN(r) || r < 1 || r > float64(scale) {
			return a, false, fmt.Errorf("rating must be between 1 and %d", scale)
		}
		a.NumericValue = &r

	case TypeDate:
		if value == "" {
			return a, true, nil
		}
		if _, err := time.Parse(dateLayout, value); err != nil {
			return a, false, fmt.Errorf("date must use the YYYY-MM-DD format")
		}
		a.TextValue = value

	case TypeSignature:
		if value == "" {
			return a, true, nil
		}
		if !strings.HasPrefix(value, signaturePrefix) {
			return a, false, fmt.Errorf("signature must be an image data URL")
		}
		a.TextValue = value

	default:
		return a, false, fmt.Errorf("unsupported question type %s", q.Type)
	}
	return a, false, nil
}

func (svc *Service) ListResponses(ctx context.Context, filter ResponseFilter) ([]Response, error) {
	if _, err := svc.Get(ctx, filter.SurveyID); err != nil {
		return nil, err
	}
	filter.Email = core.CleanString(filter.Email, true /* lower */)
	filter.ApplicationID = core.CleanString(filter.ApplicationID)
	filter.DepartmentID = core.CleanString(filter.DepartmentID)
	return svc.repo.ListResponses(ctx, filter)
}

// GetResponse returns a response of a survey with its answers.
func (svc *Service) GetResponse(ctx context.Context, surveyID, responseID string) (Response, error) {
	r, err := svc.repo.GetResponse(ctx, responseID)
	if core.IsNotFound(err) || (err == nil && r.SurveyID != surveyID) {
		return Response{}, ErrResponseNotFound
	}
	if err != nil {
		return Response{}, err
	}
	if r.Answers, err = svc.repo.ListAnswers(ctx, r.ID); err != nil {
		return Response{}, err
	}
	return r, nil
}

// Statistics aggregates the responses of a survey.
func (svc *Service) Statistics(ctx context.Context, surveyID string) (Statistics, error) {
	s, err := svc.Get(ctx, surveyID)
	if err != nil {
		return Statistics{}, err
	}
	total, err := svc.repo.CountResponses(ctx, surveyID)
	if err != nil {
		return Statistics{}, err
	}
	questions, err := svc.repo.ListQuestions(ctx, surveyID)
	if err != nil {
		return Statistics{}, err
	}
	answers, err := svc.repo.SurveyAnswers(ctx, surveyID)
	if err != nil {
		return Statistics{}, err
	}
	return computeStatistics(s, total, questions, answers), nil
}

func computeStatistics(s Survey, total int, questions []Question, answers []Answer) Statistics {
	stats := Statistics{
		SurveyID:          s.ID,
		TotalResponses:    total,
		TargetRespondents: s.TargetRespondents,
		TargetScore:       s.TargetScore,
		Questions:         make([]QuestionStats, 0, len(questions)),
	}
	if s.TargetRespondents > 0 {
		stats.CompletionRate = round2(float64(total) / float64(s.TargetRespondents) * 100)
	}

	byQuestion := make(map[string][]Answer)
	for _, a := range answers {
		byQuestion[a.QuestionID] = append(byQuestion[a.QuestionID], a)
	}

	var scoreSum float64
	var scoreCount int
	for _, q := range questions {
		if !q.Answerable() {
			continue
		}
		qa := byQuestion[q.ID]
		qs := QuestionStats{QuestionID: q.ID, PromptText: q.PromptText, Type: q.Type, AnswerCount: len(qa)}

		switch q.Type {
		case TypeRating, TypeMatrixLikert:
			var sum float64
			var n int
			for _, a := range qa {
				if a.NumericValue != nil {
					sum += *a.NumericValue
					n++
				}
			}
			if n > 0 {
				avg := round2(sum / float64(n))
				qs.AverageRating = &avg
			}
			if q.Type == TypeRating {
				scoreSum += sum
				scoreCount += n
			}
		case TypeMultipleChoice, TypeDropdown, TypeCheckbox:
			qs.OptionCounts = make(map[string]int, len(q.Options))
			for _, opt := range q.Options {
				qs.OptionCounts[opt] = 0
			}
			for _, a := range qa {
				for _, v := range choices(q.Type, a.TextValue) {
					if _, ok := qs.OptionCounts[v]; ok {
						qs.OptionCounts[v]++
					}
				}
			}
		}
		stats.Questions = append(stats.Questions, qs)
	}
	if scoreCount > 0 {
		avg := round2(scoreSum / float64(scoreCount))
		stats.AverageScore = &avg
	}
	return stats
}

func choices(qType, stored string) []string {
	if qType != TypeCheckbox {
		return []string{stored}
	}
	var values []string
	if err := json.Unmarshal([]byte(stored), &values); err != nil {
		return nil
	}
	return values
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
