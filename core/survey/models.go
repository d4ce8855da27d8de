package survey

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/ademscil/Event-Management-BE-sub001/core"
)

// Statuses
const (
	StatusDraft    = "Draft"
	StatusActive   = "Active"
	StatusClosed   = "Closed"
	StatusArchived = "Archived"
)

// Question types
const (
	TypeHeroCover      = "HeroCover"
	TypeText           = "Text"
	TypeMultipleChoice = "MultipleChoice"
	TypeCheckbox       = "Checkbox"
	TypeDropdown       = "Dropdown"
	TypeMatrixLikert   = "MatrixLikert"
	TypeRating         = "Rating"
	TypeDate           = "Date"
	TypeSignature      = "Signature"
)

var (
	ErrNotFound         = core.NewNotFoundError("survey not found")
	ErrQuestionNotFound = core.NewNotFoundError("question not found")
	ErrResponseNotFound = core.NewNotFoundError("response not found")

	QuestionTypes = []string{
		TypeHeroCover, TypeText, TypeMultipleChoice, TypeCheckbox, TypeDropdown,
		TypeMatrixLikert, TypeRating, TypeDate, TypeSignature,
	}

	// allowed status transitions
	transitions = map[string][]string{
		StatusDraft:    {StatusActive, StatusArchived},
		StatusActive:   {StatusClosed},
		StatusClosed:   {StatusActive, StatusArchived},
		StatusArchived: {},
	}
)

func hasOptions(qType string) bool {
	switch qType {
	case TypeMultipleChoice, TypeCheckbox, TypeDropdown, TypeMatrixLikert:
		return true
	}
	return false
}

type Survey struct {
	ID                         string    `db:"SurveyId" json:"id"`
	Title                      string    `db:"Title" json:"title"`
	Description                string    `db:"Description" json:"description"`
	StartDate                  time.Time `db:"StartDate" json:"start_date"`
	EndDate                    time.Time `db:"EndDate" json:"end_date"`
	Status                     string    `db:"Status" json:"status"`
	AssignedAdminID            *string   `db:"AssignedAdminId" json:"assigned_admin_id"`
	TargetRespondents          int       `db:"TargetRespondents" json:"target_respondents"`
	TargetScore                float64   `db:"TargetScore" json:"target_score"`
	DuplicatePreventionEnabled bool      `db:"DuplicatePreventionEnabled" json:"duplicate_prevention_enabled"`
	SurveyLink                 string    `db:"SurveyLink" json:"survey_link"`
	ShortCode                  string    `db:"ShortCode" json:"short_code"`
	ShortenedLink              string    `db:"ShortenedLink" json:"shortened_link"`
	QRCodeDataURL              string    `db:"QRCodeDataUrl" json:"qr_code_data_url"`
	EmbedCode                  string    `db:"EmbedCode" json:"embed_code"`
	CreatedAt                  time.Time `db:"CreatedAt" json:"created_at"`
	CreatedBy                  string    `db:"CreatedBy" json:"created_by"`
	UpdatedAt                  time.Time `db:"UpdatedAt" json:"updated_at"`
	UpdatedBy                  string    `db:"UpdatedBy" json:"updated_by"`
}

// IsOpen reports whether responses are accepted at t.
func (s Survey) IsOpen(t time.Time) bool {
	return s.Status == StatusActive && !t.Before(s.StartDate) && !t.After(s.EndDate)
}

func (s Survey) CanTransitionTo(status string) bool {
	for _, st := range transitions[s.Status] {
		if st == status {
			return true
		}
	}
	return false
}

type NewSurvey struct {
	Title                      string    `json:"title" validate:"required,min=3,max=200"`
	Description                string    `json:"description" validate:"max=4000"`
	StartDate                  time.Time `json:"start_date" validate:"required"`
	EndDate                    time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
	AssignedAdminID            *string   `json:"assigned_admin_id"`
	TargetRespondents          int       `json:"target_respondents" validate:"min=0"`
	TargetScore                float64   `json:"target_score" validate:"min=0,max=10"`
	DuplicatePreventionEnabled *bool     `json:"duplicate_prevention_enabled"`
}

func (in *NewSurvey) Validate() error {
	in.Title = core.CleanString(in.Title)
	in.Description = core.CleanString(in.Description)
	return core.Validate.Struct(in)
}

// UpdateSurvey is a partial update; zero values keep the current ones.
type UpdateSurvey struct {
	Title                      string     `json:"title" validate:"omitempty,min=3,max=200"`
	Description                *string    `json:"description" validate:"omitempty,max=4000"`
	StartDate                  *time.Time `json:"start_date"`
	EndDate                    *time.Time `json:"end_date"`
	AssignedAdminID            *string    `json:"assigned_admin_id"`
	TargetRespondents          *int       `json:"target_respondents" validate:"omitempty,min=0"`
	TargetScore                *float64   `json:"target_score" validate:"omitempty,min=0,max=10"`
	DuplicatePreventionEnabled *bool      `json:"duplicate_prevention_enabled"`
}

func (in *UpdateSurvey) Validate() error {
	in.Title = core.CleanString(in.Title)
	if in.Description != nil {
		desc := core.CleanString(*in.Description)
		in.Description = &desc
	}
	return core.Validate.Struct(in)
}

type StatusUpdate struct {
	Status string `json:"status" validate:"required,oneof=Draft Active Closed Archived"`
}

type Filter struct {
	Search          string `query:"search"`
	Status          string `query:"status"`
	AssignedAdminID string `query:"assigned_admin_id"`
	Ordering        string `query:"ordering"`
}

func (f *Filter) Clean() {
	f.Search = core.CleanString(f.Search)
	f.Status = core.CleanString(f.Status)
	f.AssignedAdminID = core.CleanString(f.AssignedAdminID)
}

// Configuration holds the look of a survey.
type Configuration struct {
	ID                 string    `db:"ConfigId" json:"id"`
	SurveyID           string    `db:"SurveyId" json:"survey_id"`
	HeroTitle          string    `db:"HeroTitle" json:"hero_title" validate:"max=200"`
	HeroSubtitle       string    `db:"HeroSubtitle" json:"hero_subtitle" validate:"max=500"`
	HeroImageURL       string    `db:"HeroImageUrl" json:"hero_image_url" validate:"omitempty,max=500"`
	LogoURL            string    `db:"LogoUrl" json:"logo_url" validate:"omitempty,max=500"`
	BackgroundColor    string    `db:"BackgroundColor" json:"background_color" validate:"omitempty,hexcolor"`
	BackgroundImageURL string    `db:"BackgroundImageUrl" json:"background_image_url" validate:"omitempty,max=500"`
	PrimaryColor       string    `db:"PrimaryColor" json:"primary_color" validate:"omitempty,hexcolor"`
	SecondaryColor     string    `db:"SecondaryColor" json:"secondary_color" validate:"omitempty,hexcolor"`
	FontFamily         string    `db:"FontFamily" json:"font_family" validate:"max=100"`
	ButtonStyle        string    `db:"ButtonStyle" json:"button_style" validate:"omitempty,oneof=rounded square pill"`
	ShowProgressBar    bool      `db:"ShowProgressBar" json:"show_progress_bar"`
	ShowPageNumbers    bool      `db:"ShowPageNumbers" json:"show_page_numbers"`
	MultiPage          bool      `db:"MultiPage" json:"multi_page"`
	UpdatedAt          time.Time `db:"UpdatedAt" json:"updated_at"`
}

// DefaultConfiguration is used until a survey gets configured.
func DefaultConfiguration(surveyID string) Configuration {
	return Configuration{
		SurveyID:        surveyID,
		BackgroundColor: "#FFFFFF",
		PrimaryColor:    "#0D6EFD",
		SecondaryColor:  "#6C757D",
		FontFamily:      "Arial",
		ButtonStyle:     "rounded",
		ShowProgressBar: true,
		ShowPageNumbers: true,
	}
}

// Options are the choices of a question, stored as a JSON array.
type Options []string

func (o Options) Value() (driver.Value, error) {
	if o == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(o))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (o *Options) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*o = Options{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.Errorf("cannot scan %T into Options", src)
	}
	if len(data) == 0 {
		*o = Options{}
		return nil
	}
	return json.Unmarshal(data, (*[]string)(o))
}

func (o Options) Contains(v string) bool {
	for _, opt := range o {
		if opt == v {
			return true
		}
	}
	return false
}

type Question struct {
	ID                string    `db:"QuestionId" json:"id"`
	SurveyID          string    `db:"SurveyId" json:"survey_id"`
	Type              string    `db:"Type" json:"type"`
	PromptText        string    `db:"PromptText" json:"prompt_text"`
	Subtitle          string    `db:"Subtitle" json:"subtitle"`
	ImageURL          string    `db:"ImageUrl" json:"image_url"`
	IsMandatory       bool      `db:"IsMandatory" json:"is_mandatory"`
	DisplayOrder      int       `db:"DisplayOrder" json:"display_order"`
	PageNumber        int       `db:"PageNumber" json:"page_number"`
	LayoutOrientation string    `db:"LayoutOrientation" json:"layout_orientation"`
	Options           Options   `db:"Options" json:"options"`
	RatingScale       int       `db:"RatingScale" json:"rating_scale"`
	CommentRequired   bool      `db:"CommentRequired" json:"comment_required"`
	CreatedAt         time.Time `db:"CreatedAt" json:"created_at"`
	UpdatedAt         time.Time `db:"UpdatedAt" json:"updated_at"`
}

// Answerable reports whether respondents answer the question (cover pages are display-only).
func (q Question) Answerable() bool { return q.Type != TypeHeroCover }

// QuestionInput is used to add and to replace a question.
type QuestionInput struct {
	Type              string   `json:"type" validate:"required,questiontype"`
	PromptText        string   `json:"prompt_text" validate:"required,max=1000"`
	Subtitle          string   `json:"subtitle" validate:"max=500"`
	ImageURL          string   `json:"image_url" validate:"max=500"`
	IsMandatory       bool     `json:"is_mandatory"`
	PageNumber        int      `json:"page_number" validate:"min=0"`
	LayoutOrientation string   `json:"layout_orientation" validate:"omitempty,oneof=vertical horizontal"`
	Options           []string `json:"options" validate:"dive,required,max=500"`
	RatingScale       int      `json:"rating_scale" validate:"min=0,max=10"`
	CommentRequired   bool     `json:"comment_required"`
}

func (in *QuestionInput) Validate() error {
	in.PromptText = core.CleanString(in.PromptText)
	in.Subtitle = core.CleanString(in.Subtitle)
	for i, opt := range in.Options {
		in.Options[i] = core.CleanString(opt)
	}
	if in.PageNumber == 0 {
		in.PageNumber = 1
	}
	if in.LayoutOrientation == "" {
		in.LayoutOrientation = "vertical"
	}
	return core.Validate.Struct(in)
}

type Reorder struct {
	QuestionIDs []string `json:"question_ids" validate:"required,min=1,dive,required"`
}

// Page groups the questions of one page, in display order.
type Page struct {
	Number    int        `json:"number"`
	Questions []Question `json:"questions"`
}

type Preview struct {
	Survey        Survey        `json:"survey"`
	Configuration Configuration `json:"configuration"`
	Pages         []Page        `json:"pages"`
}

type Response struct {
	ID              string    `db:"ResponseId" json:"id"`
	SurveyID        string    `db:"SurveyId" json:"survey_id"`
	RespondentEmail string    `db:"RespondentEmail" json:"respondent_email"`
	RespondentName  string    `db:"RespondentName" json:"respondent_name"`
	BusinessUnitID  *string   `db:"BusinessUnitId" json:"business_unit_id"`
	DivisionID      *string   `db:"DivisionId" json:"division_id"`
	DepartmentID    *string   `db:"DepartmentId" json:"department_id"`
	ApplicationID   *string   `db:"ApplicationId" json:"application_id"`
	IPAddress       string    `db:"IPAddress" json:"ip_address"`
	SubmittedAt     time.Time `db:"SubmittedAt" json:"submitted_at"`
	Answers         []Answer  `db:"-" json:"answers,omitempty"`
}

// Answer is the stored answer to one question.
// Choices, matrix rows and signatures are kept in TextValue; ratings in NumericValue.
type Answer struct {
	ID           string   `db:"QuestionResponseId" json:"id"`
	ResponseID   string   `db:"ResponseId" json:"response_id"`
	QuestionID   string   `db:"QuestionId" json:"question_id"`
	TextValue    string   `db:"TextValue" json:"text_value"`
	NumericValue *float64 `db:"NumericValue" json:"numeric_value"`
	CommentValue string   `db:"CommentValue" json:"comment_value"`
}

type AnswerInput struct {
	QuestionID string         `json:"question_id" validate:"required"`
	Value      string         `json:"value"`
	Values     []string       `json:"values"`
	Rating     *float64       `json:"rating"`
	Matrix     map[string]int `json:"matrix"`
	Comment    string         `json:"comment" validate:"max=2000"`
}

type NewResponse struct {
	RespondentEmail string        `json:"respondent_email" validate:"required,email"`
	RespondentName  string        `json:"respondent_name" validate:"max=200"`
	BusinessUnitID  *string       `json:"business_unit_id"`
	DivisionID      *string       `json:"division_id"`
	DepartmentID    *string       `json:"department_id"`
	ApplicationID   *string       `json:"application_id"`
	Answers         []AnswerInput `json:"answers" validate:"dive"`
}

func (in *NewResponse) Validate() error {
	in.RespondentEmail = core.CleanString(in.RespondentEmail, true /* lower */)
	in.RespondentName = core.CleanString(in.RespondentName)
	return core.Validate.Struct(in)
}

type ResponseFilter struct {
	SurveyID      string
	Email         string    `query:"email"`
	ApplicationID string    `query:"application_id"`
	DepartmentID  string    `query:"department_id"`
	From          time.Time `query:"from"`
	To            time.Time `query:"to"`
}

type QuestionStats struct {
	QuestionID    string         `json:"question_id"`
	PromptText    string         `json:"prompt_text"`
	Type          string         `json:"type"`
	AnswerCount   int            `json:"answer_count"`
	AverageRating *float64       `json:"average_rating,omitempty"`
	OptionCounts  map[string]int `json:"option_counts,omitempty"`
}

type Statistics struct {
	SurveyID          string          `json:"survey_id"`
	TotalResponses    int             `json:"total_responses"`
	TargetRespondents int             `json:"target_respondents"`
	CompletionRate    float64         `json:"completion_rate"` // percent of the target
	AverageScore      *float64        `json:"average_score,omitempty"`
	TargetScore       float64         `json:"target_score"`
	Questions         []QuestionStats `json:"questions"`
}
