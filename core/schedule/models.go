package schedule

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/ademscil/Event-Management-BE-sub001/core"
)

// Operation types
const (
	TypeBlast    = "Blast"
	TypeReminder = "Reminder"
)

// Frequencies
const (
	FrequencyOnce    = "once"
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// Statuses
const (
	StatusScheduled = "Scheduled"
	StatusRunning   = "Running"
	StatusCompleted = "Completed"
	StatusFailed    = "Failed"
	StatusCancelled = "Cancelled"
)

// MsgRunInterrupted is the error message left on an operation whose run never finished.
const MsgRunInterrupted = "previous run did not finish; requeued"

var (
	ErrNotFound = core.NewNotFoundError("scheduled operation not found")

	frequencyTag  = "frequency"
	frequencyText = "frequency must be one of once, daily, weekly, monthly"
	frequencies   = []string{FrequencyOnce, FrequencyDaily, FrequencyWeekly, FrequencyMonthly}

	weekdayRequiredTag  = "weekdayrequired"
	weekdayRequiredText = "day_of_week is required for weekly operations"
)

func init() {
	_ = core.Validate.RegisterValidation(frequencyTag, func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		for _, f := range frequencies {
			if f == v {
				return true
			}
		}
		return false
	})
	core.RegisterCustomTranslation(frequencyTag, frequencyText)

	core.Validate.RegisterStructValidation(func(sl validator.StructLevel) {
		in := sl.Current().Interface().(NewOperation)
		if in.Frequency == FrequencyWeekly && in.DayOfWeek == nil {
			sl.ReportError(in.DayOfWeek, "day_of_week", "DayOfWeek", weekdayRequiredTag, "")
		}
	}, NewOperation{})
	core.RegisterCustomTranslation(weekdayRequiredTag, weekdayRequiredText)
}

// TargetCriteria selects the recipients of an operation. It is stored as JSON.
// Empty lists do not restrict; Emails are added on top of the matched users.
type TargetCriteria struct {
	BusinessUnitIDs []string `json:"business_unit_ids,omitempty"`
	DivisionIDs     []string `json:"division_ids,omitempty"`
	DepartmentIDs   []string `json:"department_ids,omitempty"`
	Roles           []string `json:"roles,omitempty"`
	Emails          []string `json:"emails,omitempty" validate:"omitempty,dive,email"`
}

func (tc TargetCriteria) Value() (driver.Value, error) {
	data, err := json.Marshal(tc)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (tc *TargetCriteria) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*tc = TargetCriteria{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.Errorf("cannot scan %T into TargetCriteria", src)
	}
	if len(data) == 0 {
		*tc = TargetCriteria{}
		return nil
	}
	return json.Unmarshal(data, tc)
}

type Operation struct {
	ID              string         `db:"OperationId" json:"id"`
	SurveyID        string         `db:"SurveyId" json:"survey_id"`
	Type            string         `db:"OperationType" json:"type"`
	Frequency       string         `db:"Frequency" json:"frequency"`
	ScheduledDate   time.Time      `db:"ScheduledDate" json:"scheduled_date"`
	ScheduledTime   string         `db:"ScheduledTime" json:"scheduled_time"` // HH:MM in the scheduler time zone
	DayOfWeek       *int           `db:"DayOfWeek" json:"day_of_week"`        // 0 = Sunday
	TargetCriteria  TargetCriteria `db:"TargetCriteria" json:"target_criteria"`
	EmailTemplate   string         `db:"EmailTemplate" json:"email_template"`
	EmbedCover      bool           `db:"EmbedCover" json:"embed_cover"`
	Status          string         `db:"Status" json:"status"`
	NextExecutionAt *time.Time     `db:"NextExecutionAt" json:"next_execution_at"`
	LastExecutedAt  *time.Time     `db:"LastExecutedAt" json:"last_executed_at"`
	ExecutionCount  int            `db:"ExecutionCount" json:"execution_count"`
	ErrorMessage    string         `db:"ErrorMessage" json:"error_message"`
	CreatedBy       string         `db:"CreatedBy" json:"created_by"`
	CreatedAt       time.Time      `db:"CreatedAt" json:"created_at"`
	UpdatedAt       time.Time      `db:"UpdatedAt" json:"updated_at"`
}

// NewOperation registers a blast or a reminder.
type NewOperation struct {
	Frequency      string         `json:"frequency" validate:"required,frequency"`
	ScheduledDate  time.Time      `json:"scheduled_date" validate:"required"`
	ScheduledTime  string         `json:"scheduled_time" validate:"required,clock"`
	DayOfWeek      *int           `json:"day_of_week" validate:"omitempty,min=0,max=6"`
	TargetCriteria TargetCriteria `json:"target_criteria"`
	EmailTemplate  string         `json:"email_template" validate:"max=100"`
	EmbedCover     bool           `json:"embed_cover"`
}

func (in *NewOperation) Validate() error {
	in.Frequency = core.CleanString(in.Frequency, true /* lower */)
	in.ScheduledTime = core.CleanString(in.ScheduledTime)
	in.EmailTemplate = core.CleanString(in.EmailTemplate)
	return core.Validate.Struct(in)
}

// Result sums up one execution.
type Result struct {
	Recipients int `json:"recipients"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
}
