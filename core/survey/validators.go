package survey

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/ademscil/Event-Management-BE-sub001/core"
)

var (
	questionTypeTag  = "questiontype"
	questionTypeText = fmt.Sprintf("type must be one of %v", QuestionTypes)

	optionsTag  = "options"
	optionsText = "at least 2 options are required for this question type"

	ratingScaleTag  = "ratingscale"
	ratingScaleText = "rating_scale must be between 1 and 10"
)

func init() {
	_ = core.Validate.RegisterValidation(questionTypeTag, questionTypeValidation)
	core.RegisterCustomTranslation(questionTypeTag, questionTypeText)

	core.Validate.RegisterStructValidation(questionStructValidation, QuestionInput{})
	core.RegisterCustomTranslation(optionsTag, optionsText)
	core.RegisterCustomTranslation(ratingScaleTag, ratingScaleText)
}

func questionTypeValidation(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	for _, t := range QuestionTypes {
		if t == v {
			return true
		}
	}
	return false
}

// questionStructValidation checks the fields required by the question type.
func questionStructValidation(sl validator.StructLevel) {
	in := sl.Current().Interface().(QuestionInput)
	if hasOptions(in.Type) && len(in.Options) < 2 {
		sl.ReportError(in.Options, "options", "Options", optionsTag, "")
	}
	if in.Type == TypeRating && (in.RatingScale < 1 || in.RatingScale > 10) {
		sl.ReportError(in.RatingScale, "rating_scale", "RatingScale", ratingScaleTag, "")
	}
}
