package httpx

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"nextpage/internal/book"
	"nextpage/internal/rating"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report json names, not Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("half_step", validateHalfStep)
	_ = validate.RegisterValidation("feedback_kind", validateFeedbackKind)
}

func validateHalfStep(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Float32, reflect.Float64:
		return rating.Validate(fl.Field().Float()) == nil
	}
	return false
}

func validateFeedbackKind(fl validator.FieldLevel) bool {
	return book.FeedbackKind(fl.Field().String()).Valid()
}

// ValidateStruct runs the struct tags on s and returns one detail per failing
// field, or nil.
func ValidateStruct(s any) []ErrorDetail {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ErrorDetail{{Field: "", Message: err.Error()}}
	}

	details := make([]ErrorDetail, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		param := fe.Param()

		var message string
		switch fe.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "min":
			message = fmt.Sprintf("%s must be at least %s characters", field, param)
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", field, param)
		case "half_step":
			message = fmt.Sprintf("%s must be between %g and %g in steps of %g", field, rating.Min, rating.Max, rating.Step)
		case "feedback_kind":
			message = fmt.Sprintf("%s must be %q or %q", field, book.FeedbackLike, book.FeedbackDislike)
		case "url":
			message = fmt.Sprintf("%s must be a valid URL", field)
		default:
			message = fmt.Sprintf("%s is invalid", field)
		}

		details = append(details, ErrorDetail{
			Field:   field,
			Message: message,
		})
	}

	return details
}
