package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/templui/feedbackloop/internal/model"
)

// MaxUserAgentLength is the longest user agent kept; longer values are cut.
const MaxUserAgentLength = 512

var validate = newValidator()

// FieldError reports the first submission field that failed validation,
// named as the client sent it.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON names so clients can map errors back to their payload
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("feedback_type", func(fl validator.FieldLevel) bool {
		return model.FeedbackType(fl.Field().String()).Valid()
	})

	return v
}

// NormalizeSubmission trims text fields, applies the default type and
// truncates the user agent. It never fails.
func NormalizeSubmission(s *model.Submission, defaultType model.FeedbackType) {
	s.Type = model.FeedbackType(strings.ToLower(strings.TrimSpace(string(s.Type))))
	if s.Type == "" {
		s.Type = defaultType
	}

	s.Title = strings.TrimSpace(s.Title)
	s.Description = strings.TrimSpace(s.Description)
	s.ReporterName = strings.TrimSpace(s.ReporterName)
	s.ReporterEmail = strings.TrimSpace(s.ReporterEmail)
	s.PageURL = strings.TrimSpace(s.PageURL)
	s.UserAgent = truncate(strings.TrimSpace(s.UserAgent), MaxUserAgentLength)
}

// ValidateSubmission normalizes s and checks it against the field rules.
// The returned error is a *FieldError.
func ValidateSubmission(s *model.Submission, defaultType model.FeedbackType) error {
	NormalizeSubmission(s, defaultType)

	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &FieldError{Message: err.Error()}
	}

	fe := verrs[0]
	return &FieldError{Field: fe.Field(), Message: fieldMessage(fe)}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s is too long (max %s characters)", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "feedback_type":
		return fmt.Sprintf("%s must be one of bug, suggestion, praise, other", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
