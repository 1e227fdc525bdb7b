package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/campus-noticeboard/internal/models"
	appErrors "github.com/noah-isme/campus-noticeboard/pkg/errors"
)

// NewValidator returns a validator with the notice enum tags registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("notice_category", func(fl validator.FieldLevel) bool {
		return models.NoticeCategory(fl.Field().String()).Valid()
	})
	v.RegisterValidation("department", func(fl validator.FieldLevel) bool {
		return models.Department(fl.Field().String()).Valid()
	})
	v.RegisterValidation("semester", func(fl validator.FieldLevel) bool {
		return models.Semester(fl.Field().String()).Valid()
	})
	return v
}

// validationError converts validator output into an ErrValidation naming the first offending field.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}
	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field())
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", field)
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		msg = fmt.Sprintf("%s has an invalid value %q", field, fe.Value())
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, msg)
}
