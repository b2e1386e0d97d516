package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"graphsync/domain/core/valueobjects"
	pkgerrors "graphsync/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("nodetype", func(fl validator.FieldLevel) bool {
		return valueobjects.NodeType(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("author", func(fl validator.FieldLevel) bool {
		_, err := valueobjects.NewAuthorID(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("branchpath", func(fl validator.FieldLevel) bool {
		_, err := valueobjects.ParseBranchPath(fl.Field().String())
		return err == nil
	})
	return v
}

// ValidateStruct validates a struct based on its validation tags
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError turns validator output into a VALIDATION AppError
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return pkgerrors.NewValidationError(err.Error())
	}
	messages := make([]string, 0, len(validationErrors))
	fields := make(map[string]interface{}, len(validationErrors))
	for _, e := range validationErrors {
		msg := formatFieldError(e)
		messages = append(messages, msg)
		fields[strings.ToLower(e.Field())] = msg
	}
	return pkgerrors.NewValidationError(strings.Join(messages, "; ")).
		WithDetails(map[string]interface{}{"fields": fields})
}

// formatFieldError formats a single field validation error
func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "nodetype":
		return fmt.Sprintf("%s must be a node type", field)
	case "author":
		return fmt.Sprintf("%s must be an author id", field)
	case "branchpath":
		return fmt.Sprintf("%s must be a branch name or author:name", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
