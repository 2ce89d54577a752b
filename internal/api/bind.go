package api

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"issueInsightsTracker/internal/apperr"
)

// bindError reports the first failed binding rule as a validation error.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation("invalid request body")
	}
	fe := verrs[0]
	return apperr.Validationf("%s: %s", strings.ToLower(fe.Field()), ruleMessage(fe))
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "email":
		return "value is not a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed " + fe.Tag() + " rule"
	}
}
