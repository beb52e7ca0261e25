package httpapi

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"reftracker.org/internal/apperr"
)

type createStakeholderRequest struct {
	Type    string         `json:"type" validate:"required,oneof=referrer md facility payer patient_contact internal"`
	Name    string         `json:"name" validate:"required,min=1"`
	OwnerID *string        `json:"ownerId" validate:"omitempty,uuid"`
	OrgID   *string        `json:"orgId" validate:"omitempty,uuid"`
	Meta    map[string]any `json:"meta"`
}

type updateStatusRequest struct {
	Status string  `json:"status" validate:"required,oneof=created engaged active dormant archived"`
	Reason *string `json:"reason" validate:"omitempty,min=2,max=280"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateBody runs struct validation and reports every failing field.
func (a *API) validateBody(dst any) error {
	err := a.validate.Struct(dst)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.Validation("Invalid request body", issueDetails(err.Error()))
	}
	issues := make([]map[string]any, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		issue := map[string]any{
			"field": fe.Field(),
			"rule":  fe.Tag(),
		}
		if fe.Param() != "" {
			issue["param"] = fe.Param()
		}
		issues = append(issues, issue)
	}
	return apperr.Validation("Invalid request body", map[string]any{"issues": issues})
}

func valueOf(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
