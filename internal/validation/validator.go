package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/mesa-ayuda/helpdesk-service/internal/auth"
	apperrors "github.com/mesa-ayuda/helpdesk-service/pkg/util"
)

// Custom password rules. password_min counts characters against the
// configured minimum; password_max caps the byte length bcrypt will read.
const (
	TagPasswordMin = "password_min"
	TagPasswordMax = "password_max"
)

// Validator checks struct tags and reports failures as VALIDATION_FAILED
// domain errors keyed by json field name.
type Validator struct {
	validate          *validator.Validate
	minPasswordLength int
}

// New builds a validator with the password rules registered.
func New(minPasswordLength int) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation(TagPasswordMin, func(fl validator.FieldLevel) bool {
		return utf8.RuneCountInString(fl.Field().String()) >= minPasswordLength
	})
	_ = v.RegisterValidation(TagPasswordMax, func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= auth.MaxPasswordBytes
	})
	return &Validator{validate: v, minPasswordLength: minPasswordLength}
}

// Struct validates s. The message describes the first failing field and the
// details list every failing field with its rule.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperrors.NewInternalError(err)
	}

	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = fe.Tag()
	}
	return apperrors.NewValidationError(v.message(fieldErrs[0]), map[string]any{"fields": fields})
}

func (v *Validator) message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case TagPasswordMin:
		return fmt.Sprintf("%s must have at least %d characters", fe.Field(), v.minPasswordLength)
	case TagPasswordMax:
		return fmt.Sprintf("%s must be at most %d bytes", fe.Field(), auth.MaxPasswordBytes)
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
