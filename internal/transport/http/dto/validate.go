package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report json names, not Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("password_policy", func(fl validator.FieldLevel) bool {
		return domain.CheckPassword(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("otp", func(fl validator.FieldLevel) bool {
		return isOTP(fl.Field().String())
	})
	return v
}

// isOTP reports whether s is exactly six ASCII digits.
func isOTP(s string) bool {
	if len(s) != 6 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// validateStruct runs the validator and converts the first failure into a domain error.
func validateStruct(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return domain.ErrInternal(err)
	}
	return toDomainError(ves[0])
}

func toDomainError(fe validator.FieldError) error {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "required_without":
		return domain.ErrMissingField(field)
	case "password_policy":
		if err := domain.CheckPassword(fmt.Sprint(fe.Value())); err != nil {
			return err
		}
		return domain.ErrWeakPassword("policy")
	case "email":
		return domain.ErrInvalidField(field, "invalid format")
	case "otp":
		return domain.ErrInvalidField(field, "must be 6 digits")
	case "min":
		return domain.ErrInvalidField(field, "must be at least "+fe.Param()+" characters")
	case "max":
		return domain.ErrInvalidField(field, "must be at most "+fe.Param()+" characters")
	case "oneof":
		return domain.ErrInvalidField(field, "must be one of: "+fe.Param())
	default:
		return domain.ErrInvalidField(field, fe.Tag())
	}
}
