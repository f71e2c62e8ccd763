package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/jsamuelsen/stockquote-service/internal/domain"
)

var (
	// ErrValidation marks a query string that bound but failed its rules.
	ErrValidation = errors.New("validation failed")

	// ErrBinding marks a query string that could not be decoded at all.
	ErrBinding = errors.New("binding failed")
)

// Validator returns the shared validator. Field errors are reported under the
// query parameter name, and two quote specific tags are registered:
// quotedate (YYYY-MM-DD or "latest") and symbollist (at least one symbol).
var Validator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"form", "json"} {
			name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
			if name == "-" {
				return ""
			}

			if name != "" {
				return name
			}
		}

		return fld.Name
	})

	_ = v.RegisterValidation("quotedate", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseQuoteDate(fl.Field().String())
		return err == nil
	})

	_ = v.RegisterValidation("symbollist", func(fl validator.FieldLevel) bool {
		for _, s := range strings.Split(fl.Field().String(), ",") {
			if strings.TrimSpace(s) != "" {
				return true
			}
		}

		return false
	})

	return v
})

// Validate checks v against its validate tags.
func Validate(v any) error {
	if err := Validator().Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	return nil
}

// BindQueryAndValidate decodes the query string into v and validates it.
func BindQueryAndValidate(c *gin.Context, v any) error {
	if err := c.ShouldBindQuery(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBinding, err)
	}

	return Validate(v)
}

// ValidationErrors maps each failing parameter to a client facing message.
// It returns nil when err carries no field errors.
func ValidationErrors(err error) map[string]string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}

	out := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		out[fe.Field()] = validationMessage(fe)
	}

	return out
}

// IsValidationError reports whether err carries field errors.
func IsValidationError(err error) bool {
	var fieldErrs validator.ValidationErrors
	return errors.As(err, &fieldErrs)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "quotedate":
		return "must be a date formatted as YYYY-MM-DD, or latest"
	case "symbollist":
		return "must list at least one symbol"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min", "max":
		unit := ""
		if fe.Kind() == reflect.String {
			unit = " characters"
		}

		bound := "at least"
		if fe.Tag() == "max" {
			bound = "at most"
		}

		return fmt.Sprintf("must be %s %s%s", bound, fe.Param(), unit)
	default:
		return "failed validation: " + fe.Tag()
	}
}
