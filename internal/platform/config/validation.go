package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// ScheduleParser reads sweep schedules: five or six fields, or a descriptor
// such as "@every 5m".
var ScheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Problems lists everything wrong with a configuration, one entry per key.
type Problems []string

func (p Problems) Error() string {
	return "config validation failed:\n  " + strings.Join(p, "\n  ")
}

var structValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their koanf key, the name an operator has to fix.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			return f.Name
		}

		return name
	})

	_ = v.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
		_, err := ScheduleParser.Parse(fl.Field().String())
		return err == nil
	})

	return v
})

// Validate reports every problem at once so a bad deploy is fixed in one pass.
// The service refuses to start on any of them.
func (c *Config) Validate() error {
	var problems Problems

	var fieldErrs validator.ValidationErrors
	if err := structValidator().Struct(c); err != nil {
		if !errors.As(err, &fieldErrs) {
			return err
		}

		for _, fe := range fieldErrs {
			problems = append(problems, describe(fe))
		}
	}

	problems = append(problems, c.crossFieldProblems()...)
	if len(problems) > 0 {
		return problems
	}

	return nil
}

// crossFieldProblems covers rules that span several keys.
func (c *Config) crossFieldProblems() []string {
	var out []string

	r := c.Client.Retry
	if r.InitialInterval > 0 && r.MaxInterval > 0 && r.InitialInterval > r.MaxInterval {
		out = append(out, fmt.Sprintf("client.retry.initial_interval (%s) must not exceed client.retry.max_interval (%s)",
			r.InitialInterval, r.MaxInterval))
	}

	return out
}

var tagMessages = map[string]string{
	"required":    "is required",
	"url":         "must be a valid URL",
	"uppercase":   "must be upper case",
	"cron":        "must be a cron expression or @every descriptor",
	"required_if": "is required when %s",
	"min":         "must be at least %s",
	"max":         "must be at most %s",
	"len":         "must be exactly %s characters",
	"oneof":       "must be one of: %s",
	"datetime":    "must match layout %s",
}

func describe(fe validator.FieldError) string {
	key := koanfPath(fe.Namespace())

	msg, ok := tagMessages[fe.Tag()]
	if !ok {
		return key + " failed validation: " + fe.Tag()
	}

	if strings.Contains(msg, "%s") {
		msg = fmt.Sprintf(msg, fe.Param())
	}

	return key + " " + msg
}

// koanfPath turns a validator namespace such as
// "Config.services.market_data.base_url" into the dotted config key.
func koanfPath(namespace string) string {
	_, rest, found := strings.Cut(namespace, ".")
	if !found {
		rest = namespace
	}

	return strings.ToLower(rest)
}
