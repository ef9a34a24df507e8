package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/abdul-hamid-achik/hitexec/packages/auth"
	"github.com/abdul-hamid-achik/hitexec/packages/validation"
)

// Validate checks field constraints declared in struct tags.
func (c *Config) Validate() error {
	validate := validator.New()

	_ = validate.RegisterValidation("statusrange", func(fl validator.FieldLevel) bool {
		_, err := validation.ParseStatusRange(fl.Field().String())
		return err == nil
	})

	_ = validate.RegisterValidation("authscheme", func(fl validator.FieldLevel) bool {
		_, err := auth.Parse(fl.Field().String())
		return err == nil
	})

	if err := validate.Struct(c); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			var msgs []string
			for _, fe := range validationErrors {
				if fe.Field() == "Auth" {
					// Credentials stay out of error messages.
					msgs = append(msgs, fmt.Sprintf("%s: failed '%s' check", fe.Namespace(), fe.Tag()))
					continue
				}
				msgs = append(msgs, fmt.Sprintf("%s: failed '%s' check (value: %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	return nil
}
