package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validate validates the entire configuration.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, ValidationError{
					Field:   fe.Namespace(),
					Message: fmt.Sprintf("failed %q check (value %v)", fe.Tag(), fe.Value()),
				})
			}
		} else {
			errs = append(errs, ValidationError{Field: "config", Message: err.Error()})
		}
	}

	if c.API != nil && c.API.Timeout != "" {
		if d, err := time.ParseDuration(c.API.Timeout); err != nil || d <= 0 {
			errs = append(errs, ValidationError{Field: "api.timeout", Message: fmt.Sprintf("invalid duration %q", c.API.Timeout)})
		}
	}

	if c.Metrics != nil && c.Metrics.Enabled && c.Metrics.Textfile == "" {
		errs = append(errs, ValidationError{Field: "metrics.textfile", Message: "required when metrics are enabled"})
	}

	return errs
}
