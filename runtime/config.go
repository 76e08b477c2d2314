package runtime

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	registerCustomValidators()
}

// InitializeConfig prepares a plugin or project config struct in three
// passes: struct-tag defaults, then rawValues decoded through yaml tags,
// then validation of the merged result.
func InitializeConfig(config any, rawValues map[string]any) error {
	if err := ApplyDefaults(config); err != nil {
		return err
	}

	if len(rawValues) > 0 {
		if err := decode(rawValues, config, "yaml"); err != nil {
			return fmt.Errorf("failed to apply config values to %s: %w", reflect.TypeOf(config), err)
		}
	}

	if err := ValidateStruct(config); err != nil {
		return fmt.Errorf("%s: %w", reflect.TypeOf(config), err)
	}
	return nil
}

func ApplyDefaults(config any) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := defaults.Set(config); err != nil {
		return fmt.Errorf("failed to apply default values: %w", err)
	}
	return nil
}

// ValidateStruct runs the validate tags of v and flattens the violations
// into one readable error.
func ValidateStruct(v any) error {
	if v == nil {
		return fmt.Errorf("config cannot be nil")
	}

	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validation failed: %w", err)
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed validation (rule: %s)", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// RegisterCustomValidator exposes the shared validator to plugins.
func RegisterCustomValidator(tag string, fn validator.Func) error {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		return fmt.Errorf("failed to register custom validator '%s': %w", tag, err)
	}
	return nil
}

func registerCustomValidators() {
	// url_format requires an absolute URL with scheme and host.
	validate.RegisterValidation("url_format", func(fl validator.FieldLevel) bool {
		u, err := url.Parse(fl.Field().String())
		return err == nil && u.Scheme != "" && u.Host != ""
	})

	// dsn accepts URL-style DSNs (postgres://...) as well as driver specific
	// forms (host=... dbname=..., file:test.db, :memory:).
	validate.RegisterValidation("dsn", func(fl validator.FieldLevel) bool {
		s := strings.TrimSpace(fl.Field().String())
		if s == "" {
			return false
		}
		if strings.Contains(s, "://") {
			u, err := url.Parse(s)
			return err == nil && u.Scheme != ""
		}
		return true
	})
}
