package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"t9d/internal/learning"
	"t9d/internal/t9"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
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

// Fields returns the names of the invalid fields.
func (e ValidationErrors) Fields() []string {
	out := make([]string, len(e))
	for i, err := range e {
		out[i] = err.Field
	}
	return out
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// structValidator reports fields by their config file names.
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("toml"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 0 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	if err := structValidator().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			errs = append(errs, ValidationError{
				Field:   fieldName(fe),
				Message: constraintMessage(fe),
			})
		}
	}

	errs = append(errs, validateLanguages(c.Languages)...)
	errs = append(errs, validateOverrides(c.DiacriticOverrides)...)
	errs = append(errs, validateLearning(c)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// fieldName strips the root struct name from the namespace,
// "Config.learning.backend" becoming "learning.backend".
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func constraintMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return "is required for this backend"
	case "min", "gte":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("needs at least %s entries", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %v", fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("failed %q constraint", fe.Tag())
	}
}

func validateLanguages(langs []string) ValidationErrors {
	var errs ValidationErrors
	seen := make(map[string]bool, len(langs))
	for i, lang := range langs {
		field := fmt.Sprintf("languages[%d]", i)
		if lang == "" {
			continue // reported by the struct tags
		}
		if err := learning.ValidateLanguage(lang); err != nil {
			errs = append(errs, ValidationError{Field: field, Message: err.Error()})
		}
		if seen[lang] {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("duplicate language %q", lang)})
		}
		seen[lang] = true
	}
	return errs
}

func validateOverrides(overrides map[string]string) ValidationErrors {
	var errs ValidationErrors
	for char, digit := range overrides {
		if _, err := t9.NewTable(map[string]string{char: digit}); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("diacritic_overrides[%q]", char),
				Message: err.Error(),
			})
		}
	}
	return errs
}

func validateLearning(c *Config) ValidationErrors {
	var errs ValidationErrors
	if c.Learning.Backend == "file" && c.UserDictDir == "" {
		errs = append(errs, ValidationError{
			Field:   "user_dict_dir",
			Message: "is required for the file backend",
		})
	}
	if c.Learning.Backend == "sqlite" && c.Learning.SQLitePath != "" {
		dir := filepath.Dir(expandPath(c.Learning.SQLitePath))
		if info, err := os.Stat(dir); err == nil && !info.IsDir() {
			errs = append(errs, ValidationError{
				Field:   "learning.sqlite_path",
				Message: fmt.Sprintf("parent %s is not a directory", dir),
			})
		}
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors
	if (l.Output == "file" || l.Output == "both") && l.FilePath == "" {
		errs = append(errs, ValidationError{
			Field:   "logging.file_path",
			Message: fmt.Sprintf("is required for output %q", l.Output),
		})
	}
	return errs
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
