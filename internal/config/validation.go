package config

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	provisionerrors "github.com/alexisbeaulieu97/provision/pkg/errors"
)

// ValidateConfig performs structural and cross-field validation on an entire configuration.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return provisionerrors.NewValidationError("config", "configuration is nil", nil)
	}

	v := validatorInstance()
	if err := v.Struct(cfg); err != nil {
		return convertValidationError(err)
	}

	seen := make(map[string]int, len(cfg.Steps))
	for i, step := range cfg.Steps {
		if first, exists := seen[step.ID]; exists {
			return provisionerrors.NewValidationError(fieldForStep(i, "id"), fmt.Sprintf("duplicate step id %q (first declared at steps[%d])", step.ID, first), nil)
		}
		seen[step.ID] = i

		if err := ValidateStep(step); err != nil {
			return err
		}
	}

	for i, val := range cfg.Validations {
		if err := validateValidation(val, i); err != nil {
			return err
		}
	}

	return nil
}

// ValidateStep inspects a single step for structural correctness independent of other steps.
func ValidateStep(step Step) error {
	v := validatorInstance()
	if err := v.Struct(step); err != nil {
		return convertValidationError(err)
	}

	var kind any
	switch step.Type {
	case TypePackage:
		kind = step.Package
	case TypeCommand:
		kind = step.Command
	case TypeLineInFile:
		kind = step.LineInFile
	case TypeFile:
		kind = step.File
	case TypeSSHKey:
		kind = step.SSHKey
	case TypeGitConfig:
		kind = step.GitConfig
	case TypeInstaller:
		kind = step.Installer
	case TypeFormat:
		kind = step.Format
	case TypeRequire:
		kind = step.Require
	default:
		return provisionerrors.NewValidationError(step.ID, fmt.Sprintf("unknown step type %q", step.Type), nil)
	}

	if isNilPointer(kind) {
		return provisionerrors.NewValidationError(step.ID, fmt.Sprintf("%s configuration is required", step.Type), nil)
	}
	if err := v.Struct(kind); err != nil {
		return convertValidationError(err)
	}

	switch step.Type {
	case TypeGitConfig:
		if step.GitConfig.Pattern != "" {
			if _, err := regexp.Compile(step.GitConfig.Pattern); err != nil {
				return provisionerrors.NewValidationError(step.ID+".pattern", fmt.Sprintf("invalid regex pattern: %v", err), err)
			}
		}
	case TypeLineInFile:
		cfg := step.LineInFile
		if cfg.State != "absent" && strings.TrimSpace(cfg.Line) == "" {
			return provisionerrors.NewValidationError(step.ID+".line", "line is required", nil)
		}
		if cfg.State == "absent" && strings.TrimSpace(cfg.Match) == "" {
			return provisionerrors.NewValidationError(step.ID+".match", "required when state is absent", nil)
		}
	case TypeFile:
		cfg := step.File
		switch cfg.Format {
		case "ini":
			if len(cfg.Sections) == 0 {
				return provisionerrors.NewValidationError(step.ID+".sections", "required for ini format", nil)
			}
		case "yaml":
			if len(cfg.Data) == 0 {
				return provisionerrors.NewValidationError(step.ID+".data", "required for yaml format", nil)
			}
		}
	}

	return nil
}

// validateValidation checks a single post-run validation entry.
func validateValidation(val Validation, index int) error {
	v := validatorInstance()
	if err := v.Struct(val); err != nil {
		return convertValidationError(err)
	}

	var kind any
	switch val.Type {
	case "command_exists":
		kind = val.CommandExists
	case "file_exists":
		kind = val.FileExists
	case "path_contains":
		kind = val.PathContains
	default:
		return provisionerrors.NewValidationError(fieldForValidation(index, "type"), fmt.Sprintf("unknown validation type %q", val.Type), nil)
	}

	if isNilPointer(kind) {
		return provisionerrors.NewValidationError(fieldForValidation(index, val.Type), "configuration is required", nil)
	}
	if err := v.Struct(kind); err != nil {
		return convertValidationError(err)
	}
	return nil
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return !rv.IsValid() || (rv.Kind() == reflect.Ptr && rv.IsNil())
}

// convertValidationError normalizes validator errors into validation errors.
func convertValidationError(err error) error {
	if err == nil {
		return nil
	}

	if ves, ok := err.(validator.ValidationErrors); ok {
		ve := ves[0]
		field := yamlishFieldName(ve)
		msg := fmt.Sprintf("%s failed validation for tag '%s'", field, ve.Tag())
		return provisionerrors.NewValidationError(field, msg, err)
	}

	return provisionerrors.NewValidationError("config", err.Error(), err)
}

func yamlishFieldName(fe validator.FieldError) string {
	parts := strings.Split(fe.StructNamespace(), ".")
	for i, part := range parts {
		parts[i] = strings.ToLower(part)
	}
	return strings.Join(parts, ".")
}

func fieldForStep(index int, field string) string {
	return fmt.Sprintf("steps[%d].%s", index, field)
}

func fieldForValidation(index int, field string) string {
	return fmt.Sprintf("validations[%d].%s", index, field)
}
