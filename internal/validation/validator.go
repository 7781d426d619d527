// Package validation runs the read-only checks declared after the steps of a
// run document. They report on the machine; they never change it.
package validation

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexisbeaulieu97/provision/internal/config"
	"github.com/alexisbeaulieu97/provision/internal/logger"
	provisionerrors "github.com/alexisbeaulieu97/provision/pkg/errors"
)

// Run executes every validation, in order, and returns all results. The error
// is non-nil when at least one validation failed.
func Run(ctx context.Context, validations []config.Validation) ([]Result, error) {
	log := logger.FromContext(ctx)
	results := make([]Result, 0, len(validations))
	var failures []string

	for i, val := range validations {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result := Result{Validation: val}
		message, err := check(val)
		if err != nil {
			result.Message = err.Error()
			result.Error = err
			failures = append(failures, err.Error())
		} else {
			result.Passed = true
			result.Message = message
		}
		results = append(results, result)

		log.WithFields(map[string]any{
			"validation": fmt.Sprintf("validations[%d]", i),
			"type":       val.Type,
			"passed":     result.Passed,
		}).Info(result.Message)
	}

	if len(failures) > 0 {
		return results, fmt.Errorf("validations failed: %s", strings.Join(failures, "; "))
	}
	return results, nil
}

func check(val config.Validation) (string, error) {
	switch val.Type {
	case "command_exists":
		if val.CommandExists == nil {
			return "", provisionerrors.NewValidationError("validation.command_exists", "configuration missing", nil)
		}
		path, err := CheckCommandExists(val.CommandExists.Command)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s found at %s", val.CommandExists.Command, path), nil
	case "file_exists":
		if val.FileExists == nil {
			return "", provisionerrors.NewValidationError("validation.file_exists", "configuration missing", nil)
		}
		path, err := CheckFileExists(val.FileExists.Path)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s exists", path), nil
	case "path_contains":
		if val.PathContains == nil {
			return "", provisionerrors.NewValidationError("validation.path_contains", "configuration missing", nil)
		}
		path, err := CheckPathContains(val.PathContains.File, val.PathContains.Text)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s contains %q", path, val.PathContains.Text), nil
	}
	return "", provisionerrors.NewValidationError("validation.type", fmt.Sprintf("unknown validation type %q", val.Type), nil)
}
