package config

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	semverPattern  = regexp.MustCompile(`^\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z-.]+)?(?:\+[0-9A-Za-z-.]+)?$`)
	stepIDPattern  = regexp.MustCompile(`^[a-z0-9_-]+$`)
	gitKeyPattern  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*(\..+)?\.[A-Za-z][A-Za-z0-9-]*$`)
	octalModeRegex = regexp.MustCompile(`^0?[0-7]{3,4}$`)
)

// validatorInstance configures and returns the shared validator instance used across the config package.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("semver", func(fl validator.FieldLevel) bool {
			return semverPattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("step_id", func(fl validator.FieldLevel) bool {
			return stepIDPattern.MatchString(fl.Field().String())
		})

		// section[.subsection].name, the form git config accepts on the command line.
		_ = v.RegisterValidation("git_key", func(fl validator.FieldLevel) bool {
			return gitKeyPattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("octal_mode", func(fl validator.FieldLevel) bool {
			return octalModeRegex.MatchString(fl.Field().String())
		})

		// Installers are executed locally, so plain http is never accepted.
		_ = v.RegisterValidation("https_url", func(fl validator.FieldLevel) bool {
			raw := strings.TrimSpace(fl.Field().String())
			if raw == "" {
				return false
			}
			parsed, err := url.Parse(raw)
			if err != nil {
				return false
			}
			return strings.EqualFold(parsed.Scheme, "https") && parsed.Host != ""
		})

		validateInst = v
	})

	return validateInst
}

// GetValidator returns a configured validator instance for use outside the config package.
func GetValidator() *validator.Validate {
	return validatorInstance()
}

// ParseMode converts an octal mode string such as "0644" into a file mode
// value. An empty string yields def.
func ParseMode(mode string, def uint32) (uint32, error) {
	mode = strings.TrimSpace(mode)
	if mode == "" {
		return def, nil
	}
	parsed, err := strconv.ParseUint(mode, 8, 32)
	if err != nil {
		return 0, err
	}
	return uint32(parsed), nil
}
