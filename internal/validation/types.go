package validation

import "github.com/alexisbeaulieu97/provision/internal/config"

// Result captures the outcome of executing a single post-run validation.
type Result struct {
	Validation config.Validation
	Passed     bool
	Message    string
	Error      error
}
