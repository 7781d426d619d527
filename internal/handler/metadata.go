package handler

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
)

// Metadata describes a handler.
type Metadata struct {
	// Type is the step type the handler serves, e.g. "git_config".
	Type        string
	Version     string
	Description string
}

// Validate ensures metadata is well-formed.
func (m Metadata) Validate() error {
	if strings.TrimSpace(m.Type) == "" {
		return fmt.Errorf("handler metadata requires a non-empty Type")
	}
	if strings.TrimSpace(m.Version) == "" {
		return fmt.Errorf("handler '%s' metadata requires Version", m.Type)
	}
	if _, err := version.NewSemver(m.Version); err != nil {
		return fmt.Errorf("handler '%s' has invalid Version '%s': %w", m.Type, m.Version, err)
	}
	return nil
}
