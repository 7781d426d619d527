package config

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	provisionerrors "github.com/alexisbeaulieu97/provision/pkg/errors"
)

// DefaultSource names the embedded workstation profile in error messages.
const DefaultSource = "<embedded workstation profile>"

//go:embed profiles/workstation.yaml
var defaultProfile []byte

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// ParseConfig loads a configuration file from disk, validates it, and returns the resulting model.
func ParseConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, provisionerrors.NewParseError(path, 0, err)
	}
	return Parse(data, path)
}

// Parse decodes and validates a configuration document. source is only used
// to label errors.
func Parse(data []byte, source string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, provisionerrors.NewParseError(source, extractLine(err), err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the embedded workstation profile used when no
// configuration file is given.
func Default() (*Config, error) {
	return Parse(defaultProfile, DefaultSource)
}

// Load parses path, or the embedded profile when path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default()
	}
	return ParseConfig(path)
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}

	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}

	var line int
	if _, scanErr := fmt.Sscanf(matches[1], "%d", &line); scanErr != nil {
		return 0
	}

	return line
}
