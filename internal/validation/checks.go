package validation

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"regexp"

	"github.com/alexisbeaulieu97/provision/internal/fsutil"
)

// CheckCommandExists verifies a command is available on PATH and returns
// where it was found.
func CheckCommandExists(command string) (string, error) {
	if command == "" {
		return "", fmt.Errorf("command name is required")
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return "", fmt.Errorf("%s not found on PATH", command)
	}
	return path, nil
}

// CheckFileExists verifies a file or directory exists. A leading ~ is expanded.
func CheckFileExists(path string) (string, error) {
	expanded, err := fsutil.Expand(path)
	if err != nil {
		return "", fmt.Errorf("path %q: %w", path, err)
	}
	if _, err := os.Stat(expanded); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, fmt.Errorf("%s does not exist", expanded)
		}
		return expanded, err
	}
	return expanded, nil
}

// CheckPathContains verifies that file contains a match for the regular
// expression text.
func CheckPathContains(path, text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("text is required")
	}
	expanded, err := fsutil.Expand(path)
	if err != nil {
		return "", fmt.Errorf("file %q: %w", path, err)
	}

	pattern, err := regexp.Compile(text)
	if err != nil {
		return expanded, fmt.Errorf("invalid pattern %q: %w", text, err)
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		return expanded, err
	}
	if !pattern.Match(data) {
		return expanded, fmt.Errorf("pattern %q not found in %s", text, expanded)
	}
	return expanded, nil
}
