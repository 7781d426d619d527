package config

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// Step kinds understood by the runner.
const (
	TypePackage    = "package"
	TypeCommand    = "command"
	TypeLineInFile = "line_in_file"
	TypeFile       = "file"
	TypeSSHKey     = "ssh_key"
	TypeGitConfig  = "git_config"
	TypeInstaller  = "installer"
	TypeFormat     = "format"
	TypeRequire    = "require"
)

// Config represents a full provisioning run document.
type Config struct {
	Version     string       `yaml:"version" validate:"required,semver"`
	Name        string       `yaml:"name" validate:"required,min=1,max=100"`
	Description string       `yaml:"description,omitempty"`
	Settings    Settings     `yaml:"settings,omitempty"`
	Steps       []Step       `yaml:"steps" validate:"required,min=1,dive"`
	Validations []Validation `yaml:"validations,omitempty" validate:"omitempty,dive"`
}

// Settings holds run-wide parameters. Command-line flags override them.
type Settings struct {
	DryRun  bool   `yaml:"dry_run,omitempty"`
	Verbose bool   `yaml:"verbose,omitempty"`
	LogFile string `yaml:"log_file,omitempty"`
}

// Step describes one unit of provisioning work. Exactly one of the kind
// specific pointers is populated, matching Type.
type Step struct {
	ID      string `yaml:"id" validate:"required,step_id"`
	Name    string `yaml:"name,omitempty"`
	Type    string `yaml:"type" validate:"required,oneof=package command line_in_file file ssh_key git_config installer format require"`
	Enabled bool   `yaml:"enabled,omitempty"`

	Package    *PackageStep    `yaml:"-"`
	Command    *CommandStep    `yaml:"-"`
	LineInFile *LineInFileStep `yaml:"-"`
	File       *FileStep       `yaml:"-"`
	SSHKey     *SSHKeyStep     `yaml:"-"`
	GitConfig  *GitConfigStep  `yaml:"-"`
	Installer  *InstallerStep  `yaml:"-"`
	Format     *FormatStep     `yaml:"-"`
	Require    *RequireStep    `yaml:"-"`
}

// DisplayName returns Name when set, otherwise ID.
func (s Step) DisplayName() string {
	if strings.TrimSpace(s.Name) != "" {
		return s.Name
	}
	return s.ID
}

// UnmarshalYAML customises step decoding to populate type-specific structures without conflicts.
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	type baseStep struct {
		ID      string `yaml:"id"`
		Name    string `yaml:"name"`
		Type    string `yaml:"type"`
		Enabled *bool  `yaml:"enabled"`
	}

	var base baseStep
	if err := value.Decode(&base); err != nil {
		return err
	}

	*s = Step{
		ID:      base.ID,
		Name:    base.Name,
		Type:    base.Type,
		Enabled: true,
	}
	if base.Enabled != nil {
		s.Enabled = *base.Enabled
	}

	switch base.Type {
	case TypePackage:
		s.Package = &PackageStep{}
		return value.Decode(s.Package)
	case TypeCommand:
		s.Command = &CommandStep{}
		return value.Decode(s.Command)
	case TypeLineInFile:
		s.LineInFile = &LineInFileStep{}
		return value.Decode(s.LineInFile)
	case TypeFile:
		s.File = &FileStep{}
		return value.Decode(s.File)
	case TypeSSHKey:
		s.SSHKey = &SSHKeyStep{}
		return value.Decode(s.SSHKey)
	case TypeGitConfig:
		s.GitConfig = &GitConfigStep{}
		return value.Decode(s.GitConfig)
	case TypeInstaller:
		s.Installer = &InstallerStep{}
		return value.Decode(s.Installer)
	case TypeFormat:
		s.Format = &FormatStep{}
		return value.Decode(s.Format)
	case TypeRequire:
		s.Require = &RequireStep{}
		return value.Decode(s.Require)
	}

	return nil
}

// PackageStep installs one or more packages with an OS or language package manager.
type PackageStep struct {
	Packages []string `yaml:"packages" validate:"required,min=1,dive,min=1,max=100"`
	Manager  string   `yaml:"manager,omitempty" validate:"omitempty,oneof=apt pip"`
	Update   bool     `yaml:"update,omitempty"`
	Sudo     bool     `yaml:"sudo,omitempty"`
	// Pip overrides the pip executable, e.g. "python3 -m pip".
	Pip string `yaml:"pip,omitempty"`
}

// CommandStep executes an arbitrary shell command, optionally guarded by a check command.
type CommandStep struct {
	Command string            `yaml:"command" validate:"required,min=1"`
	Check   string            `yaml:"check,omitempty"`
	Shell   string            `yaml:"shell,omitempty"`
	WorkDir string            `yaml:"workdir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
	// Interactive attaches the command to the operator's terminal instead of
	// the null device.
	Interactive bool `yaml:"interactive,omitempty"`
}

// LineInFileStep keeps a single line present in (or absent from) a text file.
type LineInFileStep struct {
	File              string `yaml:"file" validate:"required"`
	Line              string `yaml:"line,omitempty"`
	State             string `yaml:"state,omitempty" validate:"omitempty,oneof=present absent"`
	Match             string `yaml:"match,omitempty"`
	OnMultipleMatches string `yaml:"on_multiple_matches,omitempty" validate:"omitempty,oneof=first all error"`
	Backup            bool   `yaml:"backup,omitempty"`
	BackupDir         string `yaml:"backup_dir,omitempty"`
	Encoding          string `yaml:"encoding,omitempty"`
}

// FileStep writes a whole file. It has no precondition: the file is always
// rewritten.
type FileStep struct {
	Path    string `yaml:"path" validate:"required"`
	Format  string `yaml:"format,omitempty" validate:"omitempty,oneof=raw template ini yaml"`
	Content string `yaml:"content,omitempty"`
	// Vars feed the template format.
	Vars map[string]string `yaml:"vars,omitempty"`
	// Sections feed the ini format: section -> key -> value. The "DEFAULT"
	// section holds keys written before any section header.
	Sections map[string]map[string]string `yaml:"sections,omitempty"`
	// Data feeds the yaml format.
	Data map[string]any `yaml:"data,omitempty"`
	Mode string         `yaml:"mode,omitempty" validate:"omitempty,octal_mode"`
}

// SSHKeyStep generates a key pair at Path and Path.pub when Path is absent.
type SSHKeyStep struct {
	Path    string `yaml:"path" validate:"required"`
	KeyType string `yaml:"key_type,omitempty" validate:"omitempty,oneof=ed25519 rsa"`
	Bits    int    `yaml:"bits,omitempty" validate:"omitempty,min=2048,max=16384"`
	Comment string `yaml:"comment,omitempty"`
}

// GitConfigStep converges one key of a git config file. Either Value (a
// literal) or Pattern (operator input validated against a regular
// expression) is set.
type GitConfigStep struct {
	Key     string `yaml:"key" validate:"required,git_key"`
	Value   string `yaml:"value,omitempty" validate:"required_without=Pattern,excluded_with=Pattern"`
	Pattern string `yaml:"pattern,omitempty" validate:"required_without=Value"`
	Prompt  string `yaml:"prompt,omitempty"`
	// File defaults to the global config, ~/.gitconfig.
	File string `yaml:"file,omitempty"`
	// Path marks Value as a filesystem path; a leading ~ is expanded before
	// it is compared or written.
	Path bool `yaml:"path,omitempty"`
}

// InstallerStep fetches an installer script over HTTPS and runs it with a shell.
// Creates and Binary are best-effort signals that the tool is already present.
type InstallerStep struct {
	URL     string            `yaml:"url" validate:"required,https_url"`
	Creates string            `yaml:"creates,omitempty" validate:"required_without=Binary"`
	Binary  string            `yaml:"binary,omitempty" validate:"required_without=Creates"`
	Shell   string            `yaml:"shell,omitempty"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// FormatStep runs a source formatter over files. The formatter must print
// the formatted file on stdout without modifying it.
type FormatStep struct {
	Formatter  []string `yaml:"formatter" validate:"required,min=1,dive,required"`
	Files      []string `yaml:"files" validate:"required,min=1,dive,required"`
	Mode       string   `yaml:"mode,omitempty" validate:"omitempty,oneof=check apply"`
	FailOnDiff bool     `yaml:"fail_on_diff,omitempty"`
	// Stdin feeds the file on standard input instead of appending its path.
	Stdin bool `yaml:"stdin,omitempty"`
}

// RequireStep asserts that a prerequisite tool is installed. It cannot fix
// the environment; an unmet requirement fails the run.
type RequireStep struct {
	Command     string   `yaml:"command" validate:"required"`
	VersionArgs []string `yaml:"version_args,omitempty"`
	Constraint  string   `yaml:"constraint,omitempty"`
	Hint        string   `yaml:"hint,omitempty"`
}

// Validation represents a post-run check.
type Validation struct {
	Type string `yaml:"type" validate:"required,oneof=command_exists file_exists path_contains"`

	CommandExists *CommandExistsValidation `yaml:"-"`
	FileExists    *FileExistsValidation    `yaml:"-"`
	PathContains  *PathContainsValidation  `yaml:"-"`
}

// UnmarshalYAML populates the structure matching Type.
func (v *Validation) UnmarshalYAML(value *yaml.Node) error {
	var base struct {
		Type string `yaml:"type"`
	}
	if err := value.Decode(&base); err != nil {
		return err
	}

	*v = Validation{Type: base.Type}
	switch base.Type {
	case "command_exists":
		v.CommandExists = &CommandExistsValidation{}
		return value.Decode(v.CommandExists)
	case "file_exists":
		v.FileExists = &FileExistsValidation{}
		return value.Decode(v.FileExists)
	case "path_contains":
		v.PathContains = &PathContainsValidation{}
		return value.Decode(v.PathContains)
	}
	return nil
}

// CommandExistsValidation ensures a command exists on PATH.
type CommandExistsValidation struct {
	Command string `yaml:"command" validate:"required"`
}

// FileExistsValidation ensures a file or directory exists.
type FileExistsValidation struct {
	Path string `yaml:"path" validate:"required"`
}

// PathContainsValidation ensures a file contains text matching a pattern.
type PathContainsValidation struct {
	File string `yaml:"file" validate:"required"`
	Text string `yaml:"text" validate:"required"`
}

// EnabledSteps returns the steps that will run, in declaration order.
func (c *Config) EnabledSteps() []Step {
	out := make([]Step, 0, len(c.Steps))
	for _, step := range c.Steps {
		if step.Enabled {
			out = append(out, step)
		}
	}
	return out
}
