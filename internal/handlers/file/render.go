package filehandler

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/alexisbeaulieu97/provision/internal/config"
)

const (
	formatRaw      = "raw"
	formatTemplate = "template"
	formatINI      = "ini"
	formatYAML     = "yaml"
)

// render produces the bytes a file step wants on disk.
func render(cfg *config.FileStep) ([]byte, error) {
	switch cfg.Format {
	case "", formatRaw:
		return []byte(cfg.Content), nil
	case formatTemplate:
		return renderTemplate(cfg.Path, cfg.Content, cfg.Vars)
	case formatINI:
		return renderINI(cfg.Sections)
	case formatYAML:
		return renderYAML(cfg.Data)
	}
	return nil, fmt.Errorf("unsupported format %q", cfg.Format)
}

var templateFuncs = template.FuncMap{
	"env": os.Getenv,
	"default": func(def, value string) string {
		if value == "" {
			return def
		}
		return value
	},
}

func renderTemplate(name, content string, vars map[string]string) ([]byte, error) {
	tmpl, err := template.New(name).Funcs(templateFuncs).Option("missingkey=error").Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	if vars == nil {
		vars = map[string]string{}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	return buf.Bytes(), nil
}

// renderINI writes sections and keys in sorted order so the output is
// stable across runs. The DEFAULT section holds keys that precede any header.
func renderINI(sections map[string]map[string]string) ([]byte, error) {
	file := ini.Empty()

	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		section := file.Section(ini.DefaultSection)
		if !strings.EqualFold(name, ini.DefaultSection) {
			var err error
			section, err = file.NewSection(name)
			if err != nil {
				return nil, fmt.Errorf("section %q: %w", name, err)
			}
		}

		keys := make([]string, 0, len(sections[name]))
		for key := range sections[name] {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if _, err := section.NewKey(key, sections[name][key]); err != nil {
				return nil, fmt.Errorf("key %s.%s: %w", name, key, err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := file.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderYAML(data map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
