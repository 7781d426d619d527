package gitconfighandler

import (
	"fmt"
	"strings"

	format "github.com/go-git/go-git/v5/plumbing/format/config"
)

// configKey addresses one option: section.key or section.subsection.key.
type configKey struct {
	Section    string
	Subsection string
	Name       string
}

func parseKey(raw string) (configKey, error) {
	first := strings.Index(raw, ".")
	last := strings.LastIndex(raw, ".")
	if first <= 0 || last == len(raw)-1 {
		return configKey{}, fmt.Errorf("invalid git config key %q", raw)
	}
	key := configKey{Section: raw[:first], Name: raw[last+1:]}
	if last > first {
		key.Subsection = raw[first+1 : last]
	}
	return key, nil
}

func (k configKey) String() string {
	if k.Subsection != "" {
		return k.Section + "." + k.Subsection + "." + k.Name
	}
	return k.Section + "." + k.Name
}

// lookup returns the effective (last) value of k and whether it is set.
func (k configKey) lookup(cfg *format.Config) (string, bool) {
	if !cfg.HasSection(k.Section) {
		return "", false
	}
	section := cfg.Section(k.Section)
	if k.Subsection == "" {
		if !section.Options.Has(k.Name) {
			return "", false
		}
		return section.Option(k.Name), true
	}
	if !section.HasSubsection(k.Subsection) {
		return "", false
	}
	sub := section.Subsection(k.Subsection)
	if !sub.Options.Has(k.Name) {
		return "", false
	}
	return sub.Option(k.Name), true
}

// set replaces every occurrence of k with a single value.
func (k configKey) set(cfg *format.Config, value string) {
	cfg.SetOption(k.Section, k.Subsection, k.Name, value)
}
