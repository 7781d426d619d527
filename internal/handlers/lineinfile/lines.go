package lineinfilehandler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// document is a text file held as lines. Trailing records whether the last
// line ended with a newline.
type document struct {
	Lines    []string
	Trailing bool
}

func parseDocument(content string) document {
	if content == "" {
		return document{Lines: []string{}}
	}
	trailing := strings.HasSuffix(content, "\n")
	body := strings.TrimSuffix(content, "\n")
	if body == "" {
		return document{Lines: []string{}, Trailing: trailing}
	}
	return document{Lines: strings.Split(body, "\n"), Trailing: trailing}
}

func (d document) String() string {
	if len(d.Lines) == 0 {
		return ""
	}
	out := strings.Join(d.Lines, "\n")
	if d.Trailing {
		out += "\n"
	}
	return out
}

func (d document) clone() document {
	return document{Lines: append([]string{}, d.Lines...), Trailing: d.Trailing}
}

// matchingLines returns the indexes of lines matched by pattern.
func matchingLines(lines []string, pattern *regexp.Regexp) []int {
	var idx []int
	for i, line := range lines {
		if pattern.MatchString(line) {
			idx = append(idx, i)
		}
	}
	return idx
}

func contains(lines []string, line string) bool {
	for _, existing := range lines {
		if existing == line {
			return true
		}
	}
	return false
}

// converge computes the desired document. The returned action is one of
// none, append, replace or remove.
func converge(current document, opts *options) (document, string, error) {
	next := current.clone()

	if opts.State == stateAbsent {
		hits := matchingLines(next.Lines, opts.pattern)
		if len(hits) == 0 {
			return current, "none", nil
		}
		kept := next.Lines[:0]
		drop := make(map[int]bool, len(hits))
		for _, i := range hits {
			drop[i] = true
		}
		for i, line := range current.Lines {
			if !drop[i] {
				kept = append(kept, line)
			}
		}
		next.Lines = kept
		return next, "remove", nil
	}

	if opts.pattern == nil {
		if contains(next.Lines, opts.Line) {
			return current, "none", nil
		}
		next.Lines = append(next.Lines, opts.Line)
		next.Trailing = true
		return next, "append", nil
	}

	hits := matchingLines(next.Lines, opts.pattern)
	if len(hits) == 0 {
		// The literal line may already be present even though the pattern
		// does not match it; never add it twice.
		if contains(next.Lines, opts.Line) {
			return current, "none", nil
		}
		next.Lines = append(next.Lines, opts.Line)
		next.Trailing = true
		return next, "append", nil
	}

	targets := hits[:1]
	switch opts.OnMultiple {
	case onMultipleAll:
		targets = hits
	case onMultipleError:
		if len(hits) > 1 {
			return current, "none", fmt.Errorf("%d lines match %q", len(hits), opts.pattern)
		}
	}

	changed := false
	for _, i := range targets {
		if next.Lines[i] != opts.Line {
			next.Lines[i] = opts.Line
			changed = true
		}
	}
	if !changed {
		return current, "none", nil
	}
	return next, "replace", nil
}

func unifiedDiff(path string, before, after document) string {
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before.String()),
		B:        difflib.SplitLines(after.String()),
		FromFile: path,
		ToFile:   path,
		Context:  3,
	})
	return strings.TrimSpace(diff)
}
