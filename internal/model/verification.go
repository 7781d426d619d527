package model

import "time"

// VerificationStatus describes how the current machine state relates to the
// state a step wants.
type VerificationStatus string

const (
	StatusSatisfied VerificationStatus = "satisfied"
	StatusMissing   VerificationStatus = "missing"
	StatusDrifted   VerificationStatus = "drifted"
	StatusBlocked   VerificationStatus = "blocked"
	StatusUnknown   VerificationStatus = "unknown"
)

// IsValid reports whether s is one of the known statuses.
func (s VerificationStatus) IsValid() bool {
	switch s {
	case StatusSatisfied, StatusMissing, StatusDrifted, StatusBlocked, StatusUnknown:
		return true
	}
	return false
}

// VerificationResult is the read-only assessment of one step.
type VerificationResult struct {
	StepID    string
	Name      string
	Status    VerificationStatus
	Message   string
	Details   string
	Error     error
	Duration  time.Duration
	Timestamp time.Time
}

// VerificationSummary aggregates the assessment of a whole run document.
type VerificationSummary struct {
	TotalSteps int
	Satisfied  int
	Missing    int
	Drifted    int
	Blocked    int
	Unknown    int
	Duration   time.Duration
	Results    []*VerificationResult
}

// Add records a result and bumps the matching counter.
func (s *VerificationSummary) Add(result *VerificationResult) {
	if result == nil {
		return
	}
	s.Results = append(s.Results, result)
	switch result.Status {
	case StatusSatisfied:
		s.Satisfied++
	case StatusMissing:
		s.Missing++
	case StatusDrifted:
		s.Drifted++
	case StatusBlocked:
		s.Blocked++
	default:
		s.Unknown++
	}
}

// AllSatisfied reports whether every step is already converged.
func (s *VerificationSummary) AllSatisfied() bool {
	return s.Satisfied == s.TotalSteps
}

// NeedsApply reports whether an apply run would change anything.
func (s *VerificationSummary) NeedsApply() bool {
	return s.Missing > 0 || s.Drifted > 0 || s.Blocked > 0
}
