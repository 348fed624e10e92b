// Package analysis derives a read-only summary of an issue's content. Validators
// consume the summary instead of parsing bodies themselves.
package analysis

import (
	"strings"

	"stageline/internal/domain"
)

type Analysis struct {
	ScenarioCount   int      `json:"scenario_count"`
	HasScenarios    bool     `json:"has_scenarios"`
	SpecCount       int      `json:"spec_count"`
	IncompleteSpecs []string `json:"incomplete_specs,omitempty"`
}

// Analyze summarizes an issue body and its specs.
func Analyze(issue domain.Issue, specs []domain.Spec) Analysis {
	a := Analysis{ScenarioCount: CountScenarios(issue.Body), SpecCount: len(specs)}
	a.HasScenarios = a.ScenarioCount > 0
	for _, s := range specs {
		if s.Status != domain.SpecCompleted {
			a.IncompleteSpecs = append(a.IncompleteSpecs, s.Name)
		}
	}
	return a
}

// CountScenarios counts Gherkin scenario declarations, including outlines, in body.
func CountScenarios(body string) int {
	n := 0
	for _, line := range strings.Split(body, "\n") {
		t := strings.TrimSpace(line)
		t = strings.TrimLeft(t, "#*- ")
		if strings.HasPrefix(t, "Scenario:") || strings.HasPrefix(t, "Scenario Outline:") {
			n++
		}
	}
	return n
}
