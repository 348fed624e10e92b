package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stageline/internal/domain"
)

func TestCountScenarios(t *testing.T) {
	body := `# Login

Feature: login
  Scenario: valid password
    Given a user
  Scenario Outline: bad input <x>
### Scenario: heading style
- Scenario: list style
Not a Scenario: inline mention
`
	assert.Equal(t, 4, CountScenarios(body))
	assert.Equal(t, 0, CountScenarios("no scenarios here"))
}

func TestAnalyzeSpecs(t *testing.T) {
	done := "2024-01-02"
	a := Analyze(domain.Issue{Body: "Scenario: x"}, []domain.Spec{
		{Name: "api", Status: domain.SpecCompleted, Completed: &done},
		{Name: "ui", Status: domain.SpecInReview},
		{Name: "docs", Status: domain.SpecPending},
	})
	assert.True(t, a.HasScenarios)
	assert.Equal(t, 3, a.SpecCount)
	assert.Equal(t, []string{"ui", "docs"}, a.IncompleteSpecs)
}
