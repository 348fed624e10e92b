package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stageline/internal/analysis"
	"stageline/internal/config"
	"stageline/internal/domain"
)

type stubRule struct {
	name    string
	stages  []domain.Stage
	reasons []string
	calls   *int
}

func (s stubRule) Name() string              { return s.name }
func (s stubRule) AppliesTo() []domain.Stage { return s.stages }
func (s stubRule) Validate(domain.Issue, analysis.Analysis, domain.Stage) domain.ValidationResult {
	if s.calls != nil {
		*s.calls++
	}
	if len(s.reasons) == 0 {
		return domain.Valid()
	}
	return domain.Invalid(s.reasons...)
}

func TestChainAggregatesInOrderWithoutShortCircuit(t *testing.T) {
	var calls int
	chain := NewChain(
		stubRule{name: "a", stages: []domain.Stage{domain.StageTodo}, reasons: []string{"a1", "a2"}, calls: &calls},
		stubRule{name: "b", stages: []domain.Stage{domain.StageDone}, reasons: []string{"b1"}, calls: &calls},
		stubRule{name: "c", stages: []domain.Stage{domain.StageTodo}, calls: &calls},
		stubRule{name: "d", stages: []domain.Stage{domain.StageTodo, domain.StageDone}, reasons: []string{"d1"}, calls: &calls},
	)
	res := chain.Validate(domain.Issue{}, analysis.Analysis{}, domain.StageTodo)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"a1", "a2", "d1"}, res.Missing)
	assert.Equal(t, 3, calls)
}

func TestChainValidWhenNothingApplies(t *testing.T) {
	chain := NewChain(stubRule{name: "a", stages: []domain.Stage{domain.StageDone}, reasons: []string{"x"}})
	res := chain.Validate(domain.Issue{}, analysis.Analysis{}, domain.StageBacklog)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Missing)
}

func TestBDDScenariosIsTypeConditional(t *testing.T) {
	chain := FromConfig(nil)
	a := analysis.Analysis{}

	res := chain.Validate(domain.Issue{Name: "foo", Type: domain.TypeFeature}, a, domain.StageTodo)
	assert.False(t, res.Valid)
	assert.Len(t, res.Missing, 1)
	assert.Contains(t, res.Missing[0], "BDD scenario")

	for _, typ := range []domain.IssueType{domain.TypeBug, domain.TypeTask} {
		res = chain.Validate(domain.Issue{Name: "bar", Type: typ}, a, domain.StageTodo)
		assert.True(t, res.Valid, typ)
	}

	res = chain.Validate(domain.Issue{Type: domain.TypeFeature}, analysis.Analysis{HasScenarios: true, ScenarioCount: 1}, domain.StageTodo)
	assert.True(t, res.Valid)
}

func TestOwnerAndSpecsRules(t *testing.T) {
	chain := FromConfig(nil)
	res := chain.Validate(domain.Issue{Owner: "  "}, analysis.Analysis{}, domain.StageInProgress)
	assert.Equal(t, []string{"an owner must be assigned before work starts"}, res.Missing)

	res = chain.Validate(domain.Issue{}, analysis.Analysis{IncompleteSpecs: []string{"api", "ui"}}, domain.StageDone)
	assert.Equal(t, []string{"spec api is not completed", "spec ui is not completed"}, res.Missing)
}

func TestFromConfigDropsDisabledRules(t *testing.T) {
	cfg := config.Default("p")
	cfg.Validators.Disabled = []string{"owner-assigned"}
	chain := FromConfig(cfg)
	assert.Equal(t, []string{"bdd-scenarios", "specs-completed"}, chain.Names())
	res := chain.Validate(domain.Issue{}, analysis.Analysis{}, domain.StageInProgress)
	assert.True(t, res.Valid)
}
