package validator

import (
	"fmt"
	"strings"

	"stageline/internal/analysis"
	"stageline/internal/domain"
)

// BDDScenarios requires feature issues to describe behaviour before they are planned.
type BDDScenarios struct{}

func (BDDScenarios) Name() string { return "bdd-scenarios" }

func (BDDScenarios) AppliesTo() []domain.Stage { return []domain.Stage{domain.StageTodo} }

func (BDDScenarios) Validate(issue domain.Issue, a analysis.Analysis, _ domain.Stage) domain.ValidationResult {
	if issue.Type != domain.TypeFeature || a.HasScenarios {
		return domain.Valid()
	}
	return domain.Invalid("feature issues need at least one BDD scenario (a \"Scenario:\" line) before entering todo")
}

// OwnerAssigned requires someone to own the work once it starts.
type OwnerAssigned struct{}

func (OwnerAssigned) Name() string { return "owner-assigned" }

func (OwnerAssigned) AppliesTo() []domain.Stage { return []domain.Stage{domain.StageInProgress} }

func (OwnerAssigned) Validate(issue domain.Issue, _ analysis.Analysis, _ domain.Stage) domain.ValidationResult {
	if strings.TrimSpace(issue.Owner) != "" {
		return domain.Valid()
	}
	return domain.Invalid("an owner must be assigned before work starts")
}

// SpecsCompleted requires every spec of the issue to be completed before it is done.
type SpecsCompleted struct{}

func (SpecsCompleted) Name() string { return "specs-completed" }

func (SpecsCompleted) AppliesTo() []domain.Stage { return []domain.Stage{domain.StageDone} }

func (SpecsCompleted) Validate(_ domain.Issue, a analysis.Analysis, _ domain.Stage) domain.ValidationResult {
	if len(a.IncompleteSpecs) == 0 {
		return domain.Valid()
	}
	reasons := make([]string, 0, len(a.IncompleteSpecs))
	for _, name := range a.IncompleteSpecs {
		reasons = append(reasons, fmt.Sprintf("spec %s is not completed", name))
	}
	return domain.Invalid(reasons...)
}
