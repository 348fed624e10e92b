// Package validator holds the business rules that gate issue stage transitions.
package validator

import (
	"slices"

	"stageline/internal/analysis"
	"stageline/internal/config"
	"stageline/internal/domain"
)

// Validator is one rule. It never returns an error for a business-rule failure.
type Validator interface {
	Name() string
	AppliesTo() []domain.Stage
	Validate(issue domain.Issue, a analysis.Analysis, target domain.Stage) domain.ValidationResult
}

// Chain evaluates validators in order without short-circuiting.
type Chain struct {
	validators []Validator
}

func NewChain(validators ...Validator) *Chain {
	return &Chain{validators: validators}
}

// Defaults returns every built-in rule in evaluation order.
func Defaults() []Validator {
	return []Validator{BDDScenarios{}, OwnerAssigned{}, SpecsCompleted{}}
}

// FromConfig builds the default chain minus rules disabled in cfg.
func FromConfig(cfg *config.Config) *Chain {
	var vs []Validator
	for _, v := range Defaults() {
		if cfg != nil && cfg.ValidatorDisabled(v.Name()) {
			continue
		}
		vs = append(vs, v)
	}
	return NewChain(vs...)
}

// Names lists the rules in the chain.
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.validators))
	for _, v := range c.validators {
		names = append(names, v.Name())
	}
	return names
}

// Validate runs every applicable validator and aggregates their reasons in order.
func (c *Chain) Validate(issue domain.Issue, a analysis.Analysis, target domain.Stage) domain.ValidationResult {
	res := domain.Valid()
	if c == nil {
		return res
	}
	for _, v := range c.validators {
		if !slices.Contains(v.AppliesTo(), target) {
			continue
		}
		r := v.Validate(issue, a, target)
		if !r.Valid {
			res.Valid = false
			res.Missing = append(res.Missing, r.Missing...)
		}
	}
	return res
}
