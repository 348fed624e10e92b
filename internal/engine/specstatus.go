package engine

import (
	"fmt"
	"slices"
	"strings"

	"stageline/internal/domain"
	"stageline/internal/review"
)

var specTransitions = map[domain.SpecStatus][]domain.SpecStatus{
	domain.SpecPending:    {domain.SpecInProgress},
	domain.SpecInProgress: {domain.SpecPending, domain.SpecInReview},
	domain.SpecInReview:   {domain.SpecInProgress, domain.SpecCompleted},
	// Re-review of a completed spec carries no verdict precondition.
	domain.SpecCompleted: {domain.SpecInReview},
}

// verdictStatuses lists the statuses a spec may hold while its review carries a verdict.
var verdictStatuses = map[review.Verdict][]domain.SpecStatus{
	review.Approved:  {domain.SpecInReview, domain.SpecCompleted},
	review.NeedsWork: {domain.SpecInReview, domain.SpecInProgress},
}

// AllowedSpecTransitions returns the statuses reachable from s in one step.
func AllowedSpecTransitions(s domain.SpecStatus) []domain.SpecStatus {
	return slices.Clone(specTransitions[s])
}

// IsTerminalStatus reports whether s satisfies the definition of done.
func IsTerminalStatus(s domain.SpecStatus) bool {
	return s == domain.SpecCompleted
}

// NeedsReview reports whether a spec in status s awaits a review verdict.
func NeedsReview(s domain.SpecStatus) bool {
	return s == domain.SpecInReview
}

// CheckSpecTransition returns a ValidationError when spec may not move to target.
func CheckSpecTransition(spec domain.Spec, target domain.SpecStatus) error {
	subject := fmt.Sprintf("spec %s/%s", spec.Issue, spec.Name)
	reject := func(reasons ...string) error {
		return &domain.ValidationError{Subject: subject, Target: string(target), Reasons: reasons}
	}
	allowed := specTransitions[spec.Status]
	if !slices.Contains(allowed, target) {
		return reject(fmt.Sprintf("transition %s -> %s is not allowed; allowed from %s: %s", spec.Status, target, spec.Status, joinStatuses(allowed)))
	}

	sec := review.Parse(spec.Body)
	switch {
	case spec.Status == domain.SpecInReview && target == domain.SpecCompleted:
		if !sec.Present {
			return reject("a review section with verdict APPROVED is required to complete the spec")
		}
		if !sec.Is(review.Approved) {
			return reject(fmt.Sprintf("review verdict is %q; completing requires APPROVED", sec.Verdict))
		}
	case spec.Status == domain.SpecInReview && target == domain.SpecInProgress:
		if !sec.Present {
			return reject("a review section with verdict NEEDS_WORK is required to return the spec to in-progress")
		}
		if !sec.Is(review.NeedsWork) {
			return reject(fmt.Sprintf("review verdict is %q; returning to in-progress requires NEEDS_WORK", sec.Verdict))
		}
	}

	for verdict, statuses := range verdictStatuses {
		if sec.Is(verdict) && !slices.Contains(statuses, target) {
			return reject(fmt.Sprintf("a spec with a %s review can only be %s", verdict, joinStatuses(statuses)))
		}
	}
	return nil
}

// applySpecTransition returns spec moved to target with the derived fields updated.
func applySpecTransition(spec domain.Spec, target domain.SpecStatus, date, ts string) domain.Spec {
	if target == domain.SpecInReview && spec.Status != domain.SpecInReview {
		spec.ReviewRound++
	}
	spec.Status = target
	if target == domain.SpecCompleted {
		d := date
		spec.Completed = &d
	} else {
		spec.Completed = nil
	}
	spec.UpdatedAt = ts
	return spec
}

func joinStatuses(statuses []domain.SpecStatus) string {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
