package engine

import (
	"context"
	"fmt"
	"strings"

	"stageline/internal/domain"
	"stageline/internal/events"
	"stageline/internal/review"
)

// SpecCreateOptions are parameters for adding a spec to an issue.
type SpecCreateOptions struct {
	Issue        string
	Name         string
	Dependencies []string
	Body         string
	ActorID      string
}

// AddSpec creates a pending spec. Dependencies must name existing specs of the same issue.
func (e Engine) AddSpec(ctx context.Context, opts SpecCreateOptions) (domain.Spec, error) {
	if !slugPattern.MatchString(opts.Name) {
		return domain.Spec{}, domain.UsageError{Msg: fmt.Sprintf("invalid spec name %q (lowercase letters, digits and dashes)", opts.Name)}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Spec{}, domain.Persistence("begin add spec", err)
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetIssueTx(ctx, tx, opts.Issue); err != nil {
		return domain.Spec{}, notFoundOr(err, "issue %s", opts.Issue)
	}
	existing, err := e.Repo.ListSpecsTx(ctx, tx, opts.Issue)
	if err != nil {
		return domain.Spec{}, domain.Persistence("load specs", err)
	}
	known := map[string]bool{}
	for _, s := range existing {
		known[s.Name] = true
	}
	if known[opts.Name] {
		return domain.Spec{}, domain.UsageError{Msg: fmt.Sprintf("spec %s/%s already exists", opts.Issue, opts.Name)}
	}
	seen := map[string]bool{}
	var deps []string
	for _, d := range opts.Dependencies {
		d = strings.TrimSpace(d)
		switch {
		case d == "" || seen[d]:
			continue
		case d == opts.Name:
			return domain.Spec{}, domain.UsageError{Msg: fmt.Sprintf("spec %s cannot depend on itself", opts.Name)}
		case !known[d]:
			return domain.Spec{}, domain.UsageError{Msg: fmt.Sprintf("unknown dependency %s for issue %s", d, opts.Issue)}
		}
		seen[d] = true
		deps = append(deps, d)
	}

	now := e.now().UTC()
	spec := domain.Spec{
		Issue:        opts.Issue,
		Name:         opts.Name,
		Status:       domain.SpecPending,
		Created:      now.Format(dateLayout),
		Dependencies: deps,
		Body:         opts.Body,
		UpdatedAt:    now.Format(tsLayout),
	}
	if err := e.Repo.InsertSpec(ctx, tx, spec); err != nil {
		return domain.Spec{}, domain.Persistence("insert spec", err)
	}
	if err := e.writer().Append(ctx, tx, "spec.create", "spec", specID(spec), opts.ActorID, events.EventPayload{"dependencies": deps}); err != nil {
		return domain.Spec{}, domain.Persistence("append event", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Spec{}, domain.Persistence("commit add spec", err)
	}
	return e.GetSpec(ctx, opts.Issue, opts.Name)
}

func (e Engine) GetSpec(ctx context.Context, issue, name string) (domain.Spec, error) {
	s, err := e.Repo.GetSpec(ctx, issue, name)
	if err != nil {
		return domain.Spec{}, notFoundOr(err, "spec %s/%s", issue, name)
	}
	return s, nil
}

// ListSpecs returns the specs of an existing issue.
func (e Engine) ListSpecs(ctx context.Context, issue string) ([]domain.Spec, error) {
	if _, err := e.GetIssue(ctx, issue); err != nil {
		return nil, err
	}
	specs, err := e.Repo.ListSpecs(ctx, issue)
	if err != nil {
		return nil, domain.Persistence("list specs", err)
	}
	return specs, nil
}

// TransitionSpec moves a spec to target when the status graph and review preconditions allow it.
func (e Engine) TransitionSpec(ctx context.Context, issue, name string, target domain.SpecStatus, actorID string) (domain.Spec, error) {
	if _, err := domain.ParseSpecStatus(string(target)); err != nil {
		return domain.Spec{}, err
	}
	return e.mutateSpec(ctx, issue, name, actorID, func(s domain.Spec, date, ts string) (domain.Spec, string, events.EventPayload, error) {
		if err := CheckSpecTransition(s, target); err != nil {
			return s, "", nil, err
		}
		next := applySpecTransition(s, target, date, ts)
		return next, "spec.status", events.EventPayload{"from": s.Status, "to": target, "review_round": next.ReviewRound}, nil
	})
}

// RecordReview writes the review section of a spec that is awaiting review.
func (e Engine) RecordReview(ctx context.Context, issue, name string, verdict review.Verdict, notes, actorID string) (domain.Spec, error) {
	if _, err := review.ParseVerdict(string(verdict)); err != nil {
		return domain.Spec{}, err
	}
	return e.mutateSpec(ctx, issue, name, actorID, func(s domain.Spec, _, ts string) (domain.Spec, string, events.EventPayload, error) {
		if !NeedsReview(s.Status) {
			return s, "", nil, &domain.ValidationError{
				Subject: fmt.Sprintf("spec %s/%s", s.Issue, s.Name),
				Target:  "review",
				Reasons: []string{fmt.Sprintf("reviews can only be recorded while in-review (status is %s)", s.Status)},
			}
		}
		s.Body = review.Replace(s.Body, review.Render(verdict, s.ReviewRound, notes))
		s.UpdatedAt = ts
		return s, "spec.review", events.EventPayload{"verdict": verdict, "round": s.ReviewRound}, nil
	})
}

// UpdateSpecBody replaces a spec body. The review section may be edited this way too,
// so the verdict must still agree with the current status.
func (e Engine) UpdateSpecBody(ctx context.Context, issue, name, body, actorID string) (domain.Spec, error) {
	return e.mutateSpec(ctx, issue, name, actorID, func(s domain.Spec, _, ts string) (domain.Spec, string, events.EventPayload, error) {
		sec := review.Parse(body)
		for verdict, statuses := range verdictStatuses {
			if sec.Is(verdict) && !containsStatus(statuses, s.Status) {
				return s, "", nil, &domain.ValidationError{
					Subject: fmt.Sprintf("spec %s/%s", s.Issue, s.Name),
					Target:  string(s.Status),
					Reasons: []string{fmt.Sprintf("a %s review cannot be attached while the spec is %s", verdict, s.Status)},
				}
			}
		}
		s.Body = body
		s.UpdatedAt = ts
		return s, "spec.update", events.EventPayload{"body_changed": true}, nil
	})
}

type specMutation func(s domain.Spec, date, ts string) (domain.Spec, string, events.EventPayload, error)

func (e Engine) mutateSpec(ctx context.Context, issue, name, actorID string, fn specMutation) (domain.Spec, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Spec{}, domain.Persistence("begin spec update", err)
	}
	defer tx.Rollback()

	s, err := e.Repo.GetSpecTx(ctx, tx, issue, name)
	if err != nil {
		return domain.Spec{}, notFoundOr(err, "spec %s/%s", issue, name)
	}
	now := e.now().UTC()
	next, evtType, payload, err := fn(s, now.Format(dateLayout), now.Format(tsLayout))
	if err != nil {
		return s, err
	}
	if err := e.Repo.UpdateSpecTx(ctx, tx, next); err != nil {
		return domain.Spec{}, notFoundOr(err, "spec %s/%s", issue, name)
	}
	if err := e.writer().Append(ctx, tx, evtType, "spec", specID(next), actorID, payload); err != nil {
		return domain.Spec{}, domain.Persistence("append event", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Spec{}, domain.Persistence("commit spec update", err)
	}
	e.log().Info("spec updated", "spec", specID(next), "event", evtType, "status", next.Status)
	return next, nil
}

func specID(s domain.Spec) string {
	return s.Issue + "/" + s.Name
}

func containsStatus(statuses []domain.SpecStatus, s domain.SpecStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}
