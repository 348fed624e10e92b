package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stageline/internal/analysis"
	"stageline/internal/config"
	"stageline/internal/domain"
	"stageline/internal/events"
	"stageline/internal/repo"
	"stageline/internal/validator"
)

const (
	dateLayout = "2006-01-02"
	tsLayout   = time.RFC3339
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Chain  *validator.Chain
	Now    func() time.Time
	Logger *slog.Logger
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{},
		Config: cfg,
		Chain:  validator.FromConfig(cfg),
		Now:    time.Now,
		Logger: slog.Default(),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e Engine) writer() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

// Move relocates an issue to target after every applicable validator accepts it.
// A rejected move leaves the issue untouched and reports all blocking reasons.
func (e Engine) Move(ctx context.Context, name string, target domain.Stage, actorID string) (domain.Issue, error) {
	if target.Index() < 0 {
		_, err := domain.ParseStage(string(target))
		return domain.Issue{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Issue{}, domain.Persistence("begin move", err)
	}
	defer tx.Rollback()

	issue, err := e.Repo.GetIssueTx(ctx, tx, name)
	if err != nil {
		return domain.Issue{}, notFoundOr(err, "issue %s", name)
	}
	if issue.Stage == target {
		return issue, domain.UsageError{Msg: fmt.Sprintf("issue %s is already in %s", name, target)}
	}
	specs, err := e.Repo.ListSpecsTx(ctx, tx, name)
	if err != nil {
		return domain.Issue{}, domain.Persistence("load specs", err)
	}
	res := e.Chain.Validate(issue, analysis.Analyze(issue, specs), target)
	if !res.Valid {
		e.log().Debug("move rejected", "issue", name, "target", target, "reasons", len(res.Missing))
		return issue, &domain.ValidationError{Subject: "issue " + name, Target: string(target), Reasons: res.Missing}
	}

	from := issue.Stage
	updatedAt := e.now().UTC().Format(tsLayout)
	if err := e.Repo.MoveIssueTx(ctx, tx, name, from, target, updatedAt); err != nil {
		return domain.Issue{}, notFoundOr(err, "issue %s", name)
	}
	if err := e.writer().Append(ctx, tx, "issue.move", "issue", name, actorID, events.EventPayload{"from": from, "to": target}); err != nil {
		return domain.Issue{}, domain.Persistence("append event", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Issue{}, domain.Persistence("commit move", err)
	}
	e.log().Info("issue moved", "issue", name, "from", from, "to", target)
	issue.Stage = target
	issue.UpdatedAt = updatedAt
	return issue, nil
}

// List groups issues by stage in canonical order; a non-empty filter limits the result to that stage.
func (e Engine) List(ctx context.Context, filter domain.Stage) ([]domain.StageGroup, error) {
	stages := domain.Stages()
	if filter != "" {
		st, err := domain.ParseStage(string(filter))
		if err != nil {
			return nil, err
		}
		stages = []domain.Stage{st}
	}
	issues, err := e.Repo.ListIssues(ctx, filter)
	if err != nil {
		return nil, domain.Persistence("list issues", err)
	}
	byStage := map[domain.Stage][]domain.IssueSummary{}
	seen := map[string]bool{}
	for _, i := range issues {
		if seen[i.Name] {
			continue
		}
		seen[i.Name] = true
		byStage[i.Stage] = append(byStage[i.Stage], i.Summary())
	}
	groups := make([]domain.StageGroup, 0, len(stages))
	for _, st := range stages {
		items := byStage[st]
		if items == nil {
			items = []domain.IssueSummary{}
		}
		groups = append(groups, domain.StageGroup{Stage: st, Issues: items})
	}
	return groups, nil
}

// notFoundOr annotates ErrNotFound with the missing entity and classifies anything else as a persistence failure.
func notFoundOr(err error, format string, args ...any) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf(format+": %w", append(args, domain.ErrNotFound)...)
	}
	return domain.Persistence(fmt.Sprintf(format, args...), err)
}
