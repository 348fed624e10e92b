package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"stageline/internal/domain"
	"stageline/internal/events"
	"stageline/internal/frontmatter"
	"stageline/internal/repo"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// headerOrder is the key order of exported issue documents.
var headerOrder = []string{"name", "stage", "type", "title", "created", "owner", "remote_id"}

// IssueCreateOptions are parameters for creating an issue.
type IssueCreateOptions struct {
	Name    string
	Type    string
	Title   string
	Owner   string
	Body    string
	Created string
	Extra   map[string]string
	ActorID string
}

// CreateIssue stores a new issue in the first stage.
func (e Engine) CreateIssue(ctx context.Context, opts IssueCreateOptions) (domain.Issue, error) {
	if !slugPattern.MatchString(opts.Name) {
		return domain.Issue{}, domain.UsageError{Msg: fmt.Sprintf("invalid issue name %q (lowercase letters, digits and dashes)", opts.Name)}
	}
	if opts.Type == "" {
		opts.Type = string(domain.TypeFeature)
	}
	typ, err := domain.ParseIssueType(opts.Type)
	if err != nil {
		return domain.Issue{}, err
	}
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return domain.Issue{}, domain.UsageError{Msg: "title is required"}
	}
	now := e.now().UTC()
	issue := domain.Issue{
		Name:      opts.Name,
		Stage:     domain.Stages()[0],
		Type:      typ,
		Title:     title,
		Created:   opts.Created,
		Owner:     strings.TrimSpace(opts.Owner),
		Extra:     opts.Extra,
		Body:      opts.Body,
		UpdatedAt: now.Format(tsLayout),
	}
	if issue.Created == "" {
		issue.Created = now.Format(dateLayout)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Issue{}, domain.Persistence("begin create", err)
	}
	defer tx.Rollback()
	exists, err := e.Repo.IssueExists(ctx, tx, issue.Name)
	if err != nil {
		return domain.Issue{}, domain.Persistence("lookup issue", err)
	}
	if exists {
		return domain.Issue{}, domain.UsageError{Msg: fmt.Sprintf("issue %s already exists", issue.Name)}
	}
	if err := e.Repo.InsertIssue(ctx, tx, issue); err != nil {
		return domain.Issue{}, domain.Persistence("insert issue", err)
	}
	if err := e.writer().Append(ctx, tx, "issue.create", "issue", issue.Name, opts.ActorID, events.EventPayload{"type": issue.Type, "stage": issue.Stage}); err != nil {
		return domain.Issue{}, domain.Persistence("append event", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Issue{}, domain.Persistence("commit create", err)
	}
	e.log().Info("issue created", "issue", issue.Name, "type", issue.Type)
	return e.GetIssue(ctx, issue.Name)
}

// ImportIssue creates an issue from a document with a YAML header. Unknown header
// keys are kept as extra metadata; stage is ignored since new issues start in the first stage.
func (e Engine) ImportIssue(ctx context.Context, doc []byte, actorID string) (domain.Issue, error) {
	meta, body, err := frontmatter.Parse(doc)
	if err != nil {
		return domain.Issue{}, domain.UsageError{Msg: err.Error()}
	}
	opts := IssueCreateOptions{
		Name:    meta["name"],
		Type:    meta["type"],
		Title:   meta["title"],
		Owner:   meta["owner"],
		Created: meta["created"],
		Body:    body,
		ActorID: actorID,
	}
	for k, v := range meta {
		switch k {
		case "name", "type", "title", "owner", "created", "stage", "remote_id":
			continue
		}
		if opts.Extra == nil {
			opts.Extra = map[string]string{}
		}
		opts.Extra[k] = v
	}
	issue, err := e.CreateIssue(ctx, opts)
	if err != nil {
		return issue, err
	}
	if remoteID := meta["remote_id"]; remoteID != "" {
		return e.UpdateIssue(ctx, IssueUpdateOptions{Name: issue.Name, RemoteID: &remoteID, ActorID: actorID})
	}
	return issue, nil
}

// ExportIssue renders an issue as a document with a YAML header.
func (e Engine) ExportIssue(ctx context.Context, name string) ([]byte, error) {
	issue, err := e.GetIssue(ctx, name)
	if err != nil {
		return nil, err
	}
	return frontmatter.Render(issue.Metadata(), headerOrder, issue.Body)
}

func (e Engine) GetIssue(ctx context.Context, name string) (domain.Issue, error) {
	issue, err := e.Repo.GetIssue(ctx, name)
	if err != nil {
		return domain.Issue{}, notFoundOr(err, "issue %s", name)
	}
	return issue, nil
}

// IssueUpdateOptions holds optional changes; nil fields are left as they are.
type IssueUpdateOptions struct {
	Name     string
	Title    *string
	Owner    *string
	Body     *string
	RemoteID *string
	ActorID  string
}

// UpdateIssue edits issue fields. Stage is not editable here; use Move.
func (e Engine) UpdateIssue(ctx context.Context, opts IssueUpdateOptions) (domain.Issue, error) {
	if opts.Title != nil && strings.TrimSpace(*opts.Title) == "" {
		return domain.Issue{}, domain.UsageError{Msg: "title cannot be empty"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Issue{}, domain.Persistence("begin update", err)
	}
	defer tx.Rollback()
	u := repo.IssueUpdate{Title: opts.Title, Owner: opts.Owner, Body: opts.Body, RemoteID: opts.RemoteID}
	if err := e.Repo.UpdateIssueTx(ctx, tx, opts.Name, u, e.now().UTC().Format(tsLayout)); err != nil {
		return domain.Issue{}, notFoundOr(err, "issue %s", opts.Name)
	}
	payload := events.EventPayload{}
	if opts.Title != nil {
		payload["title"] = *opts.Title
	}
	if opts.Owner != nil {
		payload["owner"] = *opts.Owner
	}
	if opts.Body != nil {
		payload["body_changed"] = true
	}
	if opts.RemoteID != nil {
		payload["remote_id"] = *opts.RemoteID
	}
	if err := e.writer().Append(ctx, tx, "issue.update", "issue", opts.Name, opts.ActorID, payload); err != nil {
		return domain.Issue{}, domain.Persistence("append event", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Issue{}, domain.Persistence("commit update", err)
	}
	return e.GetIssue(ctx, opts.Name)
}

// RemoteResolver maps an issue slug to its identifier in an external tracker.
type RemoteResolver interface {
	Resolve(ctx context.Context, slug string) (string, error)
}

// LinkRemote looks the issue up in the external tracker and records its identifier.
func (e Engine) LinkRemote(ctx context.Context, name string, resolver RemoteResolver, actorID string) (domain.Issue, error) {
	if _, err := e.GetIssue(ctx, name); err != nil {
		return domain.Issue{}, err
	}
	id, err := resolver.Resolve(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Issue{}, fmt.Errorf("remote issue %s: %w", name, domain.ErrNotFound)
		}
		return domain.Issue{}, fmt.Errorf("resolve remote id for %s: %w", name, err)
	}
	e.log().Debug("remote id resolved", "issue", name, "remote_id", id)
	return e.UpdateIssue(ctx, IssueUpdateOptions{Name: name, RemoteID: &id, ActorID: actorID})
}
