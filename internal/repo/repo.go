package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"stageline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = domain.ErrNotFound

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const issueColumns = `name,stage,type,title,created,owner,remote_id,metadata_json,body,stage_seq,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (domain.Issue, error) {
	var (
		i        domain.Issue
		owner    sql.NullString
		remoteID sql.NullString
		meta     sql.NullString
	)
	err := row.Scan(&i.Name, &i.Stage, &i.Type, &i.Title, &i.Created, &owner, &remoteID, &meta, &i.Body, &i.StageSeq, &i.UpdatedAt)
	if err == sql.ErrNoRows {
		return i, ErrNotFound
	}
	if err != nil {
		return i, err
	}
	if owner.Valid {
		i.Owner = owner.String
	}
	if remoteID.Valid {
		i.RemoteID = remoteID.String
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &i.Extra); err != nil {
			return i, fmt.Errorf("corrupt metadata for issue %s: %w", i.Name, err)
		}
	}
	return i, nil
}

// InsertIssue stores a new issue, assigning it the next stage sequence number.
func (r Repo) InsertIssue(ctx context.Context, tx *sql.Tx, i domain.Issue) error {
	meta, err := encodeExtra(i.Extra)
	if err != nil {
		return err
	}
	seq, err := nextStageSeq(ctx, tx)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO issues(`+issueColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		i.Name, i.Stage, i.Type, i.Title, i.Created, nullable(i.Owner), nullable(i.RemoteID), meta, i.Body, seq, i.UpdatedAt)
	return err
}

func (r Repo) GetIssue(ctx context.Context, name string) (domain.Issue, error) {
	return getIssue(ctx, r.DB, name)
}

func (r Repo) GetIssueTx(ctx context.Context, tx *sql.Tx, name string) (domain.Issue, error) {
	return getIssue(ctx, tx, name)
}

func getIssue(ctx context.Context, q querier, name string) (domain.Issue, error) {
	return scanIssue(q.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE name=?`, name))
}

// IssueExists reports whether an issue with the given name is stored.
func (r Repo) IssueExists(ctx context.Context, tx *sql.Tx, name string) (bool, error) {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM issues WHERE name=?`, name).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListIssues returns issues in discovery order, optionally restricted to one stage.
func (r Repo) ListIssues(ctx context.Context, stage domain.Stage) ([]domain.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues`
	var args []any
	if stage != "" {
		query += ` WHERE stage=?`
		args = append(args, stage)
	}
	query += ` ORDER BY stage_seq ASC, name ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Issue
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, i)
	}
	return res, rows.Err()
}

// MoveIssueTx relocates an issue from one stage to another. The update only applies
// while the issue is still in the expected stage, so a concurrent move surfaces as ErrNotFound.
func (r Repo) MoveIssueTx(ctx context.Context, tx *sql.Tx, name string, from, to domain.Stage, updatedAt string) error {
	seq, err := nextStageSeq(ctx, tx)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE issues SET stage=?, stage_seq=?, updated_at=? WHERE name=? AND stage=?`,
		to, seq, updatedAt, name, from)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// IssueUpdate carries optional field changes; nil pointers are left untouched.
type IssueUpdate struct {
	Title    *string
	Owner    *string
	Body     *string
	RemoteID *string
}

func (r Repo) UpdateIssueTx(ctx context.Context, tx *sql.Tx, name string, u IssueUpdate, updatedAt string) error {
	var (
		fields []string
		args   []any
	)
	if u.Title != nil {
		fields = append(fields, "title=?")
		args = append(args, *u.Title)
	}
	if u.Owner != nil {
		fields = append(fields, "owner=?")
		args = append(args, nullable(*u.Owner))
	}
	if u.Body != nil {
		fields = append(fields, "body=?")
		args = append(args, *u.Body)
	}
	if u.RemoteID != nil {
		fields = append(fields, "remote_id=?")
		args = append(args, nullable(*u.RemoteID))
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, name)
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE issues SET %s WHERE name=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nextStageSeq(ctx context.Context, tx *sql.Tx) (int64, error) {
	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(stage_seq),0)+1 FROM issues`).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func encodeExtra(extra map[string]string) (any, error) {
	if len(extra) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return string(data), nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
