package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"stageline/internal/domain"
)

const specColumns = `issue_name,name,status,created,completed,dependencies_json,review_round,body,position,updated_at`

func scanSpec(row rowScanner) (domain.Spec, error) {
	var (
		s         domain.Spec
		completed sql.NullString
		deps      sql.NullString
	)
	err := row.Scan(&s.Issue, &s.Name, &s.Status, &s.Created, &completed, &deps, &s.ReviewRound, &s.Body, &s.Position, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	if completed.Valid {
		v := completed.String
		s.Completed = &v
	}
	if deps.Valid && deps.String != "" {
		if err := json.Unmarshal([]byte(deps.String), &s.Dependencies); err != nil {
			return s, fmt.Errorf("corrupt dependencies for spec %s/%s: %w", s.Issue, s.Name, err)
		}
	}
	return s, nil
}

func (r Repo) InsertSpec(ctx context.Context, tx *sql.Tx, s domain.Spec) error {
	deps, err := encodeDeps(s.Dependencies)
	if err != nil {
		return err
	}
	var pos int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position),0)+1 FROM specs WHERE issue_name=?`, s.Issue).Scan(&pos); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO specs(`+specColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		s.Issue, s.Name, s.Status, s.Created, nullableStringPtr(s.Completed), deps, s.ReviewRound, s.Body, pos, s.UpdatedAt)
	return err
}

func (r Repo) GetSpec(ctx context.Context, issue, name string) (domain.Spec, error) {
	return getSpec(ctx, r.DB, issue, name)
}

func (r Repo) GetSpecTx(ctx context.Context, tx *sql.Tx, issue, name string) (domain.Spec, error) {
	return getSpec(ctx, tx, issue, name)
}

func getSpec(ctx context.Context, q querier, issue, name string) (domain.Spec, error) {
	return scanSpec(q.QueryRowContext(ctx, `SELECT `+specColumns+` FROM specs WHERE issue_name=? AND name=?`, issue, name))
}

// ListSpecs returns the specs of an issue in creation order.
func (r Repo) ListSpecs(ctx context.Context, issue string) ([]domain.Spec, error) {
	return listSpecs(ctx, r.DB, issue)
}

func (r Repo) ListSpecsTx(ctx context.Context, tx *sql.Tx, issue string) ([]domain.Spec, error) {
	return listSpecs(ctx, tx, issue)
}

func listSpecs(ctx context.Context, q querier, issue string) ([]domain.Spec, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+specColumns+` FROM specs WHERE issue_name=? ORDER BY position ASC`, issue)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Spec
	for rows.Next() {
		s, err := scanSpec(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// UpdateSpecTx writes the mutable spec fields back in one statement.
func (r Repo) UpdateSpecTx(ctx context.Context, tx *sql.Tx, s domain.Spec) error {
	res, err := tx.ExecContext(ctx, `UPDATE specs SET status=?, completed=?, review_round=?, body=?, updated_at=? WHERE issue_name=? AND name=?`,
		s.Status, nullableStringPtr(s.Completed), s.ReviewRound, s.Body, s.UpdatedAt, s.Issue, s.Name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeDeps(deps []string) (any, error) {
	if len(deps) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(deps)
	if err != nil {
		return nil, fmt.Errorf("marshal dependencies: %w", err)
	}
	return string(data), nil
}
