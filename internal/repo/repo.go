package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"pairwise/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r Repo) q(tx *sql.Tx) queryer {
	if tx != nil {
		return tx
	}
	return r.DB
}

const groupColumns = `token,supervisor_id,supervisor_participates,COALESCE(rotation_json,''),round_counter,next_join_order,created_at,ended_at`

func scanGroup(row interface{ Scan(...any) error }) (domain.Group, error) {
	var g domain.Group
	var rotation string
	var ended sql.NullString
	err := row.Scan(&g.Token, &g.SupervisorID, &g.SupervisorParticipates, &rotation, &g.RoundCounter, &g.NextJoinOrder, &g.CreatedAt, &ended)
	if err == sql.ErrNoRows {
		return g, ErrNotFound
	}
	if err != nil {
		return g, err
	}
	if rotation != "" {
		if err := json.Unmarshal([]byte(rotation), &g.Rotation); err != nil {
			return g, fmt.Errorf("decode rotation of %s: %w", g.Token, err)
		}
	}
	if ended.Valid {
		g.EndedAt = &ended.String
	}
	return g, nil
}

func (r Repo) InsertGroupTx(ctx context.Context, tx *sql.Tx, g domain.Group) error {
	rotation, err := encodeRotation(g.Rotation)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO groups(token,supervisor_id,supervisor_participates,rotation_json,round_counter,next_join_order,created_at,ended_at) VALUES (?,?,?,?,?,?,?,?)`,
		g.Token, g.SupervisorID, g.SupervisorParticipates, rotation, g.RoundCounter, g.NextJoinOrder, g.CreatedAt, nullableStringPtr(g.EndedAt))
	return err
}

// UpdateGroupTx writes the mutable group columns.
func (r Repo) UpdateGroupTx(ctx context.Context, tx *sql.Tx, g domain.Group) error {
	rotation, err := encodeRotation(g.Rotation)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE groups SET supervisor_participates=?, rotation_json=?, round_counter=?, next_join_order=?, ended_at=? WHERE token=?`,
		g.SupervisorParticipates, rotation, g.RoundCounter, g.NextJoinOrder, nullableStringPtr(g.EndedAt), g.Token)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetGroup loads a group with its participants and lead counts.
func (r Repo) GetGroup(ctx context.Context, token string) (domain.Group, error) {
	return r.getGroup(ctx, r.DB, token)
}

func (r Repo) GetGroupTx(ctx context.Context, tx *sql.Tx, token string) (domain.Group, error) {
	return r.getGroup(ctx, tx, token)
}

func (r Repo) getGroup(ctx context.Context, q queryer, token string) (domain.Group, error) {
	g, err := scanGroup(q.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM groups WHERE token=?`, token))
	if err != nil {
		return g, err
	}
	g.Participants, err = listParticipants(ctx, q, token)
	return g, err
}

// TokenTaken reports whether any group, open or closed, holds token.
func (r Repo) TokenTaken(ctx context.Context, tx *sql.Tx, token string) (bool, error) {
	var n int
	if err := r.q(tx).QueryRowContext(ctx, `SELECT COUNT(1) FROM groups WHERE token=?`, token).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListGroups returns groups newest first; closed groups only when includeClosed.
func (r Repo) ListGroups(ctx context.Context, includeClosed bool) ([]domain.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups`
	if !includeClosed {
		query += ` WHERE ended_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, token`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		if res[i].Participants, err = listParticipants(ctx, r.DB, res[i].Token); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func encodeRotation(rot []int64) (any, error) {
	if len(rot) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(rot)
	if err != nil {
		return nil, err
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
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
