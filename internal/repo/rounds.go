package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"pairwise/internal/domain"
)

func (r Repo) InsertRoundTx(ctx context.Context, tx *sql.Tx, token string, res domain.RoundResult) error {
	pairs, err := json.Marshal(res.Pairs)
	if err != nil {
		return err
	}
	var contentJSON any
	if len(res.Content) > 0 {
		data, err := json.Marshal(res.Content)
		if err != nil {
			return err
		}
		contentJSON = string(data)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO rounds(group_token,round_number,pairs_json,sitting_out,supervisor_paired,content_json,created_at) VALUES (?,?,?,?,?,?,?)`,
		token, res.RoundNumber, string(pairs), nullableInt64Ptr(res.SittingOut), res.SupervisorPaired, contentJSON, res.CreatedAt)
	return err
}

const roundColumns = `round_number,pairs_json,sitting_out,supervisor_paired,COALESCE(content_json,''),created_at`

func scanRound(row interface{ Scan(...any) error }) (domain.RoundResult, error) {
	var res domain.RoundResult
	var pairs, content string
	var sittingOut sql.NullInt64
	if err := row.Scan(&res.RoundNumber, &pairs, &sittingOut, &res.SupervisorPaired, &content, &res.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return res, ErrNotFound
		}
		return res, err
	}
	if err := json.Unmarshal([]byte(pairs), &res.Pairs); err != nil {
		return res, fmt.Errorf("decode pairs of round %d: %w", res.RoundNumber, err)
	}
	if sittingOut.Valid {
		id := sittingOut.Int64
		res.SittingOut = &id
	}
	if content != "" {
		if err := json.Unmarshal([]byte(content), &res.Content); err != nil {
			return res, fmt.Errorf("decode content of round %d: %w", res.RoundNumber, err)
		}
	}
	return res, nil
}

// ListRounds returns a group's rounds oldest first.
func (r Repo) ListRounds(ctx context.Context, token string) ([]domain.RoundResult, error) {
	return r.listRounds(ctx, r.DB, token)
}

func (r Repo) ListRoundsTx(ctx context.Context, tx *sql.Tx, token string) ([]domain.RoundResult, error) {
	return r.listRounds(ctx, tx, token)
}

func (r Repo) listRounds(ctx context.Context, q queryer, token string) ([]domain.RoundResult, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+roundColumns+` FROM rounds WHERE group_token=? ORDER BY round_number`, token)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.RoundResult{}
	for rows.Next() {
		rr, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rr)
	}
	return res, rows.Err()
}

func (r Repo) LatestRound(ctx context.Context, token string) (domain.RoundResult, error) {
	return scanRound(r.DB.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM rounds WHERE group_token=? ORDER BY round_number DESC LIMIT 1`, token))
}

// TokenCursor returns the persisted allocator cursor, 0 when none was saved.
func (r Repo) TokenCursor(ctx context.Context) (int, error) {
	var cursor int
	err := r.DB.QueryRowContext(ctx, `SELECT cursor FROM token_state WHERE id=1`).Scan(&cursor)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return cursor, err
}

func (r Repo) SaveTokenCursor(ctx context.Context, cursor int) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO token_state(id,cursor) VALUES (1,?) ON CONFLICT(id) DO UPDATE SET cursor=excluded.cursor`, cursor)
	return err
}
