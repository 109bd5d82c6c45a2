package repo

import (
	"context"
	"database/sql"

	"pairwise/internal/domain"
)

func listParticipants(ctx context.Context, q queryer, token string) ([]domain.Participant, error) {
	rows, err := q.QueryContext(ctx, `SELECT id,group_token,name,join_order,round_count,joined_at FROM participants WHERE group_token=? ORDER BY join_order, id`, token)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Participant{}
	index := map[int64]int{}
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ID, &p.GroupToken, &p.Name, &p.JoinOrder, &p.RoundCount, &p.JoinedAt); err != nil {
			return nil, err
		}
		index[p.ID] = len(res)
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	counts, err := q.QueryContext(ctx, `SELECT leader_id,follower_id,count FROM lead_counts WHERE group_token=?`, token)
	if err != nil {
		return nil, err
	}
	defer counts.Close()
	for counts.Next() {
		var leader, follower int64
		var n int
		if err := counts.Scan(&leader, &follower, &n); err != nil {
			return nil, err
		}
		i, ok := index[leader]
		if !ok {
			continue
		}
		if res[i].LedCounts == nil {
			res[i].LedCounts = map[int64]int{}
		}
		res[i].LedCounts[follower] = n
	}
	return res, counts.Err()
}

func (r Repo) ListParticipants(ctx context.Context, token string) ([]domain.Participant, error) {
	return listParticipants(ctx, r.DB, token)
}

func (r Repo) InsertParticipantTx(ctx context.Context, tx *sql.Tx, p domain.Participant) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO participants(group_token,id,name,join_order,round_count,joined_at) VALUES (?,?,?,?,?,?)`,
		p.GroupToken, p.ID, p.Name, p.JoinOrder, p.RoundCount, p.JoinedAt)
	return err
}

// UpdateParticipantTx writes the round count and replaces the participant's
// outgoing lead counts.
func (r Repo) UpdateParticipantTx(ctx context.Context, tx *sql.Tx, p domain.Participant) error {
	res, err := tx.ExecContext(ctx, `UPDATE participants SET round_count=? WHERE group_token=? AND id=?`, p.RoundCount, p.GroupToken, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	for follower, n := range p.LedCounts {
		if _, err := tx.ExecContext(ctx, `INSERT INTO lead_counts(group_token,leader_id,follower_id,count) VALUES (?,?,?,?)
ON CONFLICT(group_token,leader_id,follower_id) DO UPDATE SET count=excluded.count`, p.GroupToken, p.ID, follower, n); err != nil {
			return err
		}
	}
	return nil
}

// DeleteParticipantTx removes a participant and every lead count naming them.
func (r Repo) DeleteParticipantTx(ctx context.Context, tx *sql.Tx, token string, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM lead_counts WHERE group_token=? AND (leader_id=? OR follower_id=?)`, token, id, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM participants WHERE group_token=? AND id=?`, token, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
