package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"pairwise/internal/domain"
)

const eventColumns = `id,ts,type,group_token,entity_kind,entity_id,actor_id,payload_json`

func scanEvents(rows *sql.Rows) ([]domain.Event, error) {
	defer rows.Close()
	res := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		var group, entityID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &group, &e.EntityKind, &entityID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		e.GroupToken = group.String
		e.EntityID = entityID.String
		e.Payload = payload.String
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEvents returns events newest first, optionally filtered by group and
// type. A positive cursor returns only events older than it.
func (r Repo) LatestEvents(ctx context.Context, limit int, cursor int64, groupToken, evtType string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	clauses := []string{"1=1"}
	var args []any
	if groupToken != "" {
		clauses = append(clauses, "group_token=?")
		args = append(args, groupToken)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	query := fmt.Sprintf(`SELECT %s FROM events WHERE %s ORDER BY id DESC LIMIT ?`, eventColumns, strings.Join(clauses, " AND "))
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

// EventsAfter returns events with id greater than cursor, oldest first.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64, groupToken string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"id>?"}
	args := []any{cursor}
	if groupToken != "" {
		clauses = append(clauses, "group_token=?")
		args = append(args, groupToken)
	}
	query := fmt.Sprintf(`SELECT %s FROM events WHERE %s ORDER BY id ASC LIMIT ?`, eventColumns, strings.Join(clauses, " AND "))
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

// LatestEventID returns the most recent event id, optionally for one group.
func (r Repo) LatestEventID(ctx context.Context, groupToken string) (int64, error) {
	query := `SELECT COALESCE(MAX(id),0) FROM events`
	var args []any
	if groupToken != "" {
		query += ` WHERE group_token=?`
		args = append(args, groupToken)
	}
	var id int64
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
