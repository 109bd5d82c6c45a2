package repo

import (
	"context"
	"database/sql"

	"pairwise/internal/domain"
)

// InsertContentTx stores an item and returns it with its assigned id.
func (r Repo) InsertContentTx(ctx context.Context, tx *sql.Tx, item domain.ContentItem, createdAt string) (domain.ContentItem, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO content_items(text,created_at) VALUES (?,?)`, item.Text, createdAt)
	if err != nil {
		return item, err
	}
	if item.ID, err = res.LastInsertId(); err != nil {
		return item, err
	}
	for _, tag := range item.Tags {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO content_tags(item_id,tag) VALUES (?,?)`, item.ID, tag); err != nil {
			return item, err
		}
	}
	return item, nil
}

// ListContent returns every item in id order.
func (r Repo) ListContent(ctx context.Context) ([]domain.ContentItem, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT i.id, i.text, COALESCE(t.tag,'') FROM content_items i LEFT JOIN content_tags t ON t.item_id=i.id ORDER BY i.id, t.tag`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ContentItem
	for rows.Next() {
		var id int64
		var text, tag string
		if err := rows.Scan(&id, &text, &tag); err != nil {
			return nil, err
		}
		if n := len(res); n == 0 || res[n-1].ID != id {
			res = append(res, domain.ContentItem{ID: id, Text: text, Tags: []string{}})
		}
		if tag != "" {
			last := &res[len(res)-1]
			last.Tags = append(last.Tags, tag)
		}
	}
	return res, rows.Err()
}

func (r Repo) CountContent(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(1) FROM content_items`).Scan(&n)
	return n, err
}
