package repo

import (
	"context"
	"database/sql"

	"trackline/internal/domain"
)

func (r Repo) InsertComment(ctx context.Context, tx *sql.Tx, c domain.Comment) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO comments(task_id,author_id,body,created_at) VALUES (?,?,?,?)`,
		c.TaskID, c.AuthorID, c.Body, c.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListComments returns a task's comments ordered oldest first. Insertion order
// breaks timestamp ties so the latest decision stays deterministic.
func (r Repo) ListComments(ctx context.Context, taskID string) ([]domain.Comment, error) {
	return listComments(ctx, r.DB.QueryContext, taskID)
}

func (r Repo) ListCommentsTx(ctx context.Context, tx *sql.Tx, taskID string) ([]domain.Comment, error) {
	return listComments(ctx, tx.QueryContext, taskID)
}

func listComments(ctx context.Context, query queryFunc, taskID string) ([]domain.Comment, error) {
	rows, err := query(ctx, `SELECT id,task_id,author_id,body,created_at FROM comments WHERE task_id=? ORDER BY created_at ASC, id ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
