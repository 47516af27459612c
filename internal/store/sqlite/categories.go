package sqlite

import (
	"context"

	"github.com/mangashelf/mangashelf/internal/domain"
)

// CreateCategory inserts c and sets its ID. Labels are unique.
func (q *Queries) CreateCategory(ctx context.Context, c *domain.Category) error {
	res, err := q.q.ExecContext(ctx, `INSERT INTO categories (label) VALUES (?)`, c.Label)
	if err != nil {
		return mapError(err, "category")
	}
	c.ID, err = res.LastInsertId()
	return mapError(err, "category")
}

// GetCategory returns the category with the given id.
func (q *Queries) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	var c domain.Category
	err := q.q.QueryRowContext(ctx, `SELECT id, label FROM categories WHERE id = ?`, id).Scan(&c.ID, &c.Label)
	if err != nil {
		return nil, mapError(err, "category")
	}
	return &c, nil
}

// ListCategories returns every category ordered by label.
func (q *Queries) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return q.queryCategories(ctx, `SELECT id, label FROM categories ORDER BY label COLLATE NOCASE ASC`)
}

// WorkCategories returns the categories a work belongs to.
func (q *Queries) WorkCategories(ctx context.Context, workID int64) ([]*domain.Category, error) {
	return q.queryCategories(ctx, `
		SELECT c.id, c.label FROM categories c
		JOIN categories_works cw ON cw.category_id = c.id
		WHERE cw.work_id = ?
		ORDER BY c.label COLLATE NOCASE ASC`, workID)
}

func (q *Queries) queryCategories(ctx context.Context, query string, args ...any) ([]*domain.Category, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "categories")
	}
	defer rows.Close()

	categories := []*domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Label); err != nil {
			return nil, mapError(err, "categories")
		}
		categories = append(categories, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "categories")
	}
	return categories, nil
}

// RenameCategory changes a category label.
func (q *Queries) RenameCategory(ctx context.Context, id int64, label string) error {
	res, err := q.q.ExecContext(ctx, `UPDATE categories SET label = ? WHERE id = ?`, label, id)
	if err != nil {
		return mapError(err, "category")
	}
	return requireAffected(res, "category")
}

// DeleteCategory removes a category and its work links.
func (q *Queries) DeleteCategory(ctx context.Context, id int64) error {
	res, err := q.q.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return mapError(err, "category")
	}
	return requireAffected(res, "category")
}

// AddWorksToCategory links works to a category; existing links are kept.
func (q *Queries) AddWorksToCategory(ctx context.Context, categoryID int64, workIDs []int64) error {
	stmt, err := q.q.PrepareContext(ctx, `INSERT OR IGNORE INTO categories_works (category_id, work_id) VALUES (?, ?)`)
	if err != nil {
		return mapError(err, "category link")
	}
	defer stmt.Close()

	for _, id := range workIDs {
		if _, err := stmt.ExecContext(ctx, categoryID, id); err != nil {
			return mapError(err, "category link")
		}
	}
	return nil
}

// RemoveWorksFromCategory unlinks works from a category.
func (q *Queries) RemoveWorksFromCategory(ctx context.Context, categoryID int64, workIDs []int64) error {
	matches := make([]Row, len(workIDs))
	for i, id := range workIDs {
		matches[i] = Row{"category_id": categoryID, "work_id": id}
	}
	_, err := q.DeleteRowsWhere(ctx, "categories_works", matches)
	return err
}

// ListCategoryWorks returns the works in a category, most recently read first.
func (q *Queries) ListCategoryWorks(ctx context.Context, categoryID int64) ([]*domain.Work, error) {
	return q.queryWorks(ctx, `
		SELECT `+prefixed("w.", workColumns)+` FROM works w
		JOIN categories_works cw ON cw.work_id = w.id
		WHERE cw.category_id = ?
		ORDER BY w.last_read DESC, w.id ASC`, categoryID)
}
