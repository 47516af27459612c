package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mangashelf/mangashelf/internal/domain"
)

// workColumns must match the scan order in scanWork.
const workColumns = `id, slug, url, provider_id, name, authors, scanlators, genres, synopsis, status,
	background_color, borders_crop, reading_mode, scaling, sort_order, last_read, last_update`

func scanWork(scanner interface{ Scan(dest ...any) error }) (*domain.Work, error) {
	var (
		w                                         domain.Work
		url, bg, mode, scaling, order, lastUpdate sql.NullString
		authors, scanlators, genres               sql.NullString
		status, lastRead                          string
		bordersCrop                               sql.NullInt64
	)
	err := scanner.Scan(
		&w.ID, &w.Slug, &url, &w.ProviderID, &w.Name, &authors, &scanlators, &genres, &w.Synopsis, &status,
		&bg, &bordersCrop, &mode, &scaling, &order, &lastRead, &lastUpdate,
	)
	if err != nil {
		return nil, err
	}

	w.URL = url.String
	w.Status = domain.Status(status)
	w.BackgroundColor = bg.String
	w.ReadingMode = domain.ReadingMode(mode.String)
	w.Scaling = domain.Scaling(scaling.String)
	w.SortOrder = domain.SortOrder(order.String)
	if bordersCrop.Valid {
		v := bordersCrop.Int64 != 0
		w.BordersCrop = &v
	}

	if w.Authors, err = decodeList(authors); err != nil {
		return nil, err
	}
	if w.Scanlators, err = decodeList(scanlators); err != nil {
		return nil, err
	}
	if w.Genres, err = decodeList(genres); err != nil {
		return nil, err
	}
	if w.LastRead, err = parseTime(lastRead); err != nil {
		return nil, fmt.Errorf("parse last_read: %w", err)
	}
	if w.LastUpdate, err = parseNullableTime(lastUpdate); err != nil {
		return nil, fmt.Errorf("parse last_update: %w", err)
	}
	return &w, nil
}

func workArgs(w *domain.Work) ([]any, error) {
	authors, err := jsonList(w.Authors)
	if err != nil {
		return nil, err
	}
	scanlators, err := jsonList(w.Scanlators)
	if err != nil {
		return nil, err
	}
	genres, err := jsonList(w.Genres)
	if err != nil {
		return nil, err
	}
	var bordersCrop sql.NullInt64
	if w.BordersCrop != nil {
		bordersCrop = sql.NullInt64{Int64: int64(boolInt(*w.BordersCrop)), Valid: true}
	}
	return []any{
		w.Slug, nullString(w.URL), w.ProviderID, w.Name, authors, scanlators, genres, w.Synopsis, string(w.Status),
		nullString(w.BackgroundColor), bordersCrop, nullString(string(w.ReadingMode)), nullString(string(w.Scaling)),
		nullString(string(w.SortOrder)), formatTime(w.LastRead), nullTimeString(w.LastUpdate),
	}, nil
}

// CreateWork inserts w and sets its ID.
func (q *Queries) CreateWork(ctx context.Context, w *domain.Work) error {
	args, err := workArgs(w)
	if err != nil {
		return err
	}
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO works (slug, url, provider_id, name, authors, scanlators, genres, synopsis, status,
			background_color, borders_crop, reading_mode, scaling, sort_order, last_read, last_update)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return mapError(err, "work")
	}
	w.ID, err = res.LastInsertId()
	return mapError(err, "work")
}

// GetWork returns the work with the given id.
func (q *Queries) GetWork(ctx context.Context, id int64) (*domain.Work, error) {
	w, err := scanWork(q.q.QueryRowContext(ctx, `SELECT `+workColumns+` FROM works WHERE id = ?`, id))
	if err != nil {
		return nil, mapError(err, "work")
	}
	return w, nil
}

// GetWorkBySlug looks a work up by its natural key.
func (q *Queries) GetWorkBySlug(ctx context.Context, providerID, slug string) (*domain.Work, error) {
	w, err := scanWork(q.q.QueryRowContext(ctx,
		`SELECT `+workColumns+` FROM works WHERE provider_id = ? AND slug = ?`, providerID, slug))
	if err != nil {
		return nil, mapError(err, "work")
	}
	return w, nil
}

// ListWorks returns every work, most recently read first.
func (q *Queries) ListWorks(ctx context.Context) ([]*domain.Work, error) {
	return q.queryWorks(ctx, `SELECT `+workColumns+` FROM works ORDER BY last_read DESC, id ASC`)
}

// ListWorksByProvider returns the works of one provider.
func (q *Queries) ListWorksByProvider(ctx context.Context, providerID string) ([]*domain.Work, error) {
	return q.queryWorks(ctx,
		`SELECT `+workColumns+` FROM works WHERE provider_id = ? ORDER BY last_read DESC, id ASC`, providerID)
}

func (q *Queries) queryWorks(ctx context.Context, query string, args ...any) ([]*domain.Work, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "works")
	}
	defer rows.Close()

	works := []*domain.Work{}
	for rows.Next() {
		w, err := scanWork(rows)
		if err != nil {
			return nil, mapError(err, "works")
		}
		works = append(works, w)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "works")
	}
	return works, nil
}

// UpdateWork writes every column of w.
func (q *Queries) UpdateWork(ctx context.Context, w *domain.Work) error {
	args, err := workArgs(w)
	if err != nil {
		return err
	}
	res, err := q.q.ExecContext(ctx, `
		UPDATE works SET slug = ?, url = ?, provider_id = ?, name = ?, authors = ?, scanlators = ?, genres = ?,
			synopsis = ?, status = ?, background_color = ?, borders_crop = ?, reading_mode = ?, scaling = ?,
			sort_order = ?, last_read = ?, last_update = ?
		WHERE id = ?`, append(args, w.ID)...)
	if err != nil {
		return mapError(err, "work")
	}
	return requireAffected(res, "work")
}

// UpdateWorkFields applies a partial update.
func (q *Queries) UpdateWorkFields(ctx context.Context, id int64, fields Row) error {
	if _, err := q.GetWork(ctx, id); err != nil {
		return err
	}
	return q.UpdateRows(ctx, "works", []int64{id}, []Row{fields})
}

// DeleteWork removes a work; chapters, downloads and category links cascade.
func (q *Queries) DeleteWork(ctx context.Context, id int64) error {
	res, err := q.q.ExecContext(ctx, `DELETE FROM works WHERE id = ?`, id)
	if err != nil {
		return mapError(err, "work")
	}
	return requireAffected(res, "work")
}

// WorkCounts are the derived chapter counts of a work.
type WorkCounts struct {
	Unread     int
	Recent     int
	Downloaded int
	// ToRead counts unread chapters ranked after the furthest read one.
	ToRead int
}

// CountUnread returns the number of unread chapters.
func (q *Queries) CountUnread(ctx context.Context, workID int64) (int, error) {
	return q.count(ctx, `SELECT COUNT(*) FROM chapters WHERE work_id = ? AND read = 0`, workID)
}

// CountRecent returns the number of chapters flagged recent.
func (q *Queries) CountRecent(ctx context.Context, workID int64) (int, error) {
	return q.count(ctx, `SELECT COUNT(*) FROM chapters WHERE work_id = ? AND recent = 1`, workID)
}

// CountDownloaded returns the number of downloaded chapters.
func (q *Queries) CountDownloaded(ctx context.Context, workID int64) (int, error) {
	return q.count(ctx, `SELECT COUNT(*) FROM chapters WHERE work_id = ? AND downloaded = 1`, workID)
}

// CountToRead returns the unread chapters ranked after the furthest read chapter.
func (q *Queries) CountToRead(ctx context.Context, workID int64) (int, error) {
	return q.count(ctx, `
		SELECT COUNT(*) FROM chapters
		WHERE work_id = ? AND read = 0
		  AND rank > COALESCE((SELECT MAX(rank) FROM chapters WHERE work_id = ? AND read = 1), -1)`, workID, workID)
}

// Counts gathers every derived count of a work.
func (q *Queries) Counts(ctx context.Context, workID int64) (WorkCounts, error) {
	var (
		c   WorkCounts
		err error
	)
	if c.Unread, err = q.CountUnread(ctx, workID); err != nil {
		return c, err
	}
	if c.Recent, err = q.CountRecent(ctx, workID); err != nil {
		return c, err
	}
	if c.Downloaded, err = q.CountDownloaded(ctx, workID); err != nil {
		return c, err
	}
	c.ToRead, err = q.CountToRead(ctx, workID)
	return c, err
}

func (q *Queries) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := q.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, mapError(err, "count")
	}
	return n, nil
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err, what)
	}
	if n == 0 {
		return mapError(sql.ErrNoRows, what)
	}
	return nil
}

// prefixed qualifies every column of a column list with prefix.
func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
