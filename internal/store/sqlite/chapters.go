package sqlite

import (
	"context"
	"database/sql"
	"maps"
	"slices"

	"github.com/mangashelf/mangashelf/internal/domain"
	"github.com/mangashelf/mangashelf/internal/errors"
)

// chapterColumns must match the scan order in scanChapter.
const chapterColumns = `id, work_id, slug, url, title, scanlators, pages, scrambled, date, rank,
	downloaded, recent, read, last_page_read_index`

func scanChapter(scanner interface{ Scan(dest ...any) error }) (*domain.Chapter, error) {
	var (
		c                            domain.Chapter
		url, scanlators, pages, date sql.NullString
		lastPage                     sql.NullInt64
	)
	err := scanner.Scan(
		&c.ID, &c.WorkID, &c.Slug, &url, &c.Title, &scanlators, &pages, &c.Scrambled, &date, &c.Rank,
		&c.Downloaded, &c.Recent, &c.Read, &lastPage,
	)
	if err != nil {
		return nil, err
	}

	c.URL = url.String
	c.Date = parseNullableDate(date)
	if lastPage.Valid {
		v := int(lastPage.Int64)
		c.LastPageReadIndex = &v
	}
	if c.Scanlators, err = decodeList(scanlators); err != nil {
		return nil, err
	}
	if c.Pages, err = decodeJSON[domain.Page](pages); err != nil {
		return nil, err
	}
	return &c, nil
}

func chapterArgs(c *domain.Chapter) ([]any, error) {
	scanlators, err := nullJSON(c.Scanlators)
	if err != nil {
		return nil, err
	}
	pages, err := nullJSON(c.Pages)
	if err != nil {
		return nil, err
	}
	var lastPage sql.NullInt64
	if c.LastPageReadIndex != nil {
		lastPage = sql.NullInt64{Int64: int64(*c.LastPageReadIndex), Valid: true}
	}
	return []any{
		c.WorkID, c.Slug, nullString(c.URL), c.Title, scanlators, pages, boolInt(c.Scrambled), nullDate(c.Date),
		c.Rank, boolInt(c.Downloaded), boolInt(c.Recent), boolInt(c.Read), lastPage,
	}, nil
}

// CreateChapter inserts c and sets its ID.
func (q *Queries) CreateChapter(ctx context.Context, c *domain.Chapter) error {
	args, err := chapterArgs(c)
	if err != nil {
		return err
	}
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO chapters (work_id, slug, url, title, scanlators, pages, scrambled, date, rank,
			downloaded, recent, read, last_page_read_index)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return mapError(err, "chapter")
	}
	c.ID, err = res.LastInsertId()
	return mapError(err, "chapter")
}

// GetChapter returns the chapter with the given id.
func (q *Queries) GetChapter(ctx context.Context, id int64) (*domain.Chapter, error) {
	c, err := scanChapter(q.q.QueryRowContext(ctx, `SELECT `+chapterColumns+` FROM chapters WHERE id = ?`, id))
	if err != nil {
		return nil, mapError(err, "chapter")
	}
	return c, nil
}

// GetChapterBySlug looks a chapter up by its natural key.
func (q *Queries) GetChapterBySlug(ctx context.Context, workID int64, slug string) (*domain.Chapter, error) {
	c, err := scanChapter(q.q.QueryRowContext(ctx,
		`SELECT `+chapterColumns+` FROM chapters WHERE work_id = ? AND slug = ?`, workID, slug))
	if err != nil {
		return nil, mapError(err, "chapter")
	}
	return c, nil
}

// ListChapters returns the chapters of a work in the given order.
// An empty order sorts by rank ascending.
func (q *Queries) ListChapters(ctx context.Context, workID int64, order domain.SortOrder) ([]*domain.Chapter, error) {
	orderBy := "rank ASC"
	switch order {
	case domain.SortRankDesc:
		orderBy = "rank DESC"
	case domain.SortDateAsc:
		orderBy = "date ASC, rank ASC"
	case domain.SortDateDesc:
		orderBy = "date DESC, rank DESC"
	}
	return q.queryChapters(ctx,
		`SELECT `+chapterColumns+` FROM chapters WHERE work_id = ? ORDER BY `+orderBy, workID)
}

// ListDownloadedChapters returns the chapters of a work flagged downloaded.
func (q *Queries) ListDownloadedChapters(ctx context.Context, workID int64) ([]*domain.Chapter, error) {
	return q.queryChapters(ctx,
		`SELECT `+chapterColumns+` FROM chapters WHERE work_id = ? AND downloaded = 1 ORDER BY rank ASC`, workID)
}

func (q *Queries) queryChapters(ctx context.Context, query string, args ...any) ([]*domain.Chapter, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "chapters")
	}
	defer rows.Close()

	chapters := []*domain.Chapter{}
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return nil, mapError(err, "chapters")
		}
		chapters = append(chapters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "chapters")
	}
	return chapters, nil
}

// UpdateChapter writes every column of c.
func (q *Queries) UpdateChapter(ctx context.Context, c *domain.Chapter) error {
	args, err := chapterArgs(c)
	if err != nil {
		return err
	}
	res, err := q.q.ExecContext(ctx, `
		UPDATE chapters SET work_id = ?, slug = ?, url = ?, title = ?, scanlators = ?, pages = ?, scrambled = ?,
			date = ?, rank = ?, downloaded = ?, recent = ?, read = ?, last_page_read_index = ?
		WHERE id = ?`, append(args, c.ID)...)
	if err != nil {
		return mapError(err, "chapter")
	}
	return requireAffected(res, "chapter")
}

// UpdateChapterFields applies a partial update.
func (q *Queries) UpdateChapterFields(ctx context.Context, id int64, fields Row) error {
	if _, err := q.GetChapter(ctx, id); err != nil {
		return err
	}
	return q.UpdateRows(ctx, "chapters", []int64{id}, []Row{fields})
}

// DeleteChapter removes a chapter; its download row cascades.
func (q *Queries) DeleteChapter(ctx context.Context, id int64) error {
	res, err := q.q.ExecContext(ctx, `DELETE FROM chapters WHERE id = ?`, id)
	if err != nil {
		return mapError(err, "chapter")
	}
	return requireAffected(res, "chapter")
}

// NextChapter returns the chapter adjacent to rank in direction dir (+1 or -1),
// or nil past either end.
func (q *Queries) NextChapter(ctx context.Context, workID int64, rank, dir int) (*domain.Chapter, error) {
	var query string
	switch dir {
	case 1:
		query = `SELECT ` + chapterColumns + ` FROM chapters WHERE work_id = ? AND rank > ? ORDER BY rank ASC LIMIT 1`
	case -1:
		query = `SELECT ` + chapterColumns + ` FROM chapters WHERE work_id = ? AND rank < ? ORDER BY rank DESC LIMIT 1`
	default:
		return nil, errors.Validationf("direction must be 1 or -1, got %d", dir)
	}
	c, err := scanChapter(q.q.QueryRowContext(ctx, query, workID, rank))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, "chapter")
	}
	return c, nil
}

// RemapChapterSlugs renames chapter slugs of a work after a source changed
// its identifiers. Unknown old slugs are ignored.
func (q *Queries) RemapChapterSlugs(ctx context.Context, workID int64, mapping map[string]string) (int64, error) {
	if len(mapping) == 0 {
		return 0, nil
	}
	stmt, err := q.q.PrepareContext(ctx, `UPDATE chapters SET slug = ? WHERE work_id = ? AND slug = ?`)
	if err != nil {
		return 0, mapError(err, "chapters")
	}
	defer stmt.Close()

	var total int64
	for _, old := range slices.Sorted(maps.Keys(mapping)) {
		res, err := stmt.ExecContext(ctx, mapping[old], workID, old)
		if err != nil {
			return 0, mapError(err, "chapter")
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
