package sqlite

import (
	"context"
	"fmt"

	"github.com/mangashelf/mangashelf/internal/domain"
)

// downloadColumns must match the scan order in scanDownload.
const downloadColumns = `id, chapter_id, status, percent, errors, date`

func scanDownload(scanner interface{ Scan(dest ...any) error }) (*domain.Download, error) {
	var (
		d      domain.Download
		status string
		date   string
	)
	if err := scanner.Scan(&d.ID, &d.ChapterID, &status, &d.Percent, &d.Errors, &date); err != nil {
		return nil, err
	}
	d.Status = domain.DownloadStatus(status)

	var err error
	if d.Date, err = parseTime(date); err != nil {
		return nil, fmt.Errorf("parse download date: %w", err)
	}
	return &d, nil
}

// CreateDownload queues d. It returns false, leaving d.ID unset, when the
// chapter already has a download row.
func (q *Queries) CreateDownload(ctx context.Context, d *domain.Download) (bool, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO downloads (chapter_id, status, percent, errors, date)
		VALUES (?, ?, ?, ?, ?)`,
		d.ChapterID, string(d.Status), domain.ClampPercent(d.Percent), d.Errors, formatTime(d.Date),
	)
	if err != nil {
		return false, mapError(err, "download")
	}
	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		return false, mapError(err, "download")
	}
	d.ID, err = res.LastInsertId()
	return true, mapError(err, "download")
}

// GetDownload returns the download with the given id.
func (q *Queries) GetDownload(ctx context.Context, id int64) (*domain.Download, error) {
	d, err := scanDownload(q.q.QueryRowContext(ctx, `SELECT `+downloadColumns+` FROM downloads WHERE id = ?`, id))
	if err != nil {
		return nil, mapError(err, "download")
	}
	return d, nil
}

// GetDownloadByChapter returns the download row of a chapter.
func (q *Queries) GetDownloadByChapter(ctx context.Context, chapterID int64) (*domain.Download, error) {
	d, err := scanDownload(q.q.QueryRowContext(ctx,
		`SELECT `+downloadColumns+` FROM downloads WHERE chapter_id = ?`, chapterID))
	if err != nil {
		return nil, mapError(err, "download")
	}
	return d, nil
}

// ListDownloads returns the queue in submit order. With excludeErrors set,
// rows in the error state are skipped.
func (q *Queries) ListDownloads(ctx context.Context, excludeErrors bool) ([]*domain.Download, error) {
	query := `SELECT ` + downloadColumns + ` FROM downloads`
	var args []any
	if excludeErrors {
		query += ` WHERE status != ?`
		args = append(args, string(domain.DownloadError))
	}
	query += ` ORDER BY date ASC, id ASC`

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "downloads")
	}
	defer rows.Close()

	downloads := []*domain.Download{}
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, mapError(err, "downloads")
		}
		downloads = append(downloads, d)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "downloads")
	}
	return downloads, nil
}

// UpdateDownload writes status, percent and errors of d.
func (q *Queries) UpdateDownload(ctx context.Context, d *domain.Download) error {
	d.Percent = domain.ClampPercent(d.Percent)
	res, err := q.q.ExecContext(ctx, `UPDATE downloads SET status = ?, percent = ?, errors = ?, date = ? WHERE id = ?`,
		string(d.Status), d.Percent, d.Errors, formatTime(d.Date), d.ID)
	if err != nil {
		return mapError(err, "download")
	}
	return requireAffected(res, "download")
}

// DeleteDownload removes a download row.
func (q *Queries) DeleteDownload(ctx context.Context, id int64) error {
	res, err := q.q.ExecContext(ctx, `DELETE FROM downloads WHERE id = ?`, id)
	if err != nil {
		return mapError(err, "download")
	}
	return requireAffected(res, "download")
}

// DeleteDownloadsByChapter removes the download rows of the given chapters.
func (q *Queries) DeleteDownloadsByChapter(ctx context.Context, chapterIDs []int64) (int64, error) {
	matches := make([]Row, len(chapterIDs))
	for i, id := range chapterIDs {
		matches[i] = Row{"chapter_id": id}
	}
	return q.DeleteRowsWhere(ctx, "downloads", matches)
}
