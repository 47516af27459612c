package downloader

import (
	"context"

	"github.com/mangashelf/mangashelf/internal/domain"
	"github.com/mangashelf/mangashelf/internal/errors"
	"github.com/mangashelf/mangashelf/internal/events"
	"github.com/mangashelf/mangashelf/internal/store/sqlite"
	"github.com/mangashelf/mangashelf/internal/worker"
)

type outcome int

const (
	skipped outcome = iota
	completed
	failed
	stopped
)

func (d *Downloader) loop(ctx context.Context, stop <-chan struct{}) {
	if d.online != nil && !d.online(ctx) {
		d.logger.Info("offline, downloader not started")
		return
	}
	d.logger.Info("downloader started")
	d.lib.Emit(events.New(events.DownloaderStarted, nil))

	var sum events.DownloaderEndedData
	seen := make(map[int64]bool)
	excludeErrors := false
passes:
	for {
		rows, err := d.store.ListDownloads(ctx, excludeErrors)
		if err != nil {
			d.logger.Error("failed to list downloads", "error", err)
			break
		}
		fresh := 0
		for _, row := range rows {
			if seen[row.ID] {
				continue
			}
			if worker.Stopped(stop) || ctx.Err() != nil {
				sum.Stopped = true
				break passes
			}
			seen[row.ID] = true
			fresh++
			switch d.process(ctx, stop, row.ID) {
			case completed:
				sum.Completed++
			case failed:
				sum.Failed++
			case stopped:
				sum.Stopped = true
				break passes
			}
		}
		if fresh == 0 {
			break
		}
		excludeErrors = true
	}

	d.logger.Info("downloader ended", "completed", sum.Completed, "failed", sum.Failed, "stopped", sum.Stopped)
	d.lib.Emit(events.New(events.DownloaderEnded, sum))
}

// process downloads the chapter of one queue row.
func (d *Downloader) process(ctx context.Context, stop <-chan struct{}, id int64) outcome {
	dl, err := d.store.GetDownload(ctx, id)
	if errors.Is(err, errors.ErrNotFound) {
		return skipped
	}
	if err != nil {
		d.logger.Error("failed to load download", "download_id", id, "error", err)
		return failed
	}
	c, err := d.store.GetChapter(ctx, dl.ChapterID)
	if err != nil {
		return d.fail(ctx, dl, err)
	}

	dl.Status = domain.DownloadDownloading
	if err := d.store.UpdateDownload(ctx, dl); err != nil {
		return d.fail(ctx, dl, err)
	}
	d.emit(dl, nil, nil)

	if err := d.lib.UpdateFull(ctx, c); err != nil {
		return d.fail(ctx, dl, err)
	}
	if len(c.Pages) == 0 {
		return d.fail(ctx, dl, errors.Parsef("chapter %d has no pages", c.ID))
	}
	w, err := d.lib.ChapterWork(ctx, c)
	if err != nil {
		return d.fail(ctx, dl, err)
	}

	n, failures := len(c.Pages), 0
	wasDownloaded := c.Downloaded
	var lastErr error
	for i := range n {
		if worker.Stopped(stop) || ctx.Err() != nil {
			dl.Status = domain.DownloadPending
			if err := d.store.UpdateDownload(context.WithoutCancel(ctx), dl); err != nil {
				d.logger.Error("failed to requeue download", "download_id", dl.ID, "error", err)
			}
			d.emit(dl, nil, nil)
			return stopped
		}
		if d.lib.PageOnDisk(w, c, i) {
			continue
		}

		if _, err := d.lib.GetPage(ctx, c, i); err != nil {
			failures++
			lastErr = err
			dl.Errors = failures
			d.logger.Warn("failed to download page", "chapter_id", c.ID, "page", i, "error", err)
		} else {
			dl.Percent = domain.PagePercent(i, n)
		}
		// GetPage drops the row once it stores the last page.
		finished := c.Downloaded && !wasDownloaded
		if !finished {
			if err := d.store.UpdateDownload(ctx, dl); err != nil {
				d.logger.Error("failed to update download", "download_id", dl.ID, "error", err)
			}
		}
		d.emit(dl, nil, nil)
		if finished {
			break
		}

		if i < n-1 {
			worker.Sleep(ctx, stop, d.delay)
		}
	}

	if failures > 0 {
		return d.fail(ctx, dl, errors.Wrapf(lastErr, errors.CodeOf(lastErr), "%d of %d pages failed", failures, n))
	}

	if err := d.store.InTx(ctx, func(q *sqlite.Queries) error {
		if err := q.UpdateChapterFields(ctx, c.ID, sqlite.Row{"downloaded": true}); err != nil {
			return err
		}
		_, err := q.DeleteDownloadsByChapter(ctx, []int64{c.ID})
		return err
	}); err != nil {
		return d.fail(ctx, dl, err)
	}
	c.Downloaded = true
	d.logger.Info("chapter downloaded", "chapter_id", c.ID, "work_id", c.WorkID, "pages", n)
	d.emit(dl, c, nil)
	return completed
}

func (d *Downloader) fail(ctx context.Context, dl *domain.Download, err error) outcome {
	d.logger.Error("download failed", "download_id", dl.ID, "chapter_id", dl.ChapterID, "error", err)
	dl.Status = domain.DownloadError
	if uerr := d.store.UpdateDownload(context.WithoutCancel(ctx), dl); uerr != nil {
		d.logger.Error("failed to update download", "download_id", dl.ID, "error", uerr)
	}
	d.emit(dl, nil, err)
	return failed
}
