// Package importer adds the series of a foreign backup to the library.
package importer

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/mangashelf/mangashelf/internal/domain"
	"github.com/mangashelf/mangashelf/internal/library"
	"github.com/mangashelf/mangashelf/internal/validation"
)

var validate = validation.New()

// Result summarizes an import.
type Result struct {
	// WorkIDs lists the works created, in backup order.
	WorkIDs []int64
	// Unmapped counts entries whose provider code is unknown.
	Unmapped int
	Failed   int
	Duration time.Duration
}

// Importer adds backup entries to a library.
type Importer struct {
	lib      *library.Library
	mappings Mappings
	logger   *slog.Logger
}

// New creates an importer. A nil mappings table uses DefaultMappings.
func New(lib *library.Library, mappings Mappings, logger *slog.Logger) *Importer {
	if mappings == nil {
		mappings = DefaultMappings
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{lib: lib, mappings: mappings, logger: logger}
}

// Import creates a work per mapped entry. The works start without chapters;
// a refresh fills them in. Entry failures are logged and counted, never
// returned.
func (im *Importer) Import(ctx context.Context, b *Backup) (*Result, error) {
	start := time.Now()
	res := &Result{Failed: b.Malformed}
	im.logger.Info("import starting", "entries", len(b.Entries), "malformed", b.Malformed)

	for _, e := range b.Entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		m, ok := im.mappings[e.ProviderCode]
		if !ok {
			im.logger.Debug("no provider for entry", "name", e.Name, "code", e.ProviderCode)
			res.Unmapped++
			continue
		}
		w, err := im.importEntry(ctx, e, m)
		if err != nil {
			im.logger.Warn("failed to import entry", "name", e.Name, "provider", m.ProviderID, "error", err)
			res.Failed++
			continue
		}
		res.WorkIDs = append(res.WorkIDs, w.ID)
	}

	res.Duration = time.Since(start)
	im.logger.Info("import completed",
		"imported", len(res.WorkIDs),
		"unmapped", res.Unmapped,
		"failed", res.Failed,
		"duration", res.Duration,
	)
	return res, nil
}

func (im *Importer) importEntry(ctx context.Context, e Entry, m Mapping) (*domain.Work, error) {
	slug, err := m.Slug(e.Ref)
	if err != nil {
		return nil, err
	}
	data := &domain.WorkData{
		Slug:     slug,
		Name:     e.Name,
		ServerID: m.ProviderID,
	}
	if u, err := url.Parse(e.Ref); err == nil && u.IsAbs() {
		data.URL = e.Ref
	}
	return im.lib.AddWork(ctx, m.ProviderID, data)
}
