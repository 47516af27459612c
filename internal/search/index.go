package search

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/mangashelf/mangashelf/internal/domain"
)

// Index wraps a Bleve index of works. All methods are safe for concurrent
// use; Rebuild takes the lock exclusively.
type Index struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the index.
type Options struct {
	// DataPath is the directory holding the index. Empty keeps it in memory.
	DataPath string
	Logger   *slog.Logger
}

// mappingVersion is bumped whenever the mapping changes so existing indexes
// are rebuilt on open.
const mappingVersion = "2"

// Open opens the index in opts.DataPath, creating it when missing and
// recreating it when it is unreadable or built with another mapping.
func Open(opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.DataPath == "" {
		index, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create memory index: %w", err)
		}
		return &Index{index: index, logger: logger}, nil
	}

	indexPath := filepath.Join(opts.DataPath, "works.bleve")
	versionPath := filepath.Join(opts.DataPath, "works.bleve.version")

	var index bleve.Index
	var err error
	needsRebuild := false

	indexExists := false
	if _, statErr := os.Stat(indexPath); statErr == nil {
		indexExists = true
	}

	if indexExists {
		existingVersion, readErr := os.ReadFile(versionPath)
		if readErr != nil {
			logger.Info("search index has no version file, rebuilding",
				"new_version", mappingVersion,
			)
			needsRebuild = true
		} else if string(existingVersion) != mappingVersion {
			logger.Info("search index mapping changed, rebuilding",
				"old_version", string(existingVersion),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		}
	}

	if !needsRebuild && indexExists {
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Warn("failed to open search index, recreating",
				"path", indexPath,
				"error", err,
			)
			needsRebuild = true
		}
	}

	if needsRebuild {
		if removeErr := os.RemoveAll(indexPath); removeErr != nil {
			return nil, fmt.Errorf("remove old index: %w", removeErr)
		}
		index = nil
	}

	if index == nil {
		if err := os.MkdirAll(opts.DataPath, 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
		indexMapping := buildIndexMapping()
		index, err = bleve.New(indexPath, indexMapping)
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if writeErr := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); writeErr != nil {
			logger.Warn("failed to write search version file", "error", writeErr)
		}
		logger.Info("created new search index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened existing search index", "path", indexPath)
	}

	return &Index{
		index:  index,
		path:   indexPath,
		logger: logger,
	}, nil
}

// Close closes the index.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexWork adds or replaces the document of w.
func (s *Index) IndexWork(w *domain.Work) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := FromWork(w)
	return s.index.Index(doc.ID, doc.toMap())
}

// IndexWorks indexes works in batches.
func (s *Index) IndexWorks(works []*domain.Work) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const batchSize = 500
	for i := 0; i < len(works); i += batchSize {
		end := min(i+batchSize, len(works))
		batch := s.index.NewBatch()
		for _, w := range works[i:end] {
			doc := FromWork(w)
			if err := batch.Index(doc.ID, doc.toMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// DeleteWork removes a work from the index.
func (s *Index) DeleteWork(workID int64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(DocumentID(workID))
}

// DocumentCount returns the number of indexed works.
func (s *Index) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild replaces the index with one holding exactly works.
func (s *Index) Rebuild(works []*domain.Work) error {
	s.mu.Lock()
	if err := s.index.Close(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("close index: %w", err)
	}

	var (
		index bleve.Index
		err   error
	)
	if s.path == "" {
		index, err = bleve.NewMemOnly(buildIndexMapping())
	} else {
		if err := os.RemoveAll(s.path); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("remove index: %w", err)
		}
		index, err = bleve.New(s.path, buildIndexMapping())
	}
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("create index: %w", err)
	}
	s.index = index
	s.mu.Unlock()

	s.logger.Info("rebuilt search index", "path", s.path, "works", len(works))
	return s.IndexWorks(works)
}
