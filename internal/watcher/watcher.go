// Package watcher feeds files dropped into a directory through the upload
// intake, skipping content that was already ingested.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"docflow/internal/models"
	"docflow/internal/service"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Ingester interface {
	IngestUnique(ctx context.Context, f service.UploadFile) (*models.Document, bool, error)
}

type Requester interface {
	Request(ctx context.Context, id uuid.UUID) (*service.RequestOutcome, error)
}

type Config struct {
	Dir               string
	AllowedExtensions []string
	Debounce          time.Duration
	// AutoProcess queues newly ingested documents for processing.
	AutoProcess bool
}

type Watcher struct {
	cfg       Config
	exts      map[string]struct{}
	intake    Ingester
	processor Requester
	logger    *zap.Logger
}

func New(cfg Config, intake Ingester, processor Requester, logger *zap.Logger) *Watcher {
	exts := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		exts[service.NormalizeExt(ext)] = struct{}{}
	}
	return &Watcher{
		cfg:       cfg,
		exts:      exts,
		intake:    intake,
		processor: processor,
		logger:    logger.With(zap.String("dir", cfg.Dir)),
	}
}

// Run watches the directory tree until ctx is done. Files already present
// are ingested first.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fw.Close()

	var existing []string
	err = filepath.WalkDir(w.cfg.Dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		if w.allowed(path) {
			existing = append(existing, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.cfg.Dir, err)
	}
	w.logger.Info("Watching directory for new documents", zap.Int("existing", len(existing)))

	for _, path := range existing {
		w.HandleFile(ctx, path)
	}

	pending := make(map[string]struct{})
	var timer *time.Timer
	var flush <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case e, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if e.Has(fsnotify.Create) {
				if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
					if err := fw.Add(e.Name); err != nil {
						w.logger.Warn("Failed to watch new directory", zap.String("path", e.Name), zap.Error(err))
					}
					continue
				}
			}
			if !w.allowed(e.Name) || !(e.Has(fsnotify.Create) || e.Has(fsnotify.Write) || e.Has(fsnotify.Rename)) {
				continue
			}
			pending[e.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.cfg.Debounce)
			} else {
				timer.Reset(w.cfg.Debounce)
			}
			flush = timer.C

		case <-flush:
			flush = nil
			for path := range pending {
				delete(pending, path)
				w.HandleFile(ctx, path)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", zap.Error(err))
		}
	}
}

// HandleFile ingests one file. Failures are logged, not returned.
func (w *Watcher) HandleFile(ctx context.Context, path string) {
	log := w.logger.With(zap.String("path", path))

	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn("Failed to stat file", zap.Error(err))
		}
		return
	}
	if info.IsDir() || !w.allowed(path) {
		return
	}

	doc, created, err := w.intake.IngestUnique(ctx, service.UploadFile{
		Name: filepath.Base(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	})
	if err != nil {
		log.Warn("Failed to ingest file", zap.String("kind", string(service.KindOf(err))), zap.Error(err))
		return
	}
	if !created {
		log.Debug("File already ingested", zap.String("document_id", doc.ID.String()))
		return
	}
	log.Info("Ingested file", zap.String("document_id", doc.ID.String()))

	if !w.cfg.AutoProcess || w.processor == nil {
		return
	}
	if _, err := w.processor.Request(ctx, doc.ID); err != nil {
		log.Warn("Failed to queue ingested document", zap.String("document_id", doc.ID.String()), zap.Error(err))
	}
}

func (w *Watcher) allowed(path string) bool {
	if filepath.Ext(path) == "" {
		return false
	}
	_, ok := w.exts[service.NormalizeExt(path)]
	return ok
}
