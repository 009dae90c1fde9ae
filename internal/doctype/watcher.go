package doctype

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/resolate/internal/apperr"
)

// Watcher event kinds passed to an EventCallback.
const (
	EventUpdated  = "updated"
	EventOrphaned = "orphaned"
)

// settleDelay lets a word processor finish its burst of writes before the
// template is read.
const settleDelay = 300 * time.Millisecond

// EventCallback is called after a watcher-driven change to a document type.
type EventCallback func(kind string, termID int64)

// Watch starts an fsnotify watcher on dir and processes template changes
// until ctx is cancelled.
//
// Writes to a bound template are debounced and then refreshed through the
// hash check, so saving an unchanged file produces no event. A removed or
// renamed template reports its terms as orphaned; their stored schema is
// kept.
func (s *Service) Watch(ctx context.Context, dir string, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	s.logger.Info("watcher: started", slog.String("root", root))

	pending := make(map[string]struct{})
	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	schedule := func(path string) {
		pending[path] = struct{}{}
		if settleTimer == nil {
			settleTimer = time.NewTimer(settleDelay)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(settleDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			s.logger.Info("watcher: stopped")
			return nil

		case <-settleCh:
			for path := range pending {
				s.refreshPath(ctx, path, cb)
			}
			clear(pending)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						s.logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					continue
				}
			}

			if !isTemplateFile(ev.Name) {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				schedule(ev.Name)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				delete(pending, ev.Name)
				s.orphanPath(ev.Name, cb)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (s *Service) refreshPath(ctx context.Context, path string, cb EventCallback) {
	ids, err := s.TermsFor(path)
	if err != nil {
		s.logger.Warn("watcher: lookup failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	for _, id := range ids {
		res, err := s.Refresh(ctx, id, false)
		if err != nil {
			level := slog.LevelWarn
			if errors.Is(err, apperr.ErrTemplateOpen) {
				// Usually a half-written file; the next write retries.
				level = slog.LevelDebug
			}
			s.logger.Log(ctx, level, "watcher: refresh failed",
				slog.Int64("term_id", id),
				slog.String("error", err.Error()))
			continue
		}
		if res.Outcome == Updated && cb != nil {
			cb(EventUpdated, id)
		}
	}
}

func (s *Service) orphanPath(path string, cb EventCallback) {
	ids, err := s.TermsFor(path)
	if err != nil {
		s.logger.Warn("watcher: lookup failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	for _, id := range ids {
		s.logger.Warn("watcher: template gone", slog.Int64("term_id", id), slog.String("path", path))
		if cb != nil {
			cb(EventOrphaned, id)
		}
	}
}

// isTemplateFile skips Office owner files (~$name.docx) and anything that
// is not a DOCX or ODT.
func isTemplateFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".~lock.") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".docx", ".odt":
		return true
	}
	return false
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
