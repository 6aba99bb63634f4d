// Package watch organizes a directory whenever new files settle in it.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"tidy-go/internal/tidy"
)

// DefaultDebounce is the quiet period used when none is configured.
const DefaultDebounce = 2 * time.Second

// partialSuffixes mark files that a browser or downloader is still writing.
var partialSuffixes = []string{".part", ".crdownload", ".tmp", ".download"}

// Organizer runs one unified organize pass over a directory.
type Organizer interface {
	ExecuteUnified(ctx context.Context, sourcePath string, opts tidy.UnifiedOptions) (*tidy.ExecuteResult, error)
}

// Watcher watches a single directory (not its subdirectories) and runs the
// organizer once events have been quiet for the debounce period.
type Watcher struct {
	dir       string
	organizer Organizer
	opts      tidy.UnifiedOptions
	debounce  time.Duration
	log       tidy.Logger

	// OnRun, when set, is called after every organize pass.
	OnRun func(*tidy.ExecuteResult, error)
}

func New(dir string, organizer Organizer, opts tidy.UnifiedOptions, debounce time.Duration, log tidy.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		dir:       dir,
		organizer: organizer,
		opts:      opts,
		debounce:  debounce,
		log:       log,
	}
}

// Run blocks until ctx is cancelled or the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.log.Info("watching directory", "dir", w.dir, "debounce", w.debounce)

	return w.loop(ctx, fw.Events, fw.Errors)
}

func (w *Watcher) loop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) error {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.log.Debug("file event", "path", event.Name, "op", event.Op.String())
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.debounce)
			pending = true
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.log.Warn("watch event overflow, scheduling a full pass")
				if pending && !timer.Stop() {
					<-timer.C
				}
				timer.Reset(w.debounce)
				pending = true
				continue
			}
			w.log.Error("watch error", "error", err)
		case <-timer.C:
			pending = false
			w.organize(ctx)
		}
	}
}

func (w *Watcher) organize(ctx context.Context) {
	result, err := w.organizer.ExecuteUnified(ctx, w.dir, w.opts)
	switch {
	case err != nil:
		w.log.Error("organize pass failed", "dir", w.dir, "error", err)
	case result.FilesMoved > 0 || len(result.Errors) > 0:
		w.log.Info("organize pass",
			"dir", w.dir,
			"moved", result.FilesMoved,
			"skipped", result.FilesSkipped,
			"errors", len(result.Errors),
			"history_id", result.HistoryID)
	}
	if w.OnRun != nil {
		w.OnRun(result, err)
	}
}

// relevant reports whether event announces a settled, visible file directly
// inside the watched directory.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	if filepath.Dir(event.Name) != filepath.Clean(w.dir) {
		return false
	}
	if Ignored(filepath.Base(event.Name)) {
		return false
	}
	info, err := os.Lstat(event.Name)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// Ignored reports whether a file name is hidden or an in-progress download.
func Ignored(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	lower := strings.ToLower(name)
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
