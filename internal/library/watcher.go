package library

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const defaultSettleDelay = 500 * time.Millisecond

// Watcher keeps the index in step with the music directory. The in-memory
// catalog is not touched; changes show up at the next start.
type Watcher struct {
	prober  Prober
	index   Index
	logger  *logrus.Logger
	watcher *fsnotify.Watcher

	// settleDelay lets a new file finish writing before it is probed
	settleDelay time.Duration

	wg        sync.WaitGroup
	closeOnce sync.Once
	onIndexed func(path string)
}

// NewWatcher creates a watcher; call Start to begin monitoring.
func NewWatcher(prober Prober, index Index, logger *logrus.Logger) *Watcher {
	return &Watcher{
		prober:      prober,
		index:       index,
		logger:      logger,
		settleDelay: defaultSettleDelay,
	}
}

// Start watches root and its subdirectories.
func (w *Watcher) Start(root string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	if err := w.addDirectory(root); err != nil {
		watcher.Close()
		return err
	}

	w.wg.Add(1)
	go w.watchFiles()

	w.logger.WithField("library_path", root).Info("File watcher started")
	return nil
}

// Stop closes the watcher and waits for pending index updates (idempotent).
func (w *Watcher) Stop() {
	if w.watcher == nil {
		return
	}
	w.closeOnce.Do(func() {
		w.watcher.Close()
	})
	w.wg.Wait()
}

func (w *Watcher) addDirectory(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) watchFiles() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFileEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Error("File watcher error")
		}
	}
}

func (w *Watcher) handleFileEvent(event fsnotify.Event) {
	fileName := filepath.Base(event.Name)
	if strings.HasPrefix(fileName, ".") || strings.HasSuffix(fileName, ".tmp") {
		return
	}

	isAudioFile := w.prober.IsAudioFile(event.Name)

	switch {
	case (event.Has(fsnotify.Create) || event.Has(fsnotify.Write)) && isAudioFile:
		w.wg.Add(1)
		go func(name string) {
			defer w.wg.Done()
			time.Sleep(w.settleDelay)
			w.handleNewFile(name)
		}(event.Name)

	case (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) && isAudioFile:
		w.handleRemovedFile(event.Name)

	case event.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addDirectory(event.Name); err != nil {
				w.logger.WithError(err).WithField("directory", event.Name).Warn("Could not watch new directory")
				return
			}
			w.logger.WithField("directory", event.Name).Info("Watching new directory")
		}
	}
}

func (w *Watcher) handleNewFile(filePath string) {
	track, err := w.prober.ExtractFromFile(filePath)
	if err != nil {
		w.logger.WithError(err).WithField("file_path", filePath).Warn("Error extracting metadata")
		return
	}
	if err := w.index.UpsertTrack(track); err != nil {
		w.logger.WithError(err).WithField("file_path", filePath).Error("Error indexing new track")
		return
	}

	w.logger.WithFields(logrus.Fields{
		"media_id": track.ID,
		"artist":   track.Artist,
		"title":    track.Title,
	}).Info("Indexed new track")

	if w.onIndexed != nil {
		w.onIndexed(filePath)
	}
}

func (w *Watcher) handleRemovedFile(filePath string) {
	exists, err := w.index.TrackExists(filePath)
	if err != nil {
		w.logger.WithError(err).WithField("file_path", filePath).Error("Error checking indexed track")
		return
	}
	if !exists {
		return
	}
	if err := w.index.RemoveTrackByPath(filePath); err != nil {
		w.logger.WithError(err).WithField("file_path", filePath).Error("Error removing track from index")
		return
	}

	w.logger.WithField("file_path", filePath).Info("Removed track from index")
}
