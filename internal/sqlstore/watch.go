package sqlstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/tonimelisma/fxicsd/internal/fxid"
	"github.com/tonimelisma/fxicsd/internal/mapitags"
	"github.com/tonimelisma/fxicsd/internal/propstream"
	"github.com/tonimelisma/fxicsd/internal/store"
)

// Watcher ingests files dropped into a Maildir-style spool directory as
// new messages in folder, so the reference store can be exercised by
// another process delivering mail out-of-band while a sync session is
// mid-flight. Each ingested file becomes one message whose body is the
// file's raw bytes and whose display name is the file's base name.
type Watcher struct {
	store     *Store
	folder    store.Handle
	replicaID fxid.ReplicaID
	logger    *slog.Logger
}

// NewWatcher returns a Watcher that ingests new files under the watched
// spool directory into folder, minting FMIDs under replicaID (normally
// the store's own locally-registered replica).
func NewWatcher(st *Store, folder store.Handle, replicaID fxid.ReplicaID) *Watcher {
	logger := st.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{store: st, folder: folder, replicaID: replicaID, logger: logger}
}

// Watch blocks until ctx is canceled, ingesting each file fsnotify
// reports as created or written under spoolDir.
func (w *Watcher) Watch(ctx context.Context, spoolDir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("sqlstore: creating spool watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(spoolDir); err != nil {
		return fmt.Errorf("sqlstore: watching spool dir %s: %w", spoolDir, err)
	}

	w.logger.Info("spool watcher started", slog.String("spool_dir", spoolDir))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			if err := w.ingest(ctx, ev.Name); err != nil {
				w.logger.Warn("ingesting spool file failed",
					slog.String("path", ev.Name), slog.String("error", err.Error()))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			w.logger.Warn("spool watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) ingest(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	start, err := w.store.ReserveFMIDRange(ctx, 1)
	if err != nil {
		return fmt.Errorf("reserving fmid for %s: %w", path, err)
	}

	fid := fxid.NewFMID(w.replicaID, fxid.GlobalCounter(start))

	msg, err := w.store.CreateMessage(ctx, w.folder, fid, false)
	if err != nil {
		return fmt.Errorf("creating message for %s: %w", path, err)
	}

	props := []store.PropValue{
		{Tag: mapitags.TagDisplayName, Value: propstream.String8Value(filepath.Base(path))},
		{Tag: mapitags.TagBodyUnicode, Value: propstream.UnicodeValue(body)},
		{Tag: mapitags.TagLastModificationTime, Value: propstream.SysTimeValue(info.ModTime())},
	}

	if err := w.store.SetProperties(ctx, msg, props); err != nil {
		return fmt.Errorf("setting properties for %s: %w", path, err)
	}

	w.logger.Info("ingested spool file", slog.String("path", path), slog.Uint64("fmid", uint64(fid)))

	return nil
}
